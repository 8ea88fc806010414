package sim

// NoWorker and NoMachine mark an empty assignment slot.
const (
	NoWorker  = -1
	NoMachine = -1
)

// MachineStatus is the lifecycle state of a machine. The numeric values
// double as the status buckets of the state key, so the order is part of
// the value-table contract and must not change.
type MachineStatus int

const (
	MachineIdle MachineStatus = iota
	MachineBusy
	MachineBroken
	MachineMaintenance
)

func (s MachineStatus) String() string {
	switch s {
	case MachineIdle:
		return "idle"
	case MachineBusy:
		return "busy"
	case MachineBroken:
		return "broken"
	case MachineMaintenance:
		return "maintenance"
	}
	return "unknown"
}

// WorkerStatus is the lifecycle state of a worker.
type WorkerStatus int

const (
	WorkerIdle WorkerStatus = iota
	WorkerBusy
)

func (s WorkerStatus) String() string {
	if s == WorkerBusy {
		return "busy"
	}
	return "idle"
}

// Machine is one physical unit on the floor.
// Invariant: Worker != NoWorker iff Status == MachineBusy.
type Machine struct {
	Status    MachineStatus
	TypeIndex int
	Priority  int
	// Worker is the id of the currently bound worker, or NoWorker.
	Worker int
	// TimeRemaining is the minutes left on the in-flight task; kept in
	// lockstep with the Factory's in-flight table.
	TimeRemaining float64
}

// Worker is one labor unit. The Machine back-reference is symmetric with
// Machine.Worker at every point outside a Step call.
type Worker struct {
	Status WorkerStatus
	// Machine is the id of the machine this worker is bound to, or NoMachine.
	Machine int
}
