package sim

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/factory-sim/factory-sim/sim/trace"
)

const (
	// invalidAssignPenalty is charged when the agent targets a busy worker.
	// The attempt becomes a no-op; the agent is expected to learn to avoid it.
	invalidAssignPenalty = 0.1

	// completionEpsilon absorbs float drift when a countdown reaches zero.
	completionEpsilon = 1e-4

	// historyIntervalMinutes is the periodic snapshot cadence while
	// recording. Frequent enough to make parallel processing visible in a
	// rendered timeline.
	historyIntervalMinutes = 0.5
)

// Info is the per-step informational record. It is not required for
// correctness; the state key carries everything the agent needs.
type Info struct {
	ProducedGoodParts int
	CurrentTime       float64
	CurrentShift      int
}

// Factory simulates one production day: machines that need a worker to
// process parts, workers with per-shift capacity limits, and stochastic
// breakdown/maintenance/defect draws. It resolves one assignment decision
// per Step call and advances simulated time to the next task completion,
// so several machines run in parallel in simulated time while execution
// stays strictly sequential.
type Factory struct {
	cfg *Config
	rng *rand.Rand

	clock             float64
	machines          []Machine
	workers           []Worker
	producedGoodParts int

	// decisionMachine is the machine awaiting an agent decision, or NoMachine.
	decisionMachine int

	// inFlight maps machine id to remaining task minutes.
	inFlight map[int]float64
	// downUntil maps machine id to the instant its breakdown/maintenance ends.
	downUntil map[int]float64

	// lastWorkerPerMachine drives the worker-switch penalty.
	lastWorkerPerMachine []int

	// workedMinutes[w][s] accumulates worker w's minutes in shift s; grows
	// monotonically within an episode.
	workedMinutes [][]float64
	fatigue       []float64

	reached50 bool
	reached80 bool

	recordHistory   bool
	history         []trace.Snapshot
	lastHistoryTime float64
}

// NewFactory validates the bundle and builds a Factory. The RNG drives all
// breakdown/maintenance/defect draws; inject a fixed-seed source for
// reproducible runs.
func NewFactory(cfg *Config, rng *rand.Rand) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid factory config: %w", err)
	}
	if rng == nil {
		return nil, fmt.Errorf("factory requires a random source")
	}
	f := &Factory{
		cfg:             cfg,
		rng:             rng,
		decisionMachine: NoMachine,
	}
	f.Reset(false)
	return f, nil
}

// Config returns the parameter bundle the factory was built with.
func (f *Factory) Config() *Config { return f.cfg }

// Clock returns the current simulated time in minutes.
func (f *Factory) Clock() float64 { return f.clock }

// ProducedGoodParts returns the cumulative good-part count of the episode.
func (f *Factory) ProducedGoodParts() int { return f.producedGoodParts }

// CurrentShift returns the shift index at the current simulated time.
func (f *Factory) CurrentShift() int {
	idx := int(f.clock / f.cfg.ShiftLengthMinutes)
	if idx > f.cfg.NumShifts-1 {
		idx = f.cfg.NumShifts - 1
	}
	return idx
}

// History returns a copy of the recorded timeline snapshots.
func (f *Factory) History() []trace.Snapshot {
	out := make([]trace.Snapshot, len(f.history))
	copy(out, f.history)
	return out
}

// Reset rewinds the factory to the start of a fresh day and returns the
// initial state key. Callable repeatedly; no state leaks between episodes.
func (f *Factory) Reset(recordHistory bool) StateKey {
	f.clock = 0
	f.producedGoodParts = 0

	f.machines = make([]Machine, f.cfg.NumMachines)
	for i := range f.machines {
		f.machines[i] = Machine{
			Status:    MachineIdle,
			TypeIndex: i % len(f.cfg.MachineTypes),
			Priority:  f.cfg.MachinePriorities[i],
			Worker:    NoWorker,
		}
	}
	f.workers = make([]Worker, f.cfg.NumWorkers)
	for i := range f.workers {
		f.workers[i] = Worker{Status: WorkerIdle, Machine: NoMachine}
	}

	f.lastWorkerPerMachine = make([]int, f.cfg.NumMachines)
	for i := range f.lastWorkerPerMachine {
		f.lastWorkerPerMachine[i] = NoWorker
	}

	f.workedMinutes = make([][]float64, f.cfg.NumWorkers)
	for w := range f.workedMinutes {
		f.workedMinutes[w] = make([]float64, f.cfg.NumShifts)
	}
	f.fatigue = make([]float64, f.cfg.NumWorkers)

	f.inFlight = make(map[int]float64)
	f.downUntil = make(map[int]float64)

	f.reached50 = false
	f.reached80 = false

	f.recordHistory = recordHistory
	f.history = nil
	f.lastHistoryTime = 0

	f.decisionMachine = f.selectNextIdleMachine()

	return f.stateKey()
}

// Step resolves one decision: apply the action to the machine awaiting a
// decision, auto-fill the remaining idle machines, advance simulated time to
// the next task completion, resolve completions and failures, and shape the
// reward. Action values 0..NumWorkers-1 assign that worker; NumWorkers
// leaves the machine idle.
func (f *Factory) Step(action int) (StateKey, float64, bool, Info) {
	reward := 0.0

	if f.decisionMachine != NoMachine && action < f.cfg.NumWorkers {
		reward += f.applyAssignment(f.decisionMachine, action)
	}

	reward += f.autoFillIdleMachines()
	f.recoverDownMachines()

	finished := f.advanceTime()
	reward += f.resolveCompletions(finished)

	// Idle-machine penalty, once per call over currently usable idle machines.
	idleCount := 0
	busyCount := 0
	for id := range f.machines {
		switch {
		case f.machines[id].Status == MachineIdle && !f.isDown(id):
			idleCount++
		case f.machines[id].Status == MachineBusy:
			busyCount++
		}
	}
	reward -= f.cfg.Rewards.MachineIdlePenalty * float64(idleCount)
	if idleCount == 0 && busyCount > 0 {
		reward += f.cfg.Rewards.PreventIdle
	}

	done := f.clock >= f.cfg.DayDurationMinutes
	if done {
		if f.producedGoodParts >= f.cfg.TargetProductionPerDay {
			reward += f.cfg.Rewards.GoalBonus
		} else {
			shortfall := float64(f.cfg.TargetProductionPerDay - f.producedGoodParts)
			reward -= f.cfg.Rewards.ShortfallScale * shortfall
		}
		f.decisionMachine = NoMachine
	} else {
		f.decisionMachine = f.selectNextIdleMachine()
	}

	if f.recordHistory {
		if f.clock-f.lastHistoryTime >= historyIntervalMinutes || done {
			f.recordSnapshot()
			f.lastHistoryTime = f.clock
		}
	}

	next := f.stateKey()
	info := Info{
		ProducedGoodParts: f.producedGoodParts,
		CurrentTime:       f.clock,
		CurrentShift:      f.CurrentShift(),
	}
	logrus.Debugf("[t=%07.1f] step action=%d reward=%.2f produced=%d done=%v",
		f.clock, action, reward, f.producedGoodParts, done)
	return next, reward, done, info
}

// applyAssignment binds the given worker to the machine awaiting a decision.
// Targeting a busy worker is a shaped no-op.
func (f *Factory) applyAssignment(machineID, workerID int) float64 {
	if f.workers[workerID].Status == WorkerBusy {
		return -invalidAssignPenalty
	}

	reward := 0.0

	// An idle worker may still hold a stale binding; free that machine first.
	if prev := f.workers[workerID].Machine; prev != NoMachine {
		f.machines[prev].Worker = NoWorker
		f.machines[prev].Status = MachineIdle
		f.machines[prev].TimeRemaining = 0
		delete(f.inFlight, prev)
	}

	f.startTask(machineID, workerID)

	if f.recordHistory {
		f.recordSnapshot()
		f.lastHistoryTime = f.clock
	}

	if last := f.lastWorkerPerMachine[machineID]; last != NoWorker && last != workerID {
		reward -= f.cfg.Rewards.SwitchWorker
	}
	f.lastWorkerPerMachine[machineID] = workerID

	return reward
}

// startTask binds worker and machine and starts the countdown.
func (f *Factory) startTask(machineID, workerID int) {
	m := &f.machines[machineID]
	m.Worker = workerID
	m.Status = MachineBusy
	f.workers[workerID].Machine = machineID
	f.workers[workerID].Status = WorkerBusy

	d := f.processDuration(workerID, m.TypeIndex)
	m.TimeRemaining = d
	f.inFlight[machineID] = d
}

// processDuration is the task length in minutes: base time divided by skill,
// floored at the per-type minimum.
func (f *Factory) processDuration(workerID, typeIndex int) float64 {
	skill := f.cfg.SkillMatrix[workerID][typeIndex]
	raw := f.cfg.BaseProcessTimes[typeIndex] / math.Max(skill, 0.1)
	return math.Max(raw, f.cfg.MinProcessTimes[typeIndex])
}

// autoFillIdleMachines models the shop floor filling out positions the agent
// did not decide: every remaining idle, usable machine greedily takes the
// highest-skill idle worker, in descending machine-priority order. No switch
// penalty and no last-worker tracking here; the agent owns only the decision
// machine.
func (f *Factory) autoFillIdleMachines() float64 {
	available := make([]int, 0, f.cfg.NumWorkers)
	for w := range f.workers {
		if f.workers[w].Status == WorkerIdle {
			available = append(available, w)
		}
	}

	idle := make([]int, 0, f.cfg.NumMachines)
	for id := range f.machines {
		if id == f.decisionMachine {
			// The agent owns this slot; leaving it idle is a real decision.
			continue
		}
		if f.machines[id].Status == MachineIdle && !f.isDown(id) {
			idle = append(idle, id)
		}
	}
	sort.Slice(idle, func(i, j int) bool {
		if f.machines[idle[i]].Priority != f.machines[idle[j]].Priority {
			return f.machines[idle[i]].Priority > f.machines[idle[j]].Priority
		}
		return idle[i] < idle[j]
	})

	for _, id := range idle {
		if len(available) == 0 {
			break
		}
		typeIdx := f.machines[id].TypeIndex

		best := -1
		bestSkill := -1.0
		bestPos := -1
		for pos, w := range available {
			if s := f.cfg.SkillMatrix[w][typeIdx]; s > bestSkill {
				bestSkill = s
				best = w
				bestPos = pos
			}
		}
		if best == -1 {
			break
		}

		f.startTask(id, best)
		available = append(available[:bestPos], available[bestPos+1:]...)
	}
	return 0
}

// recoverDownMachines returns machines whose down-until instant has passed
// to the idle pool.
func (f *Factory) recoverDownMachines() {
	for id := 0; id < f.cfg.NumMachines; id++ {
		until, ok := f.downUntil[id]
		if !ok || f.clock < until {
			continue
		}
		delete(f.downUntil, id)
		if f.machines[id].Status == MachineBroken || f.machines[id].Status == MachineMaintenance {
			f.machines[id].Status = MachineIdle
		}
	}
}

// advanceTime moves the clock to the next task completion (or one minute if
// nothing is in flight), capped at the day horizon, and returns the ids of
// machines whose countdown reached zero, in ascending id order.
func (f *Factory) advanceTime() []int {
	if len(f.inFlight) == 0 {
		advance := math.Min(1.0, f.cfg.DayDurationMinutes-f.clock)
		if advance > 0 {
			f.clock += advance
		}
		return nil
	}

	minRemaining := math.Inf(1)
	for id := 0; id < f.cfg.NumMachines; id++ {
		if rem, ok := f.inFlight[id]; ok && rem < minRemaining {
			minRemaining = rem
		}
	}

	advance := minRemaining
	maxAdvance := f.cfg.DayDurationMinutes - f.clock
	if maxAdvance <= 0 {
		advance = 0
	} else if advance > maxAdvance {
		advance = maxAdvance
	}
	if advance <= 0 {
		return nil
	}

	if f.recordHistory {
		f.recordSnapshot()
		f.lastHistoryTime = f.clock
	}
	f.clock += advance

	var finished []int
	for id := 0; id < f.cfg.NumMachines; id++ {
		rem, ok := f.inFlight[id]
		if !ok {
			continue
		}
		rem -= advance
		if rem <= completionEpsilon {
			f.inFlight[id] = 0
			f.machines[id].TimeRemaining = 0
			finished = append(finished, id)
		} else {
			f.inFlight[id] = rem
			f.machines[id].TimeRemaining = rem
		}
	}
	return finished
}

// resolveCompletions settles every finished task: fatigue and capacity
// accounting, skill-tier shaping, the defect draw, milestone bonuses, and
// the breakdown/maintenance draws. Tasks still unfinished when the horizon
// was crossed are discarded without producing a part.
func (f *Factory) resolveCompletions(finished []int) float64 {
	reward := 0.0
	episodeEnded := f.clock >= f.cfg.DayDurationMinutes

	for _, id := range finished {
		m := &f.machines[id]
		if m.Worker == NoWorker {
			delete(f.inFlight, id)
			continue
		}
		workerID := m.Worker

		if episodeEnded {
			// Timed out at the horizon: free resources, no part, no reward.
			f.releaseTask(id, workerID)
			continue
		}

		typeIdx := m.TypeIndex
		skill := f.cfg.SkillMatrix[workerID][typeIdx]
		shift := f.CurrentShift()

		duration := f.processDuration(workerID, typeIdx)
		f.workedMinutes[workerID][shift] += duration

		if fat := f.updateFatigue(workerID, shift); fat > 0 {
			reward -= f.cfg.FatiguePenaltyScale * fat
		}

		capacity := f.cfg.WorkerShiftCapacityMinutes[workerID][shift]
		worked := f.workedMinutes[workerID][shift]
		if worked > capacity {
			overuse := (worked - capacity) / math.Max(capacity, 1)
			reward -= f.cfg.Rewards.OverCapacity * overuse
		}

		switch {
		case skill >= 0.7:
			reward += f.cfg.Rewards.AppropriateAssignment
		case skill < 0.3:
			reward -= f.cfg.Rewards.SlowProduction
			reward -= f.cfg.Rewards.MismatchLowSkill
		default:
			reward += f.cfg.Rewards.SkillScale * skill
		}

		pDefect := math.Max(0, 0.5-skill)
		if f.rng.Float64() < pDefect {
			reward -= f.cfg.Rewards.DefectiveProduct
		} else {
			reward += f.cfg.Rewards.PerGoodPart
			reward += f.cfg.Rewards.SuccessfulPart
			f.producedGoodParts++
			reward += f.milestoneBonus()
		}

		// Snapshot before the worker leaves the machine so the timeline
		// shows who produced the part.
		f.recordSnapshot()

		if f.checkBreakdown(id) || f.checkMaintenance(id) {
			// The machine is down; only the worker goes back to the pool.
			m.Worker = NoWorker
			f.workers[workerID].Status = WorkerIdle
			f.workers[workerID].Machine = NoMachine
			delete(f.inFlight, id)
			continue
		}

		f.releaseTask(id, workerID)
	}
	return reward
}

// milestoneBonus pays the 50% and 80% target bonuses, each at most once per
// episode, the first time cumulative production crosses the threshold.
func (f *Factory) milestoneBonus() float64 {
	target := float64(f.cfg.TargetProductionPerDay)
	bonus := 0.0
	if !f.reached50 && float64(f.producedGoodParts) >= 0.5*target {
		bonus += f.cfg.Rewards.Reach50Bonus
		f.reached50 = true
	}
	if !f.reached80 && float64(f.producedGoodParts) >= 0.8*target {
		bonus += f.cfg.Rewards.Reach80Bonus
		f.reached80 = true
	}
	return bonus
}

// releaseTask returns machine and worker to idle and clears the in-flight entry.
func (f *Factory) releaseTask(machineID, workerID int) {
	f.machines[machineID].Status = MachineIdle
	f.machines[machineID].Worker = NoWorker
	f.machines[machineID].TimeRemaining = 0
	f.workers[workerID].Status = WorkerIdle
	f.workers[workerID].Machine = NoMachine
	delete(f.inFlight, machineID)
}

// checkBreakdown draws a breakdown for the machine; on a hit it marks the
// machine broken until max(minBreakdownMinutes, uniform(0.5*max, max)) from now.
func (f *Factory) checkBreakdown(machineID int) bool {
	if f.rng.Float64() >= f.cfg.BreakdownProbability {
		return false
	}
	maxDuration := float64(f.cfg.MaxBreakdownShifts) * f.cfg.ShiftLengthMinutes
	duration := math.Max(f.cfg.MinBreakdownMinutes, f.uniform(0.5*maxDuration, maxDuration))
	f.downUntil[machineID] = f.clock + duration
	f.machines[machineID].Status = MachineBroken
	logrus.Debugf("[t=%07.1f] machine %d broke down for %.1f min", f.clock, machineID, duration)
	return true
}

// checkMaintenance is the maintenance counterpart of checkBreakdown; it is
// only consulted when the breakdown draw missed.
func (f *Factory) checkMaintenance(machineID int) bool {
	if f.rng.Float64() >= f.cfg.MaintenanceProbability {
		return false
	}
	maxDuration := float64(f.cfg.MaxMaintenanceShifts) * f.cfg.ShiftLengthMinutes
	duration := math.Max(f.cfg.MinMaintenanceMinutes, f.uniform(0.5*maxDuration, maxDuration))
	f.downUntil[machineID] = f.clock + duration
	f.machines[machineID].Status = MachineMaintenance
	logrus.Debugf("[t=%07.1f] machine %d entered maintenance for %.1f min", f.clock, machineID, duration)
	return true
}

func (f *Factory) uniform(lo, hi float64) float64 {
	return lo + f.rng.Float64()*(hi-lo)
}

// updateFatigue recomputes the worker's fatigue level from the shift usage
// ratio: zero below the threshold, scaling linearly to 1.0 at full capacity.
func (f *Factory) updateFatigue(workerID, shift int) float64 {
	capacity := f.cfg.WorkerShiftCapacityMinutes[workerID][shift]
	if capacity <= 0 {
		return 0
	}
	usage := f.workedMinutes[workerID][shift] / capacity
	if usage < f.cfg.FatigueThresholdRatio {
		return 0
	}
	fat := math.Min(1.0, (usage-f.cfg.FatigueThresholdRatio)/(1.0-f.cfg.FatigueThresholdRatio))
	f.fatigue[workerID] = fat
	return fat
}

// isDown reports whether the machine is inside a breakdown/maintenance window.
func (f *Factory) isDown(machineID int) bool {
	until, ok := f.downUntil[machineID]
	return ok && f.clock < until
}

// selectNextIdleMachine picks the machine awaiting the next decision: idle,
// not down, highest priority first, lowest id on ties. NoMachine when none.
func (f *Factory) selectNextIdleMachine() int {
	best := NoMachine
	for id := 0; id < f.cfg.NumMachines; id++ {
		if f.machines[id].Status != MachineIdle || f.isDown(id) {
			continue
		}
		if best == NoMachine || f.machines[id].Priority > f.machines[best].Priority {
			best = id
		}
	}
	return best
}

// stateKey discretizes the current situation into the agent-facing key.
func (f *Factory) stateKey() StateKey {
	machineID := 0
	priority := 0
	if f.decisionMachine != NoMachine {
		machineID = f.decisionMachine
		priority = f.machines[f.decisionMachine].Priority
	}

	timeRemaining := f.cfg.DayDurationMinutes - f.clock
	var timeBucket int
	switch {
	case timeRemaining <= 0:
		timeBucket = 0
	case timeRemaining <= f.cfg.DayDurationMinutes/4:
		timeBucket = 1
	case timeRemaining <= f.cfg.DayDurationMinutes/2:
		timeBucket = 2
	default:
		timeBucket = 3
	}

	gap := f.cfg.TargetProductionPerDay - f.producedGoodParts
	var gapBucket int
	switch {
	case gap <= 0:
		gapBucket = 0
	case gap <= 30:
		gapBucket = 1
	case gap <= 60:
		gapBucket = 2
	default:
		gapBucket = 3
	}

	workerIdle := make([]int, f.cfg.NumWorkers)
	for w := range f.workers {
		if f.workers[w].Status == WorkerIdle {
			workerIdle[w] = 1
		}
	}

	skillBuckets := make([]int, f.cfg.NumWorkers)
	if f.decisionMachine != NoMachine {
		typeIdx := f.machines[f.decisionMachine].TypeIndex
		for w := 0; w < f.cfg.NumWorkers; w++ {
			skill := f.cfg.SkillMatrix[w][typeIdx]
			switch {
			case skill < 0.3:
				skillBuckets[w] = 0
			case skill < 0.7:
				skillBuckets[w] = 1
			default:
				skillBuckets[w] = 2
			}
		}
	}

	machineStatuses := make([]int, f.cfg.NumMachines)
	for id := range f.machines {
		machineStatuses[id] = int(f.machines[id].Status)
	}

	return StateKey{
		MachineID:       machineID,
		Priority:        priority,
		Shift:           f.CurrentShift(),
		TimeBucket:      timeBucket,
		GapBucket:       gapBucket,
		WorkerIdle:      workerIdle,
		SkillBuckets:    skillBuckets,
		MachineStatuses: machineStatuses,
	}
}

// recordSnapshot appends the current floor state to the timeline when
// recording is enabled.
func (f *Factory) recordSnapshot() {
	if !f.recordHistory {
		return
	}
	assignments := make([]int, f.cfg.NumMachines)
	skills := make([]float64, f.cfg.NumMachines)
	statuses := make([]string, f.cfg.NumMachines)
	for id := range f.machines {
		m := &f.machines[id]
		statuses[id] = m.Status.String()
		if m.Worker != NoWorker {
			assignments[id] = m.Worker
			skills[id] = f.cfg.SkillMatrix[m.Worker][m.TypeIndex]
		} else {
			assignments[id] = NoWorker
			skills[id] = -1.0
		}
	}
	f.history = append(f.history, trace.Snapshot{
		Time:              f.clock,
		Shift:             f.CurrentShift(),
		Assignments:       assignments,
		Skills:            skills,
		Statuses:          statuses,
		ProducedGoodParts: f.producedGoodParts,
	})
}
