package sim

import "fmt"

// RewardParams holds every coefficient of the shaped reward signal.
// Positive values are magnitudes; the simulator decides the sign when
// applying them.
type RewardParams struct {
	// Reward for every good part that comes off a machine.
	PerGoodPart float64 `yaml:"reward_per_good_part"`
	// Legacy per-decision idle cost, kept for config compatibility.
	// The per-call idle cost actually charged is MachineIdlePenalty.
	IdleMachinePenalty float64 `yaml:"penalty_idle_machine"`
	// Scale for the proportional mid-skill completion reward.
	SkillScale float64 `yaml:"reward_skill_scale"`
	// Charged when a low-skill (< 0.3) worker finishes a task.
	MismatchLowSkill float64 `yaml:"penalty_mismatch_low_skill"`
	// Charged when a machine restarts with a different worker than its last task.
	SwitchWorker float64 `yaml:"penalty_switch_worker"`
	// Legacy defect cost, kept for config compatibility.
	// Defective completions are charged DefectiveProduct.
	DefectPenalty float64 `yaml:"penalty_defect"`
	// Scaled by the overrun ratio when a worker exceeds shift capacity.
	OverCapacity float64 `yaml:"penalty_over_capacity"`
	// Terminal bonus when the daily production target is met.
	GoalBonus float64 `yaml:"goal_bonus"`
	// Terminal penalty per missing part when the target is missed.
	ShortfallScale float64 `yaml:"shortfall_penalty_scale"`
	// One-time bonus when cumulative production first crosses 50% of target.
	Reach50Bonus float64 `yaml:"bonus_reach_50_percent"`
	// One-time bonus when cumulative production first crosses 80% of target.
	Reach80Bonus float64 `yaml:"bonus_reach_80_percent"`
	// Reward for a high-skill (>= 0.7) worker finishing a task.
	AppropriateAssignment float64 `yaml:"reward_appropriate_assignment"`
	// Charged alongside MismatchLowSkill for low-skill completions.
	SlowProduction float64 `yaml:"penalty_slow_production"`
	// Charged when a completed part is drawn defective.
	DefectiveProduct float64 `yaml:"penalty_defective_product"`
	// Bonus when no machine is idle and at least one is busy.
	PreventIdle float64 `yaml:"reward_prevent_idle"`
	// Charged per idle, not-down machine on every step call.
	MachineIdlePenalty float64 `yaml:"penalty_machine_idle"`
	// Extra reward on top of PerGoodPart for each good part.
	SuccessfulPart float64 `yaml:"reward_successful_part"`
}

// Config is the full parameter bundle for a Factory. It is consumed at
// construction time and never mutated afterwards. Validate must pass before
// the bundle is handed to NewFactory.
type Config struct {
	NumMachines int `yaml:"num_machines"`
	NumWorkers  int `yaml:"num_workers"`
	NumShifts   int `yaml:"num_shifts"`

	ShiftLengthMinutes float64 `yaml:"shift_length_minutes"`
	DayDurationMinutes float64 `yaml:"day_duration_minutes"`

	TargetProductionPerDay int `yaml:"target_production_per_day"`

	// MachineTypes names each machine type; machine i is of type
	// i mod len(MachineTypes).
	MachineTypes []string `yaml:"machine_types"`
	// MachinePriorities holds one priority level per machine; higher is
	// serviced first.
	MachinePriorities []int `yaml:"machine_priorities"`

	// SkillMatrix[w][t] is worker w's proficiency on machine type t,
	// in [0.1, 1.0].
	SkillMatrix [][]float64 `yaml:"skill_matrix"`
	// WorkerShiftCapacityMinutes[w][s] caps worker w's worked minutes in
	// shift s.
	WorkerShiftCapacityMinutes [][]float64 `yaml:"worker_shift_capacity_minutes"`

	// BaseProcessTimes[t] is the nominal minutes per part on type t; the
	// effective duration is BaseProcessTimes[t]/skill floored at
	// MinProcessTimes[t].
	BaseProcessTimes []float64 `yaml:"base_process_times"`
	MinProcessTimes  []float64 `yaml:"min_process_times"`

	BreakdownProbability   float64 `yaml:"machine_breakdown_probability"`
	MaintenanceProbability float64 `yaml:"machine_maintenance_probability"`
	MaxBreakdownShifts     int     `yaml:"max_breakdown_duration_shifts"`
	MaxMaintenanceShifts   int     `yaml:"max_maintenance_duration_shifts"`
	MinBreakdownMinutes    float64 `yaml:"min_breakdown_duration_minutes"`
	MinMaintenanceMinutes  float64 `yaml:"min_maintenance_duration_minutes"`

	// Fatigue starts once a worker's shift usage ratio crosses the
	// threshold and scales linearly up to 1.0 at full capacity headroom.
	FatigueThresholdRatio float64 `yaml:"fatigue_threshold_ratio"`
	FatiguePenaltyScale   float64 `yaml:"fatigue_penalty_scale"`

	Rewards RewardParams `yaml:"reward_params"`
}

// NumActions is the size of the action space: one assignment action per
// worker plus the leave-idle action.
func (c *Config) NumActions() int {
	return c.NumWorkers + 1
}

// Validate checks every required field and range. It returns the first
// problem found; a Config that passes is safe for the lifetime of a Factory.
func (c *Config) Validate() error {
	if c.NumMachines <= 0 {
		return fmt.Errorf("num_machines must be > 0, got %d", c.NumMachines)
	}
	if c.NumWorkers <= 0 {
		return fmt.Errorf("num_workers must be > 0, got %d", c.NumWorkers)
	}
	if c.NumShifts <= 0 {
		return fmt.Errorf("num_shifts must be > 0, got %d", c.NumShifts)
	}
	if c.ShiftLengthMinutes <= 0 {
		return fmt.Errorf("shift_length_minutes must be > 0, got %v", c.ShiftLengthMinutes)
	}
	if c.DayDurationMinutes <= 0 {
		return fmt.Errorf("day_duration_minutes must be > 0, got %v", c.DayDurationMinutes)
	}
	if c.TargetProductionPerDay <= 0 {
		return fmt.Errorf("target_production_per_day must be > 0, got %d", c.TargetProductionPerDay)
	}
	if len(c.MachineTypes) == 0 {
		return fmt.Errorf("machine_types must not be empty")
	}
	if len(c.MachinePriorities) != c.NumMachines {
		return fmt.Errorf("machine_priorities has %d entries, want %d", len(c.MachinePriorities), c.NumMachines)
	}
	if len(c.SkillMatrix) != c.NumWorkers {
		return fmt.Errorf("skill_matrix has %d rows, want %d", len(c.SkillMatrix), c.NumWorkers)
	}
	for w, row := range c.SkillMatrix {
		if len(row) != len(c.MachineTypes) {
			return fmt.Errorf("skill_matrix row %d has %d entries, want %d", w, len(row), len(c.MachineTypes))
		}
		for t, s := range row {
			if s < 0.1 || s > 1.0 {
				return fmt.Errorf("skill_matrix[%d][%d] = %v outside [0.1, 1.0]", w, t, s)
			}
		}
	}
	if len(c.WorkerShiftCapacityMinutes) != c.NumWorkers {
		return fmt.Errorf("worker_shift_capacity_minutes has %d rows, want %d", len(c.WorkerShiftCapacityMinutes), c.NumWorkers)
	}
	for w, row := range c.WorkerShiftCapacityMinutes {
		if len(row) != c.NumShifts {
			return fmt.Errorf("worker_shift_capacity_minutes row %d has %d entries, want %d", w, len(row), c.NumShifts)
		}
		for s, cap := range row {
			if cap < 0 {
				return fmt.Errorf("worker_shift_capacity_minutes[%d][%d] = %v is negative", w, s, cap)
			}
		}
	}
	if len(c.BaseProcessTimes) != len(c.MachineTypes) {
		return fmt.Errorf("base_process_times has %d entries, want %d", len(c.BaseProcessTimes), len(c.MachineTypes))
	}
	if len(c.MinProcessTimes) != len(c.MachineTypes) {
		return fmt.Errorf("min_process_times has %d entries, want %d", len(c.MinProcessTimes), len(c.MachineTypes))
	}
	for t, bt := range c.BaseProcessTimes {
		if bt <= 0 {
			return fmt.Errorf("base_process_times[%d] = %v must be > 0", t, bt)
		}
	}
	for t, mt := range c.MinProcessTimes {
		if mt <= 0 {
			return fmt.Errorf("min_process_times[%d] = %v must be > 0", t, mt)
		}
	}
	if c.BreakdownProbability < 0 || c.BreakdownProbability > 1 {
		return fmt.Errorf("machine_breakdown_probability = %v outside [0, 1]", c.BreakdownProbability)
	}
	if c.MaintenanceProbability < 0 || c.MaintenanceProbability > 1 {
		return fmt.Errorf("machine_maintenance_probability = %v outside [0, 1]", c.MaintenanceProbability)
	}
	if c.MaxBreakdownShifts <= 0 {
		return fmt.Errorf("max_breakdown_duration_shifts must be > 0, got %d", c.MaxBreakdownShifts)
	}
	if c.MaxMaintenanceShifts <= 0 {
		return fmt.Errorf("max_maintenance_duration_shifts must be > 0, got %d", c.MaxMaintenanceShifts)
	}
	if c.MinBreakdownMinutes < 0 {
		return fmt.Errorf("min_breakdown_duration_minutes = %v is negative", c.MinBreakdownMinutes)
	}
	if c.MinMaintenanceMinutes < 0 {
		return fmt.Errorf("min_maintenance_duration_minutes = %v is negative", c.MinMaintenanceMinutes)
	}
	if c.FatigueThresholdRatio <= 0 || c.FatigueThresholdRatio >= 1 {
		return fmt.Errorf("fatigue_threshold_ratio = %v outside (0, 1)", c.FatigueThresholdRatio)
	}
	if c.FatiguePenaltyScale < 0 {
		return fmt.Errorf("fatigue_penalty_scale = %v is negative", c.FatiguePenaltyScale)
	}
	return nil
}
