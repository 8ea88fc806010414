package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/factory-sim/factory-sim/sim"
)

// DefaultFactoryConfig returns the built-in demo bundle: a 4-machine,
// 6-worker, 3-shift day with a deliberately uneven skill matrix so the
// assignment problem has structure worth learning.
func DefaultFactoryConfig() *sim.Config {
	const (
		numMachines = 4
		numWorkers  = 6
		numShifts   = 3
		shiftLength = 480.0
	)
	return &sim.Config{
		NumMachines:            numMachines,
		NumWorkers:             numWorkers,
		NumShifts:              numShifts,
		ShiftLengthMinutes:     shiftLength,
		DayDurationMinutes:     numShifts * shiftLength,
		TargetProductionPerDay: 90,

		MachineTypes:      []string{"press", "lathe", "welding", "packing"},
		MachinePriorities: []int{1, 2, 1, 0},

		// One specialist per machine type plus two generalists.
		SkillMatrix: [][]float64{
			{0.95, 0.35, 0.15, 0.20},
			{0.25, 0.90, 0.65, 0.55},
			{0.55, 0.30, 0.95, 0.85},
			{0.45, 0.50, 0.48, 0.52},
			{0.70, 0.65, 0.55, 0.92},
			{0.88, 0.58, 0.42, 0.68},
		},
		WorkerShiftCapacityMinutes: [][]float64{
			{480, 460, 480},
			{460, 480, 460},
			{440, 420, 440},
			{460, 460, 460},
			{480, 440, 480},
			{470, 450, 470},
		},

		BaseProcessTimes: []float64{6.0, 7.0, 9.0, 5.0},
		// Physical floors per type; skill cannot push a part below these.
		MinProcessTimes: []float64{10.0, 45.0, 75.0, 25.0},

		BreakdownProbability:   0.02,
		MaintenanceProbability: 0.01,
		MaxBreakdownShifts:     2,
		MaxMaintenanceShifts:   2,
		MinBreakdownMinutes:    60,
		MinMaintenanceMinutes:  30,

		FatigueThresholdRatio: 0.8,
		FatiguePenaltyScale:   0.5,

		Rewards: sim.RewardParams{
			PerGoodPart:           2.0,
			IdleMachinePenalty:    0.2,
			SkillScale:            0.5,
			MismatchLowSkill:      1.0,
			SwitchWorker:          0.5,
			DefectPenalty:         10.0,
			OverCapacity:          1.0,
			GoalBonus:             80.0,
			ShortfallScale:        0.3,
			Reach50Bonus:          10.0,
			Reach80Bonus:          20.0,
			AppropriateAssignment: 15.0,
			SlowProduction:        8.0,
			DefectiveProduct:      25.0,
			PreventIdle:           5.0,
			MachineIdlePenalty:    10.0,
			SuccessfulPart:        1.0,
		},
	}
}

// LoadFactoryConfig parses a factory.yaml bundle with strict field checking,
// so typos in keys cause errors instead of silent defaults. An empty path
// returns the built-in demo bundle.
func LoadFactoryConfig(path string) (*sim.Config, error) {
	if path == "" {
		return DefaultFactoryConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read factory config: %w", err)
	}
	var cfg sim.Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse factory config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("factory config %s: %w", path, err)
	}
	return &cfg, nil
}
