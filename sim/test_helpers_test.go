package sim

import (
	"math/rand"
	"testing"
)

// deterministicConfig builds a single-type, single-shift bundle with all
// failure probabilities at zero. Every worker has skill 0.9 unless the test
// overrides the matrix.
func deterministicConfig(machines, workers int) *Config {
	skills := make([][]float64, workers)
	caps := make([][]float64, workers)
	for w := 0; w < workers; w++ {
		skills[w] = []float64{0.9}
		caps[w] = []float64{10000}
	}
	priorities := make([]int, machines)
	return &Config{
		NumMachines:                machines,
		NumWorkers:                 workers,
		NumShifts:                  1,
		ShiftLengthMinutes:         2000,
		DayDurationMinutes:         2000,
		TargetProductionPerDay:     100,
		MachineTypes:               []string{"press"},
		MachinePriorities:          priorities,
		SkillMatrix:                skills,
		WorkerShiftCapacityMinutes: caps,
		BaseProcessTimes:           []float64{10},
		MinProcessTimes:            []float64{10},
		BreakdownProbability:       0,
		MaintenanceProbability:     0,
		MaxBreakdownShifts:         1,
		MaxMaintenanceShifts:       1,
		MinBreakdownMinutes:        60,
		MinMaintenanceMinutes:      30,
		FatigueThresholdRatio:      0.8,
		FatiguePenaltyScale:        0.5,
		Rewards: RewardParams{
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

func mustFactory(t *testing.T, cfg *Config, seed int64) *Factory {
	t.Helper()
	f, err := NewFactory(cfg, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	return f
}

// assertLinksConsistent checks the worker/machine binding symmetry and the
// busy-iff-assigned machine invariant.
func assertLinksConsistent(t *testing.T, f *Factory) {
	t.Helper()
	for w := range f.workers {
		if m := f.workers[w].Machine; m != NoMachine {
			if f.machines[m].Worker != w {
				t.Fatalf("worker %d points at machine %d, but that machine holds worker %d", w, m, f.machines[m].Worker)
			}
		}
	}
	for id := range f.machines {
		hasWorker := f.machines[id].Worker != NoWorker
		busy := f.machines[id].Status == MachineBusy
		if hasWorker != busy {
			t.Fatalf("machine %d: worker set = %v but status = %v", id, hasWorker, f.machines[id].Status)
		}
	}
}
