package agent

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factory-sim/factory-sim/sim"
)

func testAgentConfig() Config {
	return Config{
		NumActions:           7,
		LearningRate:         0.1,
		DiscountFactor:       0.99,
		EpsilonStart:         1.0,
		EpsilonEnd:           0.05,
		EpsilonDecayEpisodes: 500,
	}
}

func mustAgent(t *testing.T, cfg Config, seed int64) *QLearning {
	t.Helper()
	q, err := New(cfg, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return q
}

func testState(id int) sim.StateKey {
	return sim.StateKey{
		MachineID:       id,
		Priority:        1,
		Shift:           0,
		TimeBucket:      3,
		GapBucket:       3,
		WorkerIdle:      []int{1, 1, 1, 1, 1, 1},
		SkillBuckets:    []int{2, 1, 0, 1, 2, 1},
		MachineStatuses: []int{0, 0, 0, 0},
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero actions", func(c *Config) { c.NumActions = 0 }},
		{"zero learning rate", func(c *Config) { c.LearningRate = 0 }},
		{"learning rate above 1", func(c *Config) { c.LearningRate = 1.5 }},
		{"negative discount", func(c *Config) { c.DiscountFactor = -0.1 }},
		{"discount above 1", func(c *Config) { c.DiscountFactor = 1.1 }},
		{"epsilon start below end", func(c *Config) { c.EpsilonStart = 0.01 }},
		{"epsilon start above 1", func(c *Config) { c.EpsilonStart = 1.5 }},
		{"negative epsilon end", func(c *Config) { c.EpsilonEnd = -0.1; c.EpsilonStart = 0.5 }},
		{"zero decay episodes", func(c *Config) { c.EpsilonDecayEpisodes = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testAgentConfig()
			tc.mutate(&cfg)
			_, err := New(cfg, rand.New(rand.NewSource(1)))
			assert.Error(t, err)
		})
	}

	_, err := New(testAgentConfig(), nil)
	assert.Error(t, err, "nil random source must be rejected")
}

func TestEpsilon_ScheduleShape(t *testing.T) {
	q := mustAgent(t, testAgentConfig(), 1)
	cfg := q.Config()

	assert.InDelta(t, cfg.EpsilonStart, q.Epsilon(0), 1e-9)
	assert.InDelta(t, cfg.EpsilonEnd, q.Epsilon(cfg.EpsilonDecayEpisodes), 1e-9)
	assert.InDelta(t, cfg.EpsilonEnd, q.Epsilon(cfg.EpsilonDecayEpisodes*10), 1e-9)

	// Bounded everywhere and non-increasing after the split point.
	split := int(0.3 * float64(cfg.EpsilonDecayEpisodes))
	prev := q.Epsilon(split)
	for ep := 0; ep <= cfg.EpsilonDecayEpisodes+100; ep++ {
		eps := q.Epsilon(ep)
		require.GreaterOrEqual(t, eps, cfg.EpsilonEnd)
		require.LessOrEqual(t, eps, cfg.EpsilonStart)
		if ep > split {
			require.LessOrEqual(t, eps, prev+1e-12, "epsilon increased at episode %d", ep)
			prev = eps
		}
	}

	// The fast phase lands on max(0.3, epsilonEnd) at the split.
	assert.InDelta(t, 0.3, q.Epsilon(split), 1e-9)
}

func TestEpsilon_TinyDecayHorizon(t *testing.T) {
	cfg := testAgentConfig()
	cfg.EpsilonDecayEpisodes = 1
	q := mustAgent(t, cfg, 1)

	// split clamps to 1; schedule still bounded and terminal.
	assert.InDelta(t, cfg.EpsilonStart, q.Epsilon(0), 1e-9)
	assert.InDelta(t, cfg.EpsilonEnd, q.Epsilon(1), 1e-9)
}

func TestLearningRate_LinearDecayAndSideEffect(t *testing.T) {
	q := mustAgent(t, testAgentConfig(), 1)
	cfg := q.Config()

	assert.InDelta(t, 0.1, q.LearningRate(0), 1e-9)
	assert.InDelta(t, 0.01, q.LearningRate(cfg.EpsilonDecayEpisodes), 1e-9)
	assert.InDelta(t, 0.01, q.LearningRate(cfg.EpsilonDecayEpisodes*3), 1e-9)

	mid := q.LearningRate(cfg.EpsilonDecayEpisodes / 2)
	assert.Greater(t, mid, 0.01)
	assert.Less(t, mid, 0.1)

	// The last-computed rate is what CurrentRate updates use.
	q.LearningRate(0)
	state, next := testState(0), testState(1)
	q.Update(state, 2, 10.0, next, true, CurrentRate)
	assert.InDelta(t, 0.1*10.0, q.Value(state, 2), 1e-9)
}

func TestSelectAction_GreedyIsDeterministicArgmax(t *testing.T) {
	q := mustAgent(t, testAgentConfig(), 3)
	state := testState(0)
	row := q.ensureRow(state.Encode())
	copy(row, []float64{-1, 0.5, 3.25, 0.5, -2, 1, 0})

	for i := 0; i < 100; i++ {
		action := q.SelectAction(state, 0, true)
		require.Equal(t, 2, action)
		for a := 0; a < q.cfg.NumActions; a++ {
			require.GreaterOrEqual(t, q.Value(state, action), q.Value(state, a))
		}
	}
}

func TestSelectAction_UnseenStateSpreadsOverAllActions(t *testing.T) {
	// With an empty table every action maximizes; the tie-break must reach
	// every index eventually.
	q := mustAgent(t, testAgentConfig(), 5)
	seen := make(map[int]bool)
	for i := 0; i < 500; i++ {
		seen[q.SelectAction(testState(0), 0, true)] = true
	}
	assert.Len(t, seen, q.cfg.NumActions)
}

func TestSelectAction_TieBreakStaysAmongMaximizers(t *testing.T) {
	q := mustAgent(t, testAgentConfig(), 7)
	state := testState(0)
	row := q.ensureRow(state.Encode())
	copy(row, []float64{5, -1, 5, 0, 5, -3, 0})

	seen := make(map[int]bool)
	for i := 0; i < 500; i++ {
		action := q.SelectAction(state, 0, true)
		require.Contains(t, []int{0, 2, 4}, action)
		seen[action] = true
	}
	assert.Len(t, seen, 3, "all maximizers should be reachable")
}

func TestSelectAction_ExploresUnderHighEpsilon(t *testing.T) {
	// At episode 0 epsilon is 1.0: selection is uniform even with a
	// strongly peaked row.
	q := mustAgent(t, testAgentConfig(), 11)
	state := testState(0)
	row := q.ensureRow(state.Encode())
	row[3] = 1000

	counts := make(map[int]int)
	for i := 0; i < 2000; i++ {
		counts[q.SelectAction(state, 0, false)]++
	}
	assert.Len(t, counts, q.cfg.NumActions)
	assert.Less(t, counts[3], 2000/2, "exploration must override the greedy action")
}

func TestUpdate_TabularRule(t *testing.T) {
	cfg := testAgentConfig()
	q := mustAgent(t, cfg, 1)
	state, next := testState(0), testState(1)

	// Terminal transition: target is the raw reward.
	q.Update(state, 1, 4.0, next, true, 0)
	alpha0 := 0.1
	assert.InDelta(t, alpha0*4.0, q.Value(state, 1), 1e-9)

	// Non-terminal against an unseen next state: max Q' is 0.
	q2 := mustAgent(t, cfg, 1)
	q2.Update(state, 1, 4.0, next, false, 0)
	assert.InDelta(t, alpha0*4.0, q2.Value(state, 1), 1e-9)

	// Non-terminal against a seen next state bootstraps from its best entry.
	nextRow := q2.ensureRow(next.Encode())
	copy(nextRow, []float64{0, 2.0, 1.0, 0, 0, 0, 0})
	before := q2.Value(state, 1)
	q2.Update(state, 1, 4.0, next, false, 0)
	target := 4.0 + cfg.DiscountFactor*2.0
	want := before + alpha0*(target-before)
	assert.InDelta(t, want, q2.Value(state, 1), 1e-9)
}

func TestUpdate_SeenNextStateWithAllNegativeRow(t *testing.T) {
	// A fully written negative row bootstraps from its true (negative) max,
	// not from zero.
	cfg := testAgentConfig()
	q := mustAgent(t, cfg, 1)
	state, next := testState(0), testState(1)

	nextRow := q.ensureRow(next.Encode())
	for a := range nextRow {
		nextRow[a] = -5.0
	}
	q.Update(state, 0, 0.0, next, false, 0)
	want := 0.1 * (0.0 + cfg.DiscountFactor*(-5.0))
	assert.InDelta(t, want, q.Value(state, 0), 1e-9)
}

func TestUpdate_LazyRowCreation(t *testing.T) {
	q := mustAgent(t, testAgentConfig(), 1)
	assert.Equal(t, 0, q.NumStates())
	assert.Equal(t, 0.0, q.Value(testState(0), 3))

	q.Update(testState(0), 3, 1.0, testState(1), true, 0)
	assert.Equal(t, 1, q.NumStates())
}
