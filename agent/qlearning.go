// Package agent implements the tabular Q-learning side of the trainer: the
// state-action value table, the exploration and learning-rate schedules, and
// table persistence in a native and a portable form.
package agent

import (
	"fmt"
	"math/rand"

	"github.com/factory-sim/factory-sim/sim"
)

// CurrentRate tells Update to reuse the agent's last-computed learning rate
// instead of deriving one from an episode index.
const CurrentRate = -1

// Config holds the learning hyperparameters.
type Config struct {
	// NumActions is the action-space size (workers + leave-idle).
	NumActions int
	// LearningRate is the starting alpha; it decays linearly to a tenth of
	// itself over EpsilonDecayEpisodes.
	LearningRate   float64
	DiscountFactor float64
	EpsilonStart   float64
	EpsilonEnd     float64
	// EpsilonDecayEpisodes is the horizon of both schedules.
	EpsilonDecayEpisodes int
}

func (c Config) validate() error {
	if c.NumActions <= 0 {
		return fmt.Errorf("num actions must be > 0, got %d", c.NumActions)
	}
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		return fmt.Errorf("learning rate = %v outside (0, 1]", c.LearningRate)
	}
	if c.DiscountFactor < 0 || c.DiscountFactor > 1 {
		return fmt.Errorf("discount factor = %v outside [0, 1]", c.DiscountFactor)
	}
	if c.EpsilonStart < c.EpsilonEnd {
		return fmt.Errorf("epsilon start %v below epsilon end %v", c.EpsilonStart, c.EpsilonEnd)
	}
	if c.EpsilonEnd < 0 || c.EpsilonStart > 1 {
		return fmt.Errorf("epsilon range [%v, %v] outside [0, 1]", c.EpsilonEnd, c.EpsilonStart)
	}
	if c.EpsilonDecayEpisodes <= 0 {
		return fmt.Errorf("epsilon decay episodes must be > 0, got %d", c.EpsilonDecayEpisodes)
	}
	return nil
}

// QLearning is a tabular Q-learning agent with epsilon-greedy exploration.
// The value table maps encoded state keys to one dense per-action row;
// rows are created lazily and absent entries read as 0.
type QLearning struct {
	cfg Config
	rng *rand.Rand

	alphaStart float64
	alphaEnd   float64
	// alpha is the last-computed learning rate, used when Update is called
	// with CurrentRate.
	alpha float64

	table map[string][]float64
}

// New builds an agent. The RNG drives exploration and tie-break draws;
// inject a fixed-seed source for reproducible runs.
func New(cfg Config, rng *rand.Rand) (*QLearning, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid agent config: %w", err)
	}
	if rng == nil {
		return nil, fmt.Errorf("agent requires a random source")
	}
	return &QLearning{
		cfg:        cfg,
		rng:        rng,
		alphaStart: cfg.LearningRate,
		alphaEnd:   cfg.LearningRate * 0.1,
		alpha:      cfg.LearningRate,
		table:      make(map[string][]float64),
	}, nil
}

// Config returns the agent's hyperparameters.
func (q *QLearning) Config() Config { return q.cfg }

// NumStates returns the number of distinct states in the table.
func (q *QLearning) NumStates() int { return len(q.table) }

// Epsilon returns the exploration probability for the episode. The schedule
// is piecewise linear: a fast first phase down to max(0.3, epsilonEnd) over
// the first 30% of the decay horizon, then a slow phase down to epsilonEnd.
func (q *QLearning) Epsilon(episode int) float64 {
	if episode >= q.cfg.EpsilonDecayEpisodes {
		return q.cfg.EpsilonEnd
	}

	split := int(0.3 * float64(q.cfg.EpsilonDecayEpisodes))
	if split <= 0 {
		split = 1
	}

	var eps float64
	mid := q.cfg.EpsilonEnd
	if mid < 0.3 {
		mid = 0.3
	}
	if episode <= split {
		ratio := float64(episode) / float64(split)
		eps = q.cfg.EpsilonStart + ratio*(mid-q.cfg.EpsilonStart)
	} else {
		remaining := q.cfg.EpsilonDecayEpisodes - split
		if remaining <= 0 {
			return q.cfg.EpsilonEnd
		}
		ratio := float64(episode-split) / float64(remaining)
		eps = mid + ratio*(q.cfg.EpsilonEnd-mid)
	}

	if eps > q.cfg.EpsilonStart {
		eps = q.cfg.EpsilonStart
	}
	if eps < q.cfg.EpsilonEnd {
		eps = q.cfg.EpsilonEnd
	}
	return eps
}

// LearningRate returns alpha for the episode: linear from the starting rate
// to a tenth of it over the decay horizon, clamped past it. It also records
// the result as the agent's current rate.
func (q *QLearning) LearningRate(episode int) float64 {
	var alpha float64
	if episode >= q.cfg.EpsilonDecayEpisodes {
		alpha = q.alphaEnd
	} else {
		horizon := q.cfg.EpsilonDecayEpisodes
		if horizon < 1 {
			horizon = 1
		}
		ratio := float64(episode) / float64(horizon)
		alpha = q.alphaStart + ratio*(q.alphaEnd-q.alphaStart)
	}
	q.alpha = alpha
	return alpha
}

// SelectAction picks an action for the state: with probability
// Epsilon(episode) a uniformly random one, otherwise the argmax over the
// table row, ties broken uniformly among the maximizers. Greedy forces the
// exploration probability to zero.
func (q *QLearning) SelectAction(state sim.StateKey, episode int, greedy bool) int {
	eps := 0.0
	if !greedy {
		eps = q.Epsilon(episode)
	}
	if eps > 0 && q.rng.Float64() < eps {
		return q.rng.Intn(q.cfg.NumActions)
	}

	row := q.table[state.Encode()]
	best := make([]int, 0, q.cfg.NumActions)
	maxVal := 0.0
	for a := 0; a < q.cfg.NumActions; a++ {
		val := 0.0
		if row != nil {
			val = row[a]
		}
		switch {
		case len(best) == 0 || val > maxVal:
			best = append(best[:0], a)
			maxVal = val
		case val == maxVal:
			best = append(best, a)
		}
	}
	if len(best) == 1 {
		return best[0]
	}
	return best[q.rng.Intn(len(best))]
}

// Update applies the one-step Q-learning rule:
//
//	Q(s,a) += alpha * (r + gamma * max_a' Q(s',a') - Q(s,a))
//
// with the discounted term dropped on terminal transitions. Pass CurrentRate
// as episode to reuse the last-computed learning rate.
func (q *QLearning) Update(state sim.StateKey, action int, reward float64, next sim.StateKey, done bool, episode int) {
	row := q.ensureRow(state.Encode())
	current := row[action]

	target := reward
	if !done {
		maxNext := 0.0
		if nextRow, ok := q.table[next.Encode()]; ok {
			maxNext = nextRow[0]
			for _, v := range nextRow[1:] {
				if v > maxNext {
					maxNext = v
				}
			}
		}
		target = reward + q.cfg.DiscountFactor*maxNext
	}

	alpha := q.alpha
	if episode != CurrentRate {
		alpha = q.LearningRate(episode)
	}
	row[action] = current + alpha*(target-current)
}

// Value returns the table entry for the state and action (0 when unseen).
func (q *QLearning) Value(state sim.StateKey, action int) float64 {
	if row, ok := q.table[state.Encode()]; ok {
		return row[action]
	}
	return 0
}

func (q *QLearning) ensureRow(key string) []float64 {
	row, ok := q.table[key]
	if !ok {
		row = make([]float64, q.cfg.NumActions)
		q.table[key] = row
	}
	return row
}
