package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/factory-sim/factory-sim/agent"
	"github.com/factory-sim/factory-sim/sim"
	"github.com/factory-sim/factory-sim/sim/trace"
)

// maxStepsPerEpisode is a safety ceiling only; a well-formed episode ends at
// the day horizon long before this.
const maxStepsPerEpisode = 10000

// historyEveryN records a full timeline every Nth training episode; only the
// best-return recorded one is kept.
const historyEveryN = 100

var (
	trainEpisodes        int
	learningRate         float64
	discountFactor       float64
	epsilonStart         float64
	epsilonEnd           float64
	epsilonDecayEpisodes int
)

// TrainingSeries is the per-episode outcome record consumed by the plot
// command.
type TrainingSeries struct {
	Returns     []float64 `json:"returns"`
	Productions []int     `json:"productions"`
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the assignment policy with tabular Q-learning",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := LoadFactoryConfig(configPath)
		if err != nil {
			logrus.Fatalf("Failed to load factory config: %v", err)
		}
		ensureOutputDir()

		rng := sim.NewPartitionedRNG(sim.NewSimulationKey(seed))
		factory, err := sim.NewFactory(cfg, rng.ForSubsystem(sim.SubsystemFactory))
		if err != nil {
			logrus.Fatalf("Failed to build factory: %v", err)
		}
		decayEpisodes := epsilonDecayEpisodes
		if decayEpisodes <= 0 {
			decayEpisodes = trainEpisodes - 1
			if decayEpisodes < 1 {
				decayEpisodes = 1
			}
		}
		learner, err := agent.New(agent.Config{
			NumActions:           cfg.NumActions(),
			LearningRate:         learningRate,
			DiscountFactor:       discountFactor,
			EpsilonStart:         epsilonStart,
			EpsilonEnd:           epsilonEnd,
			EpsilonDecayEpisodes: decayEpisodes,
		}, rng.ForSubsystem(sim.SubsystemPolicy))
		if err != nil {
			logrus.Fatalf("Failed to build agent: %v", err)
		}

		logrus.Infof("Training for %d episodes (%d machines, %d workers, %d actions, seed=%d)",
			trainEpisodes, cfg.NumMachines, cfg.NumWorkers, cfg.NumActions(), seed)
		startTime := time.Now()

		series := TrainingSeries{
			Returns:     make([]float64, 0, trainEpisodes),
			Productions: make([]int, 0, trainEpisodes),
		}
		var bestHistory []trace.Snapshot
		bestReturn := 0.0
		bestEpisode := 0

		for episode := 0; episode < trainEpisodes; episode++ {
			record := (episode+1)%historyEveryN == 0
			episodeReturn := runTrainingEpisode(factory, learner, episode, record)

			series.Returns = append(series.Returns, episodeReturn)
			series.Productions = append(series.Productions, factory.ProducedGoodParts())

			if record {
				if history := factory.History(); len(history) > 0 &&
					(bestHistory == nil || episodeReturn > bestReturn) {
					for i := range history {
						history[i].Episode = episode + 1
					}
					bestHistory = history
					bestReturn = episodeReturn
					bestEpisode = episode + 1
				}
			}

			if episode == 0 || (episode+1)%100 == 0 {
				window := series.Returns
				if len(window) > 100 {
					window = window[len(window)-100:]
				}
				logrus.Infof("Episode %5d: return=%8.2f produced=%3d avg_return=%8.2f epsilon=%.3f",
					episode+1, episodeReturn, factory.ProducedGoodParts(),
					stat.Mean(window, nil), learner.Epsilon(episode))
			}
		}

		logrus.Infof("Training finished in %s; %d distinct states visited", time.Since(startTime), learner.NumStates())
		if bestHistory != nil {
			logrus.Infof("Best recorded episode: %d (return=%.2f, %d snapshots)", bestEpisode, bestReturn, len(bestHistory))
		}

		if err := learner.SaveTable(filepath.Join(outputDir, "qtable.gob")); err != nil {
			logrus.Fatalf("Failed to save value table: %v", err)
		}
		if err := learner.SavePortable(filepath.Join(outputDir, "qtable.json")); err != nil {
			logrus.Fatalf("Failed to save portable table: %v", err)
		}
		if err := writeJSON(filepath.Join(outputDir, "returns.json"), series); err != nil {
			logrus.Fatalf("Failed to save return series: %v", err)
		}
		if bestHistory != nil {
			if err := writeJSON(filepath.Join(outputDir, "best_history.json"), bestHistory); err != nil {
				logrus.Fatalf("Failed to save best-episode history: %v", err)
			}
		}
		logrus.Infof("Artifacts written to %s", outputDir)
	},
}

// runTrainingEpisode drives one full reset/select/step/update episode and
// returns the accumulated reward.
func runTrainingEpisode(factory *sim.Factory, learner *agent.QLearning, episode int, record bool) float64 {
	state := factory.Reset(record)
	episodeReturn := 0.0

	for step := 0; step < maxStepsPerEpisode; step++ {
		action := learner.SelectAction(state, episode, false)
		next, reward, done, _ := factory.Step(action)
		learner.Update(state, action, reward, next, done, episode)
		episodeReturn += reward
		state = next
		if done {
			break
		}
	}
	return episodeReturn
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", " ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func init() {
	trainCmd.Flags().IntVar(&trainEpisodes, "episodes", 10000, "Number of training episodes")
	trainCmd.Flags().Float64Var(&learningRate, "alpha", 0.1, "Starting learning rate")
	trainCmd.Flags().Float64Var(&discountFactor, "gamma", 0.99, "Discount factor")
	trainCmd.Flags().Float64Var(&epsilonStart, "epsilon-start", 1.0, "Initial exploration probability")
	trainCmd.Flags().Float64Var(&epsilonEnd, "epsilon-end", 0.05, "Final exploration probability")
	trainCmd.Flags().IntVar(&epsilonDecayEpisodes, "epsilon-decay-episodes", 0, "Schedule horizon in episodes (defaults to episodes-1)")
	rootCmd.AddCommand(trainCmd)
}
