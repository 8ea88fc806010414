package cmd

import (
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/factory-sim/factory-sim/agent"
	"github.com/factory-sim/factory-sim/sim"
)

var (
	evalEpisodes int
	tablePath    string
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate a trained value table with the greedy policy",
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
		learner, err := agent.New(agent.Config{
			NumActions:           cfg.NumActions(),
			LearningRate:         0.1,
			DiscountFactor:       0.99,
			EpsilonStart:         1.0,
			EpsilonEnd:           0.05,
			EpsilonDecayEpisodes: 1,
		}, rng.ForSubsystem(sim.SubsystemEval))
		if err != nil {
			logrus.Fatalf("Failed to build agent: %v", err)
		}

		path := tablePath
		if path == "" {
			path = filepath.Join(outputDir, "qtable.json")
		}
		if err := learner.LoadPortable(path); err != nil {
			logrus.Fatalf("Failed to load value table (train first?): %v", err)
		}
		logrus.Infof("Loaded value table from %s (%d distinct states)", path, learner.NumStates())

		returns := make([]float64, evalEpisodes)
		productions := make([]float64, evalEpisodes)
		var firstHistory any

		for episode := 0; episode < evalEpisodes; episode++ {
			record := episode == 0
			state := factory.Reset(record)
			episodeReturn := 0.0
			for step := 0; step < maxStepsPerEpisode; step++ {
				action := learner.SelectAction(state, episode, true)
				next, reward, done, _ := factory.Step(action)
				episodeReturn += reward
				state = next
				if done {
					break
				}
			}
			returns[episode] = episodeReturn
			productions[episode] = float64(factory.ProducedGoodParts())
			if record {
				firstHistory = factory.History()
			}
		}

		logrus.Infof("Greedy evaluation over %d episodes: mean return=%.2f, mean production=%.1f (target %d)",
			evalEpisodes, stat.Mean(returns, nil), stat.Mean(productions, nil), cfg.TargetProductionPerDay)

		if firstHistory != nil {
			historyPath := filepath.Join(outputDir, "eval_history.json")
			if err := writeJSON(historyPath, firstHistory); err != nil {
				logrus.Fatalf("Failed to save evaluation history: %v", err)
			}
			logrus.Infof("First-episode timeline written to %s", historyPath)
		}
	},
}

func init() {
	evalCmd.Flags().IntVar(&evalEpisodes, "episodes", 100, "Number of greedy evaluation episodes")
	evalCmd.Flags().StringVar(&tablePath, "table", "", "Portable value-table path (defaults to <out>/qtable.json)")
	rootCmd.AddCommand(evalCmd)
}
