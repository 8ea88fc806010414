package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/factory-sim/factory-sim/agent"
	"github.com/factory-sim/factory-sim/sim"
)

// demoCmd runs one untrained episode end to end as a smoke check: does the
// day terminate, do parts come off the machines, how many states did one
// episode touch. Useful before committing to a long training run.
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run one untrained episode and print a summary",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := LoadFactoryConfig(configPath)
		if err != nil {
			logrus.Fatalf("Failed to load factory config: %v", err)
		}

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
		}, rng.ForSubsystem(sim.SubsystemPolicy))
		if err != nil {
			logrus.Fatalf("Failed to build agent: %v", err)
		}

		state := factory.Reset(true)
		episodeReturn := 0.0
		steps := 0
		for ; steps < maxStepsPerEpisode; steps++ {
			action := learner.SelectAction(state, 0, false)
			next, reward, done, info := factory.Step(action)
			learner.Update(state, action, reward, next, done, 0)
			episodeReturn += reward
			state = next
			if done {
				logrus.Infof("Day ended at t=%.1f min in shift %d", info.CurrentTime, info.CurrentShift)
				break
			}
		}

		logrus.Infof("Demo episode: %d steps, return=%.2f, produced=%d/%d, %d states visited, %d snapshots",
			steps+1, episodeReturn, factory.ProducedGoodParts(), cfg.TargetProductionPerDay,
			learner.NumStates(), len(factory.History()))
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
}
