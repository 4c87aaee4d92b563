package main

import (
	"context"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Itangalo/scenario-lab-sub001/checkpoint"
	"github.com/Itangalo/scenario-lab-sub001/config"
	"github.com/Itangalo/scenario-lab-sub001/core"
)

var scenarioPath string // Overrides the definition carried in the checkpoint

var resumeCmd = &cobra.Command{
	Use:   "resume <run-dir>",
	Short: "Continue a paused, halted or interrupted run from its latest checkpoint",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := args[0]
		cfg, err := scenarioForDir(dir)
		if err != nil {
			fatalf("%v", err)
		}

		r := newRunner(cfg)
		defer r.Close()

		execute(r, func(ctx context.Context) (core.ScenarioState, error) {
			return r.Resume(ctx, dir)
		})
	},
}

func init() {
	resumeCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario definition overriding the one in the checkpoint")
	branchCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario definition overriding the one in the checkpoint")
}

// scenarioForDir rebuilds the scenario definition for a run directory,
// either from an explicit --scenario file or from the definition the
// checkpoint carries.
func scenarioForDir(dir string) (*config.ScenarioConfig, error) {
	if scenarioPath != "" {
		return config.Load(scenarioPath)
	}

	path, err := checkpoint.LatestPath(dir)
	if err != nil {
		return nil, err
	}
	state, err := checkpoint.Load(path)
	if err != nil {
		return nil, err
	}
	raw, err := yaml.Marshal(state.Config)
	if err != nil {
		return nil, err
	}
	return config.Parse(raw)
}
