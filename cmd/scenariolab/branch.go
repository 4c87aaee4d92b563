package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Itangalo/scenario-lab-sub001/checkpoint"
	"github.com/Itangalo/scenario-lab-sub001/core"
)

var (
	atTurn    int    // Branch point (required)
	branchTo  string // Target directory for the fork (required)
	branchDry bool   // Create the fork without executing it
)

var branchCmd = &cobra.Command{
	Use:   "branch <run-dir>",
	Short: "Fork a run at a turn into a new directory and execute the branch",
	Long: `Fork an existing run at a reachable turn. Everything after the branch
point is truncated in the fork; the source run is never modified. Unless
--no-run is given the branch executes immediately.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := args[0]

		if branchDry {
			state, err := checkpoint.Branch(dir, atTurn, branchTo)
			if err != nil {
				fatalf("%v", err)
			}
			fmt.Printf("branched run %s at turn %d into %s\n", state.RunID, atTurn, branchTo)
			return
		}

		cfg, err := scenarioForDir(dir)
		if err != nil {
			fatalf("%v", err)
		}

		r := newRunner(cfg)
		defer r.Close()

		execute(r, func(ctx context.Context) (core.ScenarioState, error) {
			return r.BranchAndRun(ctx, dir, atTurn, branchTo)
		})
	},
}

func init() {
	branchCmd.Flags().IntVar(&atTurn, "at-turn", 0, "Turn to branch at")
	branchCmd.Flags().StringVar(&branchTo, "to", "", "Directory for the branched run")
	branchCmd.Flags().BoolVar(&branchDry, "no-run", false, "Create the branch without executing it")
	_ = branchCmd.MarkFlagRequired("at-turn")
	_ = branchCmd.MarkFlagRequired("to")
}
