package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Itangalo/scenario-lab-sub001/analytics"
	"github.com/Itangalo/scenario-lab-sub001/checkpoint"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <run-dir|analytics-db>",
	Short: "Summarize a run directory or an analytics database",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		target := args[0]
		info, err := os.Stat(target)
		if err != nil {
			fatalf("%v", err)
		}
		if info.IsDir() {
			inspectRunDir(target)
			return
		}
		inspectDatabase(target)
	},
}

// inspectRunDir prints the state of the latest checkpoint in a run directory.
func inspectRunDir(dir string) {
	path, err := checkpoint.LatestPath(dir)
	if err != nil {
		fatalf("%v", err)
	}
	state, err := checkpoint.Load(path)
	if err != nil {
		fatalf("%v", err)
	}

	fmt.Printf("scenario:  %s (%s)\n", state.ScenarioName, state.ScenarioID)
	fmt.Printf("run:       %s\n", state.RunID)
	fmt.Printf("status:    %s\n", state.Status)
	fmt.Printf("turn:      %d\n", state.Turn)
	fmt.Printf("cost:      $%.4f over %d model calls\n", state.TotalCost(), len(state.Costs))
	if reason := state.HaltReason(); reason != "" {
		fmt.Printf("halted:    %s\n", reason)
	}
	if from, ok := state.Metadata["branched_from"].(string); ok {
		fmt.Printf("branched:  from run %s at turn %v\n", from, state.Metadata["branch_point"])
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nACTOR\tMODEL\tGOALS")
	for _, a := range state.Actors {
		fmt.Fprintf(w, "%s\t%s\t%d\n", a.Name, a.Model, len(a.CurrentGoals))
	}
	w.Flush()
}

// inspectDatabase prints run summaries and per-actor spend from an
// analytics database.
func inspectDatabase(dsn string) {
	rec, err := analytics.NewRecorder(dsn)
	if err != nil {
		fatalf("%v", err)
	}
	defer rec.Close()

	runs, err := rec.Runs()
	if err != nil {
		fatalf("%v", err)
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSCENARIO\tSTATUS\tTURNS\tCOST\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t$%.4f\t%s\n",
			shortID(r.RunID), r.ScenarioID, r.Status, r.FinalTurn, r.TotalCost,
			r.StartedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()

	for _, r := range runs {
		costs, err := rec.CostByActor(r.RunID)
		if err != nil {
			fatalf("%v", err)
		}
		if len(costs) == 0 {
			continue
		}
		fmt.Printf("\nrun %s spend by actor:\n", shortID(r.RunID))
		for _, c := range costs {
			actor := c.Actor
			if actor == "" {
				actor = "(narrator)"
			}
			fmt.Printf("  %-20s %3d calls  $%.4f\n", actor, c.Calls, c.Cost)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
