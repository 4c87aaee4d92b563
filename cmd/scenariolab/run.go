package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Itangalo/scenario-lab-sub001/api"
	"github.com/Itangalo/scenario-lab-sub001/config"
	"github.com/Itangalo/scenario-lab-sub001/core"
	"github.com/Itangalo/scenario-lab-sub001/runner"
)

var (
	maxTurns    int     // Overrides the scenario's max_turns when > 0
	creditLimit float64 // Overrides the scenario's credit_limit when > 0
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Run a scenario from its definition",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(args[0])
		if err != nil {
			fatalf("%v", err)
		}
		if maxTurns > 0 {
			cfg.MaxTurns = maxTurns
		}
		if creditLimit > 0 {
			cfg.CreditLimit = creditLimit
		}

		r := newRunner(cfg)
		defer r.Close()

		execute(r, func(ctx context.Context) (core.ScenarioState, error) {
			return r.Run(ctx)
		})
	},
}

func init() {
	runCmd.Flags().IntVar(&maxTurns, "max-turns", 0, "Override the scenario's max_turns")
	runCmd.Flags().Float64Var(&creditLimit, "credit-limit", 0, "Override the scenario's credit_limit (USD)")
}

// newRunner assembles a runner from the shared CLI flags.
func newRunner(cfg *config.ScenarioConfig) *runner.Runner {
	opts := []func(o *runner.Options){
		runner.WithCheckpointDir(checkpointDir),
		runner.WithLogger(newLogger()),
	}
	if transcriptDir != "" {
		opts = append(opts, runner.WithTranscriptDir(transcriptDir))
	}
	if analyticsDB != "" {
		opts = append(opts, runner.WithAnalyticsDSN(analyticsDB))
	}
	if maxModelCalls > 0 {
		opts = append(opts, runner.WithMaxModelCalls(maxModelCalls))
	}

	r, err := runner.New(cfg, opts...)
	if err != nil {
		fatalf("%v", err)
	}
	return r
}

// execute drives one run with signal handling and the optional API server.
// The first interrupt requests a graceful stop at the turn boundary; a
// second one aborts through context cancellation.
func execute(r *runner.Runner, fn func(ctx context.Context) (core.ScenarioState, error)) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		<-sigs
		fmt.Println("stop requested, finishing current turn (interrupt again to abort)")
		r.Stop()
		<-sigs
		cancel()
	}()

	var server *api.Server
	if serveAddr != "" {
		server = api.NewServer(r.Control(), r.Bus(), func(o *api.Options) {
			o.Logger = newLogger()
		})
		go func() {
			if err := server.Start(serveAddr); err != nil && err != http.ErrServerClosed {
				fatalf("api server: %v", err)
			}
		}()
	}

	state, err := fn(ctx)

	if server != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = server.Shutdown(shutdownCtx)
	}

	if err != nil {
		fatalf("run failed at turn %d: %v", state.Turn, err)
	}
	printOutcome(state)
}

func printOutcome(state core.ScenarioState) {
	fmt.Printf("run %s finished: status=%s turn=%d cost=$%.4f\n",
		state.RunID, state.Status, state.Turn, state.TotalCost())
	if reason := state.HaltReason(); reason != "" {
		fmt.Printf("halt reason: %s\n", reason)
	}
}
