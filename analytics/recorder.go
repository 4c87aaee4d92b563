// Package analytics records run lifecycle data into a SQLite database as
// events arrive on the bus, and serves the aggregate queries the CLI
// inspect command presents. It is an external consumer of the engine: the
// core never depends on it.
package analytics

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Itangalo/scenario-lab-sub001/bus"
	"github.com/Itangalo/scenario-lab-sub001/core"
	"github.com/Itangalo/scenario-lab-sub001/logging"
)

// Options configures a Recorder.
type Options struct {
	// Logger records failed inserts. Defaults to NoOp logger if nil.
	Logger logging.Logger
}

// Recorder subscribes to a bus with a wildcard handler and writes lifecycle
// rows as events arrive. Inserts serialize through an internal mutex: the
// database has a single writer regardless of how many handlers the bus runs
// concurrently.
type Recorder struct {
	db     *sql.DB
	logger logging.Logger

	mu       sync.Mutex
	attached *bus.Bus
	sub      bus.Subscription
}

// NewRecorder opens (or creates) the database at dsn and runs the embedded
// migrations. Use ":memory:" for a volatile database in tests.
func NewRecorder(dsn string, optFns ...func(o *Options)) (*Recorder, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open analytics database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection so the schema stays visible across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	r := &Recorder{db: db, logger: core.EnsureLogger(opts.Logger)}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate analytics database: %w", err)
	}
	return r, nil
}

// migrate runs database migrations.
func (r *Recorder) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			scenario_id TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME,
			status TEXT NOT NULL DEFAULT 'running',
			final_turn INTEGER NOT NULL DEFAULT 0,
			total_cost REAL NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS turns (
			run_id TEXT NOT NULL,
			turn INTEGER NOT NULL,
			started_at DATETIME,
			completed_at DATETIME,
			phases INTEGER NOT NULL DEFAULT 0,
			total_cost REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, turn)
		)`,
		`CREATE TABLE IF NOT EXISTS phase_events (
			run_id TEXT NOT NULL,
			turn INTEGER NOT NULL,
			phase TEXT NOT NULL,
			event TEXT NOT NULL,
			at DATETIME NOT NULL,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_phase_events_run ON phase_events(run_id, turn)`,
		`CREATE TABLE IF NOT EXISTS costs (
			run_id TEXT NOT NULL,
			turn INTEGER NOT NULL,
			actor TEXT NOT NULL,
			phase TEXT NOT NULL,
			model TEXT NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			cost REAL NOT NULL,
			at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_costs_run ON costs(run_id, turn)`,
		`CREATE TABLE IF NOT EXISTS metrics (
			run_id TEXT NOT NULL,
			turn INTEGER NOT NULL,
			name TEXT NOT NULL,
			value REAL NOT NULL,
			actor TEXT,
			at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_run ON metrics(run_id, name)`,
	}

	for _, m := range migrations {
		if _, err := r.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Attach subscribes the recorder to the bus. Call Close (or Detach) before
// discarding the recorder.
func (r *Recorder) Attach(b *bus.Bus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.attached != nil {
		r.attached.Off(r.sub)
	}
	r.attached = b
	r.sub = b.On(core.EventAny, r.handle)
}

// Detach unsubscribes from the bus, if attached.
func (r *Recorder) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attached != nil {
		r.attached.Off(r.sub)
		r.attached = nil
	}
}

// Close detaches and closes the database.
func (r *Recorder) Close() error {
	r.Detach()
	return r.db.Close()
}

// handle routes one bus event to its insert. Returned errors surface
// through the bus's isolated error log; they never reach the turn loop.
func (r *Recorder) handle(ev core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	runID := ev.CorrelationID
	if id, ok := ev.Str("run_id"); ok {
		runID = id
	}
	turn, _ := ev.Int("turn")

	switch ev.Type {
	case core.EventScenarioStarted, core.EventScenarioResumed:
		scenarioID, _ := ev.Str("scenario_id")
		_, err := r.db.Exec(
			`INSERT INTO runs (run_id, scenario_id, started_at) VALUES (?, ?, ?)
			 ON CONFLICT(run_id) DO UPDATE SET status = 'running'`,
			runID, scenarioID, ev.Timestamp)
		return err

	case core.EventScenarioCompleted, core.EventScenarioHalted,
		core.EventScenarioFailed, core.EventScenarioPaused:
		status := strings.TrimPrefix(ev.Type.String(), "scenario_")
		totalCost, _ := ev.Float("total_cost")
		_, err := r.db.Exec(
			`UPDATE runs SET finished_at = ?, status = ?, final_turn = ?, total_cost = ?
			 WHERE run_id = ?`,
			ev.Timestamp, status, turn, totalCost, runID)
		return err

	case core.EventTurnStarted:
		_, err := r.db.Exec(
			`INSERT INTO turns (run_id, turn, started_at) VALUES (?, ?, ?)
			 ON CONFLICT(run_id, turn) DO UPDATE SET started_at = excluded.started_at`,
			runID, turn, ev.Timestamp)
		return err

	case core.EventTurnCompleted:
		phases, _ := ev.Int("phases")
		totalCost, _ := ev.Float("total_cost")
		if _, err := r.db.Exec(
			`UPDATE turns SET completed_at = ?, phases = ?, total_cost = ? WHERE run_id = ? AND turn = ?`,
			ev.Timestamp, phases, totalCost, runID, turn); err != nil {
			return err
		}
		if state, ok := ev.Data["state"].(core.ScenarioState); ok {
			return r.recordTurnDetails(runID, turn, state)
		}
		return nil

	case core.EventPhaseStarted, core.EventPhaseCompleted, core.EventPhaseFailed:
		phase, _ := ev.Str("phase")
		errMsg, _ := ev.Str("error")
		_, err := r.db.Exec(
			`INSERT INTO phase_events (run_id, turn, phase, event, at, error) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, turn, phase, ev.Type.String(), ev.Timestamp, nullable(errMsg))
		return err
	}

	return nil
}

// recordTurnDetails copies the turn's cost and metric records out of the
// state snapshot carried by the turn-completed event.
func (r *Recorder) recordTurnDetails(runID string, turn int, state core.ScenarioState) error {
	for _, c := range state.Costs {
		if c.Turn != turn {
			continue
		}
		if _, err := r.db.Exec(
			`INSERT INTO costs (run_id, turn, actor, phase, model, input_tokens, output_tokens, cost, at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, c.Turn, string(c.Actor), c.Phase.String(), c.Model,
			c.InputTokens, c.OutputTokens, c.Cost, c.Timestamp); err != nil {
			return err
		}
	}
	for _, m := range state.Metrics {
		if m.Turn != turn {
			continue
		}
		if _, err := r.db.Exec(
			`INSERT INTO metrics (run_id, turn, name, value, actor, at) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, m.Turn, m.Name, m.Value, nullable(string(m.Actor)), m.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// RunSummary aggregates one run for the inspect command.
type RunSummary struct {
	RunID      string
	ScenarioID string
	Status     string
	FinalTurn  int
	TotalCost  float64
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

// Runs lists recorded runs, most recent first.
func (r *Recorder) Runs() ([]RunSummary, error) {
	rows, err := r.db.Query(
		`SELECT run_id, scenario_id, status, final_turn, total_cost, started_at, finished_at
		 FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.RunID, &s.ScenarioID, &s.Status, &s.FinalTurn,
			&s.TotalCost, &s.StartedAt, &s.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ActorCost is one actor's share of a run's spend.
type ActorCost struct {
	Actor string
	Calls int
	Cost  float64
}

// CostByActor aggregates spend per actor for one run, most expensive first.
// The narrator's unattributed spend appears under an empty actor.
func (r *Recorder) CostByActor(runID string) ([]ActorCost, error) {
	rows, err := r.db.Query(
		`SELECT actor, COUNT(*), SUM(cost) FROM costs WHERE run_id = ?
		 GROUP BY actor ORDER BY SUM(cost) DESC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query costs: %w", err)
	}
	defer rows.Close()

	var out []ActorCost
	for rows.Next() {
		var c ActorCost
		if err := rows.Scan(&c.Actor, &c.Calls, &c.Cost); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TurnStat summarizes one turn of a run.
type TurnStat struct {
	Turn       int
	Phases     int
	TotalCost  float64
	DurationMS int64
}

// TurnStats returns per-turn phase counts, cumulative cost and wall-clock
// duration for one run, in turn order.
func (r *Recorder) TurnStats(runID string) ([]TurnStat, error) {
	rows, err := r.db.Query(
		`SELECT turn, phases, total_cost,
		        CAST((julianday(completed_at) - julianday(started_at)) * 86400000 AS INTEGER)
		 FROM turns WHERE run_id = ? AND completed_at IS NOT NULL ORDER BY turn`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var out []TurnStat
	for rows.Next() {
		var t TurnStat
		if err := rows.Scan(&t.Turn, &t.Phases, &t.TotalCost, &t.DurationMS); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MetricPoint is one sample of a named metric.
type MetricPoint struct {
	Turn  int
	Value float64
}

// MetricSeries returns the per-turn series of one metric for a run.
func (r *Recorder) MetricSeries(runID, name string) ([]MetricPoint, error) {
	rows, err := r.db.Query(
		`SELECT turn, value FROM metrics WHERE run_id = ? AND name = ? ORDER BY turn`, runID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	var out []MetricPoint
	for rows.Next() {
		var p MetricPoint
		if err := rows.Scan(&p.Turn, &p.Value); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
