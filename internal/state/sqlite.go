package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/calder-labs/kiln/internal/draws"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store instance. A nil logger discards
// output.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	} else {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// NewRunID creates a new run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// CreateRun inserts a new run row in the running state.
func (s *SQLiteStore) CreateRun(run *Run) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if run.ID == "" {
		run.ID = NewRunID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = RunStatusRunning

	s.logger.Debug("creating run", "id", run.ID, "model", run.Model)

	_, err := s.db.Exec(
		`INSERT INTO runs (id, model, status, iterations, burnin, chains, thin, seed, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Model, string(run.Status),
		run.Iterations, run.BurnIn, run.Chains, run.Thin, run.Seed,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun marks a run as completed or failed.
func (s *SQLiteStore) CompleteRun(id string, status RunStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), now, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	row := s.db.QueryRow(
		`SELECT id, model, status, iterations, burnin, chains, thin, seed, started_at, completed_at, error
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// LatestRun retrieves the most recent completed run for a model.
func (s *SQLiteStore) LatestRun(modelName string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	row := s.db.QueryRow(
		`SELECT id, model, status, iterations, burnin, chains, thin, seed, started_at, completed_at, error
		 FROM runs WHERE model = ? AND status = ? ORDER BY started_at DESC LIMIT 1`,
		modelName, string(RunStatusCompleted))
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no completed run for model %s", modelName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var status string
	var completedAt sql.NullTime
	var errMsg sql.NullString
	err := row.Scan(&run.ID, &run.Model, &status,
		&run.Iterations, &run.BurnIn, &run.Chains, &run.Thin, &run.Seed,
		&run.StartedAt, &completedAt, &errMsg)
	if err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	return &run, nil
}

// SaveBundle persists a run's retained draws and acceptance rates in one
// transaction.
func (s *SQLiteStore) SaveBundle(runID string, b *draws.Bundle) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	monitorStmt, err := tx.Prepare(`INSERT INTO run_monitors (run_id, ord, name) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare monitor insert: %w", err)
	}
	defer monitorStmt.Close()

	drawStmt, err := tx.Prepare(`INSERT INTO run_draws (run_id, param, chain, position, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare draw insert: %w", err)
	}
	defer drawStmt.Close()

	acceptStmt, err := tx.Prepare(`INSERT INTO run_acceptance (run_id, param, chain, rate) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare acceptance insert: %w", err)
	}
	defer acceptStmt.Close()

	for ord, param := range b.Params() {
		if _, err := monitorStmt.Exec(runID, ord, param); err != nil {
			return fmt.Errorf("failed to insert monitor %s: %w", param, err)
		}
		chains, err := b.ChainView(param)
		if err != nil {
			return err
		}
		for chain, values := range chains {
			for pos, v := range values {
				if _, err := drawStmt.Exec(runID, param, chain, pos, v); err != nil {
					return fmt.Errorf("failed to insert draw: %w", err)
				}
			}
		}
		for chain, rate := range b.Acceptance(param) {
			if _, err := acceptStmt.Exec(runID, param, chain, rate); err != nil {
				return fmt.Errorf("failed to insert acceptance rate: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit draws: %w", err)
	}

	s.logger.Debug("saved bundle", "run_id", runID,
		"params", len(b.Params()), "rows", b.Chains()*b.PerChain())
	return nil
}

// LoadBundle reconstructs a run's draw bundle.
func (s *SQLiteStore) LoadBundle(runID string) (*draws.Bundle, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT name FROM run_monitors WHERE run_id = ? ORDER BY ord`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load monitors: %w", err)
	}
	var params []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return nil, err
		}
		params = append(params, name)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(params) == 0 {
		return nil, fmt.Errorf("run %s has no saved draws", runID)
	}

	perChain := (run.Iterations - run.BurnIn) / run.Thin
	bundle := draws.NewBundle(params, run.Chains, perChain)

	drawRows, err := s.db.Query(
		`SELECT param, chain, value FROM run_draws WHERE run_id = ? ORDER BY param, chain, position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load draws: %w", err)
	}
	defer drawRows.Close()
	for drawRows.Next() {
		var param string
		var chain int
		var value float64
		if err := drawRows.Scan(&param, &chain, &value); err != nil {
			return nil, err
		}
		bundle.Append(param, chain, value)
	}
	if err := drawRows.Err(); err != nil {
		return nil, err
	}

	acceptRows, err := s.db.Query(
		`SELECT param, chain, rate FROM run_acceptance WHERE run_id = ? ORDER BY param, chain`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load acceptance rates: %w", err)
	}
	defer acceptRows.Close()
	rates := make(map[string][]float64)
	for acceptRows.Next() {
		var param string
		var chain int
		var rate float64
		if err := acceptRows.Scan(&param, &chain, &rate); err != nil {
			return nil, err
		}
		rates[param] = append(rates[param], rate)
	}
	if err := acceptRows.Err(); err != nil {
		return nil, err
	}
	for param, r := range rates {
		bundle.SetAcceptance(param, r)
	}

	return bundle, nil
}
