package manager

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var ErrDatabaseNotInitialized = errors.New("database not initialized")

// PersistentStore manages SQLite-backed run metadata and results.
type PersistentStore struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// NewPersistentStore creates a new persistent store with a SQLite backend.
func NewPersistentStore(dbPath string) (*PersistentStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &PersistentStore{
		db:   db,
		path: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (ps *PersistentStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS sim_runs (
			run_id TEXT PRIMARY KEY,
			scenario_fingerprint TEXT NOT NULL,
			state TEXT NOT NULL,
			error_message TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			metadata TEXT
		);

		CREATE TABLE IF NOT EXISTS sim_results (
			run_id TEXT PRIMARY KEY,
			completion_times TEXT NOT NULL,
			port_summary TEXT NOT NULL,
			trace_len INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (run_id) REFERENCES sim_runs(run_id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_runs_state ON sim_runs(state);
		CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON sim_runs(scenario_fingerprint);
	`

	if _, err := ps.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	var version int
	err := ps.db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		if _, err := ps.db.Exec("INSERT INTO schema_version (version) VALUES (1)"); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to query schema version: %w", err)
	}

	return nil
}

// Ping verifies the database connection, for health checks.
func (ps *PersistentStore) Ping(ctx context.Context) error {
	if ps.db == nil {
		return ErrDatabaseNotInitialized
	}
	return ps.db.PingContext(ctx)
}

// SaveRun persists a run's metadata (and results, once set) to the database.
func (ps *PersistentStore) SaveRun(run *SimRun) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	metadataJSON, err := json.Marshal(run.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO sim_runs
		(run_id, scenario_fingerprint, state, error_message, created_at, updated_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = ps.db.Exec(query,
		run.ID,
		run.ScenarioFingerprint,
		run.State.String(),
		run.ErrorMessage,
		run.StartTime,
		run.UpdateTime,
		string(metadataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if run.CompletionTimes == nil {
		return nil
	}

	completionJSON, err := json.Marshal(run.CompletionTimes)
	if err != nil {
		return fmt.Errorf("failed to marshal completion times: %w", err)
	}
	portJSON, err := json.Marshal(run.PortSummary)
	if err != nil {
		return fmt.Errorf("failed to marshal port summary: %w", err)
	}

	_, err = ps.db.Exec(`
		INSERT OR REPLACE INTO sim_results (run_id, completion_times, port_summary, trace_len)
		VALUES (?, ?, ?, ?)
	`, run.ID, string(completionJSON), string(portJSON), run.TraceLen)
	if err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}

	return nil
}

// LoadRun retrieves a run (and its results, if present) from the database.
func (ps *PersistentStore) LoadRun(runID string) (*SimRun, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var (
		fingerprint  string
		stateStr     string
		errorMessage sql.NullString
		createdAt    time.Time
		updatedAt    time.Time
		metadataJSON string
	)

	query := `
		SELECT scenario_fingerprint, state, error_message, created_at, updated_at, metadata
		FROM sim_runs WHERE run_id = ?
	`
	err := ps.db.QueryRow(query, runID).Scan(
		&fingerprint, &stateStr, &errorMessage, &createdAt, &updatedAt, &metadataJSON,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	var state RunState
	switch stateStr {
	case "PENDING":
		state = RunPending
	case "RUNNING":
		state = RunRunning
	case "COMPLETED":
		state = RunCompleted
	case "FAILED":
		state = RunFailed
	default:
		return nil, fmt.Errorf("invalid state: %s", stateStr)
	}

	run := &SimRun{
		ID:                  runID,
		ScenarioFingerprint: fingerprint,
		State:               state,
		ErrorMessage:        errorMessage.String,
		StartTime:           createdAt,
		UpdateTime:          updatedAt,
		Metadata:            make(map[string]string),
	}
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &run.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	var completionJSON, portJSON string
	var traceLen int
	err = ps.db.QueryRow(
		"SELECT completion_times, port_summary, trace_len FROM sim_results WHERE run_id = ?", runID,
	).Scan(&completionJSON, &portJSON, &traceLen)
	if err == nil {
		var completion map[string]map[string]float64
		var ports []PortUtilization
		if jerr := json.Unmarshal([]byte(completionJSON), &completion); jerr == nil {
			if jerr := json.Unmarshal([]byte(portJSON), &ports); jerr == nil {
				run.CompletionTimes = completion
				run.PortSummary = ports
				run.TraceLen = traceLen
			}
		}
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}

	return run, nil
}

// UpdateRunState updates only the run's state and error message.
func (ps *PersistentStore) UpdateRunState(runID string, newState RunState, errorMsg string) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	query := `UPDATE sim_runs SET state = ?, error_message = ?, updated_at = ? WHERE run_id = ?`
	result, err := ps.db.Exec(query, newState.String(), errorMsg, time.Now(), runID)
	if err != nil {
		return fmt.Errorf("failed to update run state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRunNotFound
	}

	return nil
}

// DeleteRun removes a run and its results from the database.
func (ps *PersistentStore) DeleteRun(runID string) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	tx, err := ps.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM sim_results WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("failed to delete results: %w", err)
	}

	result, err := tx.Exec("DELETE FROM sim_runs WHERE run_id = ?", runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRunNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListRuns returns all runs matching the filter, most recent first.
func (ps *PersistentStore) ListRuns(filterState *RunState, limit, offset int) ([]*SimRun, int, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var runs []*SimRun
	var query string
	var args []interface{}

	if filterState != nil {
		query = "SELECT run_id FROM sim_runs WHERE state = ? ORDER BY created_at DESC LIMIT ? OFFSET ?"
		args = []interface{}{filterState.String(), limit, offset}
	} else {
		query = "SELECT run_id FROM sim_runs ORDER BY created_at DESC LIMIT ? OFFSET ?"
		args = []interface{}{limit, offset}
	}

	rows, err := ps.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var runID string
		if err := rows.Scan(&runID); err != nil {
			return nil, 0, fmt.Errorf("failed to scan run ID: %w", err)
		}
		ids = append(ids, runID)
	}
	rows.Close()

	for _, id := range ids {
		run, err := ps.loadRunLocked(id)
		if err != nil {
			continue
		}
		runs = append(runs, run)
	}

	var total int
	var countQuery string
	var countArgs []interface{}
	if filterState != nil {
		countQuery = "SELECT COUNT(*) FROM sim_runs WHERE state = ?"
		countArgs = []interface{}{filterState.String()}
	} else {
		countQuery = "SELECT COUNT(*) FROM sim_runs"
	}
	if err := ps.db.QueryRow(countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	return runs, total, nil
}

// loadRunLocked loads a run's sim_runs row without re-acquiring ps.mu, for
// use from ListRuns which already holds the read lock. Unlike LoadRun it
// does not load the run's results, and it ignores malformed metadata.
func (ps *PersistentStore) loadRunLocked(runID string) (*SimRun, error) {
	var (
		fingerprint  string
		stateStr     string
		errorMessage sql.NullString
		createdAt    time.Time
		updatedAt    time.Time
		metadataJSON string
	)

	err := ps.db.QueryRow(`
		SELECT scenario_fingerprint, state, error_message, created_at, updated_at, metadata
		FROM sim_runs WHERE run_id = ?
	`, runID).Scan(&fingerprint, &stateStr, &errorMessage, &createdAt, &updatedAt, &metadataJSON)
	if err != nil {
		return nil, err
	}

	var state RunState
	switch stateStr {
	case "PENDING":
		state = RunPending
	case "RUNNING":
		state = RunRunning
	case "COMPLETED":
		state = RunCompleted
	case "FAILED":
		state = RunFailed
	default:
		return nil, fmt.Errorf("invalid state: %s", stateStr)
	}

	run := &SimRun{
		ID:                  runID,
		ScenarioFingerprint: fingerprint,
		State:               state,
		ErrorMessage:        errorMessage.String,
		StartTime:           createdAt,
		UpdateTime:          updatedAt,
		Metadata:            make(map[string]string),
	}
	if metadataJSON != "" {
		_ = json.Unmarshal([]byte(metadataJSON), &run.Metadata)
	}
	return run, nil
}

// Close closes the database connection.
func (ps *PersistentStore) Close() error {
	if ps.db != nil {
		return ps.db.Close()
	}
	return nil
}
