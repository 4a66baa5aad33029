package adapter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	m "tbench.dev/pkg/tbench/internal/model"
)

// EpisodeStore persists episodes and their steps to a sqlite database for
// downstream auditing. It is write-mostly during an episode and queried by
// the `view` command afterwards.
type EpisodeStore struct {
	db *sql.DB
}

// EpisodeRow is one episode as stored.
type EpisodeRow struct {
	EpisodeID     string
	Workspace     string
	Status        string
	MaxSteps      int
	StepsTaken    int
	FinalPassRate float64
	StartedAt     string
	FinishedAt    string
}

// StepRow is one recorded step.
type StepRow struct {
	EpisodeID  string
	StepNo     int
	ActionType string
	File       string
	Command    string
	Reward     float64
	Done       bool
	PassRate   float64
	Targeted   bool
	Error      string
	CreatedAt  string
}

// NewEpisodeStore opens (or creates) the sqlite database at path.
func NewEpisodeStore(path string) (*EpisodeStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	return &EpisodeStore{db: db}, nil
}

// Init creates the schema if it does not exist.
func (s *EpisodeStore) Init(ctx context.Context) error {
	ddl := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS episodes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			episode_id TEXT NOT NULL UNIQUE,
			workspace TEXT NOT NULL,
			status TEXT NOT NULL,
			max_steps INTEGER NOT NULL,
			steps_taken INTEGER NOT NULL DEFAULT 0,
			files_changed_json TEXT,
			final_pass_rate REAL NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL,
			finished_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			episode_id TEXT NOT NULL,
			step_no INTEGER NOT NULL,
			action_type TEXT NOT NULL,
			file TEXT,
			command TEXT,
			reward REAL NOT NULL,
			done INTEGER NOT NULL,
			pass_rate REAL NOT NULL,
			tests_total INTEGER NOT NULL,
			tests_failed INTEGER NOT NULL,
			targeted INTEGER NOT NULL,
			error TEXT,
			created_at TEXT NOT NULL,
			FOREIGN KEY(episode_id) REFERENCES episodes(episode_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_steps_episode_id ON steps(episode_id);`,
	}

	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

// BeginEpisode records a freshly reset episode. A nil store drops the
// record, so callers can leave persistence unconfigured.
func (s *EpisodeStore) BeginEpisode(ctx context.Context, state m.EpisodeState, workspace string) error {
	if s == nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO episodes (episode_id, workspace, status, max_steps, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		state.ID, workspace, "running", state.MaxSteps, now())
	if err != nil {
		return fmt.Errorf("begin episode: %w", err)
	}

	return nil
}

// RecordStep appends one step result.
func (s *EpisodeStore) RecordStep(ctx context.Context, episodeID string, action m.Action, res m.StepResult) error {
	if s == nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO steps (episode_id, step_no, action_type, file, command, reward, done,
			pass_rate, tests_total, tests_failed, targeted, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		episodeID, res.Info.Step, string(action.Type), string(action.File), action.Command,
		res.Reward, boolInt(res.Done), res.Info.PassRate, res.Info.TestsTotal,
		res.Info.TestsFailed, boolInt(res.Info.TargetedRun), res.Info.Error, now())
	if err != nil {
		return fmt.Errorf("record step: %w", err)
	}

	return nil
}

// FinishEpisode marks an episode terminal and stores its final state.
func (s *EpisodeStore) FinishEpisode(ctx context.Context, state m.EpisodeState, status string) error {
	if s == nil {
		return nil
	}

	filesJSON, err := json.Marshal(state.FilesChanged)
	if err != nil {
		return fmt.Errorf("encode files changed: %w", err)
	}

	passRate := 0.0
	if state.LastSummary != nil {
		passRate = state.LastSummary.PassRate
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE episodes SET status = ?, steps_taken = ?, files_changed_json = ?,
			final_pass_rate = ?, finished_at = ? WHERE episode_id = ?`,
		status, state.StepCount, string(filesJSON), passRate, now(), state.ID)
	if err != nil {
		return fmt.Errorf("finish episode: %w", err)
	}

	return nil
}

// ListEpisodes returns all recorded episodes, newest first.
func (s *EpisodeStore) ListEpisodes(ctx context.Context) ([]EpisodeRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT episode_id, workspace, status, max_steps, steps_taken, final_pass_rate,
			started_at, COALESCE(finished_at, '')
		 FROM episodes ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []EpisodeRow

	for rows.Next() {
		var row EpisodeRow
		if err := rows.Scan(&row.EpisodeID, &row.Workspace, &row.Status, &row.MaxSteps,
			&row.StepsTaken, &row.FinalPassRate, &row.StartedAt, &row.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}

		episodes = append(episodes, row)
	}

	return episodes, rows.Err()
}

// ListSteps returns the steps of one episode in order.
func (s *EpisodeStore) ListSteps(ctx context.Context, episodeID string) ([]StepRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT episode_id, step_no, action_type, COALESCE(file, ''), COALESCE(command, ''),
			reward, done, pass_rate, targeted, COALESCE(error, ''), created_at
		 FROM steps WHERE episode_id = ? ORDER BY step_no ASC`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []StepRow

	for rows.Next() {
		var (
			row            StepRow
			done, targeted int
		)

		if err := rows.Scan(&row.EpisodeID, &row.StepNo, &row.ActionType, &row.File,
			&row.Command, &row.Reward, &done, &row.PassRate, &targeted, &row.Error,
			&row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}

		row.Done = done != 0
		row.Targeted = targeted != 0
		steps = append(steps, row)
	}

	return steps, rows.Err()
}

// Close releases the underlying database handle.
func (s *EpisodeStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func boolInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
