package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	StatusRecording   = "recording"
	StatusFinished    = "finished"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

const (
	TranscriptNone      = "none"
	TranscriptPending   = "pending"
	TranscriptRunning   = "running"
	TranscriptCompleted = "completed"
	TranscriptFailed    = "failed"
)

type Recording struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	Status           string     `json:"status"`
	AudioPath        string     `json:"audio_path"`
	SampleRate       int        `json:"sample_rate"`
	Channels         int        `json:"channels"`
	DataBytes        int64      `json:"data_bytes"`
	DurationMS       int64      `json:"duration_ms"`
	Drains           int64      `json:"drains"`
	Overruns         int64      `json:"overruns"`
	DeviceErrors     int64      `json:"device_errors"`
	Error            string     `json:"error,omitempty"`
	DriveFileID      string     `json:"drive_file_id,omitempty"`
	Transcript       string     `json:"transcript"`
	TranscriptStatus string     `json:"transcript_status"`
}

// Stats are the capture counters stored when a recording finishes.
type Stats struct {
	EndedAt      time.Time
	DataBytes    int64
	Duration     time.Duration
	Drains       int64
	Overruns     int64
	DeviceErrors int64
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "soundman.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS recordings (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			ended_at TEXT,
			status TEXT NOT NULL,
			audio_path TEXT NOT NULL,
			sample_rate INTEGER NOT NULL,
			channels INTEGER NOT NULL,
			data_bytes INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			drains INTEGER NOT NULL DEFAULT 0,
			overruns INTEGER NOT NULL DEFAULT 0,
			device_errors INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			drive_file_id TEXT NOT NULL DEFAULT '',
			transcript TEXT NOT NULL DEFAULT '',
			transcript_status TEXT NOT NULL DEFAULT 'none'
		);
	`); err != nil {
		return fmt.Errorf("create recordings table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_recordings_started_at ON recordings(started_at)"); err != nil {
		return fmt.Errorf("create recordings index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) CreateRecording(rec Recording) error {
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("recording id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO recordings(id, name, started_at, status, audio_path, sample_rate, channels, transcript_status)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Name,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		StatusRecording,
		rec.AudioPath,
		rec.SampleRate,
		rec.Channels,
		TranscriptNone,
	)
	if err != nil {
		return fmt.Errorf("create recording %s: %w", rec.ID, err)
	}
	return nil
}

// FinishRecording stores the final counters. A non-empty errMsg marks the
// recording failed; its file is still a finalized container.
func (s *SQLiteStore) FinishRecording(id string, st Stats, errMsg string) error {
	status := StatusFinished
	if errMsg != "" {
		status = StatusFailed
	}

	res, err := s.db.Exec(
		`UPDATE recordings
		 SET ended_at = ?, status = ?, data_bytes = ?, duration_ms = ?, drains = ?, overruns = ?, device_errors = ?, error = ?
		 WHERE id = ?`,
		st.EndedAt.UTC().Format(time.RFC3339Nano),
		status,
		st.DataBytes,
		st.Duration.Milliseconds(),
		st.Drains,
		st.Overruns,
		st.DeviceErrors,
		errMsg,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish recording %s: %w", id, err)
	}
	return expectRow(res, "finish recording")
}

// MarkInterrupted flags rows left in the recording state by a previous
// process and returns how many were changed.
func (s *SQLiteStore) MarkInterrupted(at time.Time) (int64, error) {
	res, err := s.db.Exec(
		`UPDATE recordings SET status = ?, ended_at = ? WHERE status = ?`,
		StatusInterrupted,
		at.UTC().Format(time.RFC3339Nano),
		StatusRecording,
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted recordings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark interrupted rows affected: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) UpdateTranscript(id, transcript, status string) error {
	res, err := s.db.Exec(
		`UPDATE recordings SET transcript = ?, transcript_status = ? WHERE id = ?`,
		transcript,
		status,
		id,
	)
	if err != nil {
		return fmt.Errorf("update transcript for recording %s: %w", id, err)
	}
	return expectRow(res, "update transcript")
}

func (s *SQLiteStore) SetDriveFileID(id, fileID string) error {
	res, err := s.db.Exec(`UPDATE recordings SET drive_file_id = ? WHERE id = ?`, fileID, id)
	if err != nil {
		return fmt.Errorf("set drive file for recording %s: %w", id, err)
	}
	return expectRow(res, "set drive file")
}

const recordingColumns = `id, name, started_at, ended_at, status, audio_path, sample_rate, channels,
	data_bytes, duration_ms, drains, overruns, device_errors, error, drive_file_id, transcript, transcript_status`

func (s *SQLiteStore) GetRecording(id string) (Recording, error) {
	row := s.db.QueryRow(`SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)
	rec, err := scanRecording(row)
	if err != nil {
		return Recording{}, fmt.Errorf("query recording %s: %w", id, err)
	}
	return rec, nil
}

// GetRecordingsByDate lists recordings started on date (YYYY-MM-DD, UTC),
// newest first. An empty date lists everything.
func (s *SQLiteStore) GetRecordingsByDate(date string) ([]Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings`
	var args []any
	if date != "" {
		query += ` WHERE substr(started_at, 1, 10) = ?`
		args = append(args, date)
	}
	query += ` ORDER BY started_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recordings by date %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	recordings := make([]Recording, 0, 16)
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		recordings = append(recordings, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recording rows: %w", err)
	}

	return recordings, nil
}

func (s *SQLiteStore) GetDates() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT substr(started_at, 1, 10) AS date FROM recordings ORDER BY date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates rows: %w", err)
	}

	return dates, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(row scanner) (Recording, error) {
	var rec Recording
	var startedAt string
	var endedAt sql.NullString
	if err := row.Scan(
		&rec.ID, &rec.Name, &startedAt, &endedAt, &rec.Status, &rec.AudioPath,
		&rec.SampleRate, &rec.Channels, &rec.DataBytes, &rec.DurationMS,
		&rec.Drains, &rec.Overruns, &rec.DeviceErrors, &rec.Error,
		&rec.DriveFileID, &rec.Transcript, &rec.TranscriptStatus,
	); err != nil {
		return Recording{}, err
	}

	parsedStart, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Recording{}, fmt.Errorf("parse started_at: %w", err)
	}
	rec.StartedAt = parsedStart

	if endedAt.Valid {
		parsedEnd, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return Recording{}, fmt.Errorf("parse ended_at: %w", err)
		}
		rec.EndedAt = &parsedEnd
	}

	return rec, nil
}

func expectRow(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
