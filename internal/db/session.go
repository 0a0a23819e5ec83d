package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session represents one recorded practice session: a person running the
// arms-cross + leg-lift drill in front of the sensor. The classifier
// settings in force for the session are stored alongside it so stored
// frame codes stay interpretable after the trainer config changes.
type Session struct {
	ID            int       `json:"id"`
	UUID          string    `json:"uuid"`
	Name          string    `json:"name"`
	StartedAtUnix float64   `json:"started_at_unix"`
	EndedAtUnix   *float64  `json:"ended_at_unix"`
	TargetAngle   float64   `json:"target_angle"`
	Tolerance     float64   `json:"tolerance"`
	Notes         *string   `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Active reports whether the session is still recording.
func (s *Session) Active() bool {
	return s.EndedAtUnix == nil
}

// CreateSession creates a new session in the database. A UUID is assigned
// if the caller didn't provide one.
func (db *DB) CreateSession(session *Session) error {
	if session.UUID == "" {
		session.UUID = uuid.New().String()
	}

	query := `
		INSERT INTO sessions (
			uuid, name, started_at_unix, ended_at_unix, target_angle, tolerance, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.DB.Exec(
		query,
		session.UUID,
		session.Name,
		session.StartedAtUnix,
		session.EndedAtUnix,
		session.TargetAngle,
		session.Tolerance,
		session.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	session.ID = int(id)
	return nil
}

const sessionColumns = `
	id, uuid, name, started_at_unix, ended_at_unix, target_angle, tolerance, notes,
	created_at, updated_at
`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*Session, error) {
	var session Session
	var createdAtUnix, updatedAtUnix int64

	err := row.Scan(
		&session.ID,
		&session.UUID,
		&session.Name,
		&session.StartedAtUnix,
		&session.EndedAtUnix,
		&session.TargetAngle,
		&session.Tolerance,
		&session.Notes,
		&createdAtUnix,
		&updatedAtUnix,
	)
	if err != nil {
		return nil, err
	}

	session.CreatedAt = time.Unix(createdAtUnix, 0)
	session.UpdatedAt = time.Unix(updatedAtUnix, 0)
	return &session, nil
}

// GetSession retrieves a session by ID
func (db *DB) GetSession(id int) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`

	session, err := scanSession(db.DB.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// GetSessionByUUID retrieves a session by its UUID
func (db *DB) GetSessionByUUID(id string) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE uuid = ?`

	session, err := scanSession(db.DB.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// GetAllSessions retrieves all sessions, newest first
func (db *DB) GetAllSessions() ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at_unix DESC`

	rows, err := db.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// GetActiveSession returns the most recently started session that has not
// been ended yet, or nil if every session is closed.
func (db *DB) GetActiveSession() (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE ended_at_unix IS NULL
		ORDER BY started_at_unix DESC
		LIMIT 1`

	session, err := scanSession(db.DB.QueryRow(query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}

	return session, nil
}

// EndSession marks a session as ended at the given unix time. Ending an
// already-ended session is an error so accidental double-ends surface.
func (db *DB) EndSession(id int, endedAtUnix float64) error {
	query := `
		UPDATE sessions SET
			ended_at_unix = ?,
			updated_at = strftime('%s', 'now')
		WHERE id = ? AND ended_at_unix IS NULL
	`

	result, err := db.DB.Exec(query, endedAtUnix, id)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("session not found or already ended")
	}

	return nil
}

// UpdateSessionNotes replaces the free-form notes on a session
func (db *DB) UpdateSessionNotes(id int, notes string) error {
	query := `
		UPDATE sessions SET
			notes = ?,
			updated_at = strftime('%s', 'now')
		WHERE id = ?
	`

	result, err := db.DB.Exec(query, notes, id)
	if err != nil {
		return fmt.Errorf("failed to update session notes: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("session not found")
	}

	return nil
}

// DeleteSession deletes a session and its recorded frame codes
func (db *DB) DeleteSession(id int) error {
	tx, err := db.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM frame_codes WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session frame codes: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("session not found")
	}

	return tx.Commit()
}
