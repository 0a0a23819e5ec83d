package db

import (
	"fmt"
)

// FrameCode is one classified skeleton frame as stored: the two region
// codes plus the computed leg-lift angle that produced the leg code.
type FrameCode struct {
	ID             int     `json:"id"`
	SessionID      int     `json:"session_id"`
	Seq            int64   `json:"seq"`
	CapturedAtUnix float64 `json:"captured_at_unix"`
	ArmsCode       string  `json:"arms_code"`
	LegCode        string  `json:"leg_code"`
	LegAngle       float64 `json:"leg_angle"`
}

// RecordFrameCode stores a single classified frame
func (db *DB) RecordFrameCode(fc *FrameCode) error {
	query := `
		INSERT INTO frame_codes (session_id, seq, captured_at_unix, arms_code, leg_code, leg_angle)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := db.DB.Exec(query, fc.SessionID, fc.Seq, fc.CapturedAtUnix, fc.ArmsCode, fc.LegCode, fc.LegAngle)
	if err != nil {
		return fmt.Errorf("failed to record frame code: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	fc.ID = int(id)
	return nil
}

// RecordFrameCodes stores a batch of classified frames in one transaction.
// The session recorder flushes its buffer through here once a second; a
// frame every 33ms one-row-per-INSERT would thrash the WAL.
func (db *DB) RecordFrameCodes(codes []FrameCode) error {
	if len(codes) == 0 {
		return nil
	}

	tx, err := db.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO frame_codes (session_id, seq, captured_at_unix, arms_code, leg_code, leg_angle)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare frame code insert: %w", err)
	}
	defer stmt.Close()

	for i := range codes {
		fc := &codes[i]
		if _, err := stmt.Exec(fc.SessionID, fc.Seq, fc.CapturedAtUnix, fc.ArmsCode, fc.LegCode, fc.LegAngle); err != nil {
			return fmt.Errorf("failed to record frame code seq %d: %w", fc.Seq, err)
		}
	}

	return tx.Commit()
}

// FrameCodes returns a session's classified frames in capture order.
// limit <= 0 applies the default cap.
func (db *DB) FrameCodes(sessionID int, limit int) ([]FrameCode, error) {
	if limit <= 0 {
		limit = 10000
	}

	query := `
		SELECT id, session_id, seq, captured_at_unix, arms_code, leg_code, leg_angle
		FROM frame_codes
		WHERE session_id = ?
		ORDER BY seq ASC
		LIMIT ?
	`

	rows, err := db.DB.Query(query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query frame codes: %w", err)
	}
	defer rows.Close()

	var codes []FrameCode
	for rows.Next() {
		var fc FrameCode
		if err := rows.Scan(&fc.ID, &fc.SessionID, &fc.Seq, &fc.CapturedAtUnix, &fc.ArmsCode, &fc.LegCode, &fc.LegAngle); err != nil {
			return nil, fmt.Errorf("failed to scan frame code: %w", err)
		}
		codes = append(codes, fc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating frame codes: %w", err)
	}

	return codes, nil
}

// CountFrameCodes returns the number of frames recorded for a session
func (db *DB) CountFrameCodes(sessionID int) (int, error) {
	var count int
	err := db.DB.QueryRow(`SELECT COUNT(*) FROM frame_codes WHERE session_id = ?`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count frame codes: %w", err)
	}
	return count, nil
}

// SessionCodeCounts aggregates a session's frames per region code.
type SessionCodeCounts struct {
	TotalFrames int            `json:"total_frames"`
	Arms        map[string]int `json:"arms"`
	Leg         map[string]int `json:"leg"`
}

// CodeCounts returns how many frames of a session fell into each region
// code, per region. The maps only hold codes that actually occurred.
func (db *DB) CodeCounts(sessionID int) (*SessionCodeCounts, error) {
	counts := &SessionCodeCounts{
		Arms: make(map[string]int),
		Leg:  make(map[string]int),
	}

	armsQuery := `
		SELECT arms_code, COUNT(*)
		FROM frame_codes
		WHERE session_id = ?
		GROUP BY arms_code
	`
	rows, err := db.DB.Query(armsQuery, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query arms code counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, fmt.Errorf("failed to scan arms code count: %w", err)
		}
		counts.Arms[code] = n
		counts.TotalFrames += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating arms code counts: %w", err)
	}

	legQuery := `
		SELECT leg_code, COUNT(*)
		FROM frame_codes
		WHERE session_id = ?
		GROUP BY leg_code
	`
	legRows, err := db.DB.Query(legQuery, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leg code counts: %w", err)
	}
	defer legRows.Close()

	for legRows.Next() {
		var code string
		var n int
		if err := legRows.Scan(&code, &n); err != nil {
			return nil, fmt.Errorf("failed to scan leg code count: %w", err)
		}
		counts.Leg[code] = n
	}
	if err := legRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leg code counts: %w", err)
	}

	return counts, nil
}

// LegAngleSeries returns a session's computed leg angles in capture order,
// for percentile stats and the angle-trace plot.
func (db *DB) LegAngleSeries(sessionID int) ([]float64, error) {
	query := `
		SELECT leg_angle
		FROM frame_codes
		WHERE session_id = ?
		ORDER BY seq ASC
	`

	rows, err := db.DB.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leg angles: %w", err)
	}
	defer rows.Close()

	var angles []float64
	for rows.Next() {
		var angle float64
		if err := rows.Scan(&angle); err != nil {
			return nil, fmt.Errorf("failed to scan leg angle: %w", err)
		}
		angles = append(angles, angle)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leg angles: %w", err)
	}

	return angles, nil
}

// FrameCodeSeries holds a session's stored timeline as parallel slices,
// the shape the charting layer wants.
type FrameCodeSeries struct {
	Seq            []int64   `json:"seq"`
	CapturedAtUnix []float64 `json:"captured_at_unix"`
	ArmsCodes      []string  `json:"arms_codes"`
	LegCodes       []string  `json:"leg_codes"`
	LegAngles      []float64 `json:"leg_angles"`
}

// FrameCodeTimeline returns a session's frames as a FrameCodeSeries.
func (db *DB) FrameCodeTimeline(sessionID int) (*FrameCodeSeries, error) {
	codes, err := db.FrameCodes(sessionID, 0)
	if err != nil {
		return nil, err
	}

	series := &FrameCodeSeries{
		Seq:            make([]int64, 0, len(codes)),
		CapturedAtUnix: make([]float64, 0, len(codes)),
		ArmsCodes:      make([]string, 0, len(codes)),
		LegCodes:       make([]string, 0, len(codes)),
		LegAngles:      make([]float64, 0, len(codes)),
	}
	for _, fc := range codes {
		series.Seq = append(series.Seq, fc.Seq)
		series.CapturedAtUnix = append(series.CapturedAtUnix, fc.CapturedAtUnix)
		series.ArmsCodes = append(series.ArmsCodes, fc.ArmsCode)
		series.LegCodes = append(series.LegCodes, fc.LegCode)
		series.LegAngles = append(series.LegAngles, fc.LegAngle)
	}

	return series, nil
}
