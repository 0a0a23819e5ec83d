package db

import (
	"database/sql"
	"fmt"
)

// BridgeConfig represents a serial port configuration for a sensor bridge
type BridgeConfig struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	PortPath    string `json:"port_path"`
	BaudRate    int    `json:"baud_rate"`
	DataBits    int    `json:"data_bits"`
	StopBits    int    `json:"stop_bits"`
	Parity      string `json:"parity"`
	FrameRateHz int    `json:"frame_rate_hz"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// GetBridgeConfigs returns all bridge serial configurations
func (db *DB) GetBridgeConfigs() ([]BridgeConfig, error) {
	query := `SELECT id, name, port_path, baud_rate, data_bits, stop_bits, parity, frame_rate_hz, enabled, description, created_at, updated_at
	          FROM bridge_serial_config
	          ORDER BY created_at ASC`

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query bridge configs: %w", err)
	}
	defer rows.Close()

	var configs []BridgeConfig
	for rows.Next() {
		var c BridgeConfig
		var enabled int
		err := rows.Scan(&c.ID, &c.Name, &c.PortPath, &c.BaudRate, &c.DataBits, &c.StopBits,
			&c.Parity, &c.FrameRateHz, &enabled, &c.Description, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bridge config: %w", err)
		}
		c.Enabled = enabled == 1
		configs = append(configs, c)
	}

	return configs, nil
}

// GetBridgeConfig returns a single bridge configuration by ID, or nil if
// no such row exists.
func (db *DB) GetBridgeConfig(id int) (*BridgeConfig, error) {
	query := `SELECT id, name, port_path, baud_rate, data_bits, stop_bits, parity, frame_rate_hz, enabled, description, created_at, updated_at
	          FROM bridge_serial_config
	          WHERE id = ?`

	var c BridgeConfig
	var enabled int
	err := db.QueryRow(query, id).Scan(&c.ID, &c.Name, &c.PortPath, &c.BaudRate, &c.DataBits,
		&c.StopBits, &c.Parity, &c.FrameRateHz, &enabled, &c.Description, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bridge config: %w", err)
	}

	c.Enabled = enabled == 1
	return &c, nil
}

// GetEnabledBridgeConfigs returns all enabled bridge configurations
func (db *DB) GetEnabledBridgeConfigs() ([]BridgeConfig, error) {
	query := `SELECT id, name, port_path, baud_rate, data_bits, stop_bits, parity, frame_rate_hz, enabled, description, created_at, updated_at
	          FROM bridge_serial_config
	          WHERE enabled = 1
	          ORDER BY created_at ASC`

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query enabled bridge configs: %w", err)
	}
	defer rows.Close()

	var configs []BridgeConfig
	for rows.Next() {
		var c BridgeConfig
		var enabled int
		err := rows.Scan(&c.ID, &c.Name, &c.PortPath, &c.BaudRate, &c.DataBits, &c.StopBits,
			&c.Parity, &c.FrameRateHz, &enabled, &c.Description, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bridge config: %w", err)
		}
		c.Enabled = enabled == 1
		configs = append(configs, c)
	}

	return configs, nil
}

// CreateBridgeConfig creates a new bridge serial configuration
func (db *DB) CreateBridgeConfig(c *BridgeConfig) (int64, error) {
	query := `INSERT INTO bridge_serial_config (name, port_path, baud_rate, data_bits, stop_bits, parity, frame_rate_hz, enabled, description)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	enabled := 0
	if c.Enabled {
		enabled = 1
	}

	result, err := db.Exec(query, c.Name, c.PortPath, c.BaudRate, c.DataBits, c.StopBits,
		c.Parity, c.FrameRateHz, enabled, c.Description)
	if err != nil {
		return 0, fmt.Errorf("failed to create bridge config: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// UpdateBridgeConfig updates an existing bridge serial configuration
func (db *DB) UpdateBridgeConfig(c *BridgeConfig) error {
	query := `UPDATE bridge_serial_config
	          SET name = ?, port_path = ?, baud_rate = ?, data_bits = ?, stop_bits = ?,
	              parity = ?, frame_rate_hz = ?, enabled = ?, description = ?,
	              updated_at = strftime('%s', 'now')
	          WHERE id = ?`

	enabled := 0
	if c.Enabled {
		enabled = 1
	}

	result, err := db.Exec(query, c.Name, c.PortPath, c.BaudRate, c.DataBits, c.StopBits,
		c.Parity, c.FrameRateHz, enabled, c.Description, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update bridge config: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("bridge config with ID %d not found", c.ID)
	}

	return nil
}

// DeleteBridgeConfig deletes a bridge serial configuration
func (db *DB) DeleteBridgeConfig(id int) error {
	query := `DELETE FROM bridge_serial_config WHERE id = ?`

	result, err := db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete bridge config: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("bridge config with ID %d not found", id)
	}

	return nil
}
