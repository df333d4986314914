package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/banshee-data/ctdlog/internal/devicelink"
)

// SerialConfig is a named serial port configuration for one probe.
type SerialConfig struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	PortPath      string `json:"port_path"`
	BaudRate      int    `json:"baud_rate"`
	DataBits      int    `json:"data_bits"`
	StopBits      int    `json:"stop_bits"`
	Parity        string `json:"parity"`
	ReadTimeoutMs int    `json:"read_timeout_ms"`
	Enabled       bool   `json:"enabled"`
	Description   string `json:"description"`
	// CertificateID links the probe to its calibration certificate.
	CertificateID *int64 `json:"certificate_id,omitempty"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
}

// PortOptions returns the stored settings as normalised port options.
func (c *SerialConfig) PortOptions() (devicelink.PortOptions, error) {
	opts := devicelink.PortOptions{
		BaudRate:      c.BaudRate,
		DataBits:      c.DataBits,
		StopBits:      c.StopBits,
		Parity:        c.Parity,
		ReadTimeoutMs: c.ReadTimeoutMs,
	}
	normalised, err := opts.Normalise()
	if err != nil {
		return opts, fmt.Errorf("serial config %q: %w", c.Name, err)
	}
	return normalised, nil
}

const serialConfigColumns = `id, name, port_path, baud_rate, data_bits, stop_bits, parity, read_timeout_ms,
	enabled, description, certificate_id, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSerialConfig(row scanner) (SerialConfig, error) {
	var c SerialConfig
	var enabled int
	var certID sql.NullInt64
	err := row.Scan(&c.ID, &c.Name, &c.PortPath, &c.BaudRate, &c.DataBits, &c.StopBits,
		&c.Parity, &c.ReadTimeoutMs, &enabled, &c.Description, &certID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	c.Enabled = enabled == 1
	if certID.Valid {
		id := certID.Int64
		c.CertificateID = &id
	}
	return c, nil
}

func (db *DB) querySerialConfigs(query string, args ...any) ([]SerialConfig, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query serial configs: %w", err)
	}
	defer rows.Close()

	var configs []SerialConfig
	for rows.Next() {
		c, err := scanSerialConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan serial config: %w", err)
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read serial configs: %w", err)
	}
	return configs, nil
}

// GetSerialConfigs returns all serial configurations
func (db *DB) GetSerialConfigs() ([]SerialConfig, error) {
	return db.querySerialConfigs(`SELECT ` + serialConfigColumns + `
	          FROM ctd_serial_config
	          ORDER BY created_at ASC, id ASC`)
}

// GetEnabledSerialConfigs returns all enabled serial configurations
func (db *DB) GetEnabledSerialConfigs() ([]SerialConfig, error) {
	return db.querySerialConfigs(`SELECT ` + serialConfigColumns + `
	          FROM ctd_serial_config
	          WHERE enabled = 1
	          ORDER BY created_at ASC, id ASC`)
}

// GetSerialConfig returns a single serial configuration by ID, or nil if
// there is none.
func (db *DB) GetSerialConfig(id int) (*SerialConfig, error) {
	row := db.QueryRow(`SELECT `+serialConfigColumns+` FROM ctd_serial_config WHERE id = ?`, id)
	return getSerialConfig(row)
}

// GetSerialConfigByName returns the configuration called name, or nil if
// there is none.
func (db *DB) GetSerialConfigByName(name string) (*SerialConfig, error) {
	row := db.QueryRow(`SELECT `+serialConfigColumns+` FROM ctd_serial_config WHERE name = ?`, name)
	return getSerialConfig(row)
}

func getSerialConfig(row *sql.Row) (*SerialConfig, error) {
	c, err := scanSerialConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get serial config: %w", err)
	}
	return &c, nil
}

// CreateSerialConfig creates a new serial configuration
func (db *DB) CreateSerialConfig(c *SerialConfig) (int64, error) {
	query := `INSERT INTO ctd_serial_config (name, port_path, baud_rate, data_bits, stop_bits, parity,
	              read_timeout_ms, enabled, description, certificate_id)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := db.Exec(query, c.Name, c.PortPath, c.BaudRate, c.DataBits, c.StopBits,
		c.Parity, c.ReadTimeoutMs, boolInt(c.Enabled), c.Description, c.CertificateID)
	if err != nil {
		return 0, fmt.Errorf("failed to create serial config: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// UpdateSerialConfig updates an existing serial configuration
func (db *DB) UpdateSerialConfig(c *SerialConfig) error {
	query := `UPDATE ctd_serial_config
	          SET name = ?, port_path = ?, baud_rate = ?, data_bits = ?, stop_bits = ?,
	              parity = ?, read_timeout_ms = ?, enabled = ?, description = ?, certificate_id = ?,
	              updated_at = STRFTIME('%s', 'now')
	          WHERE id = ?`

	result, err := db.Exec(query, c.Name, c.PortPath, c.BaudRate, c.DataBits, c.StopBits,
		c.Parity, c.ReadTimeoutMs, boolInt(c.Enabled), c.Description, c.CertificateID, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update serial config: %w", err)
	}
	return expectOneRow(result, "serial config", c.ID)
}

// DeleteSerialConfig deletes a serial configuration
func (db *DB) DeleteSerialConfig(id int) error {
	result, err := db.Exec(`DELETE FROM ctd_serial_config WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete serial config: %w", err)
	}
	return expectOneRow(result, "serial config", id)
}

// ErrNotFound is returned by updates and deletes that matched no row.
var ErrNotFound = errors.New("not found")

func expectOneRow(result sql.Result, what string, id any) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s with ID %v: %w", what, id, ErrNotFound)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
