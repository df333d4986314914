package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/banshee-data/ctdlog/internal/calibration"
)

// CertificateRecord describes a stored calibration certificate without its
// coefficients.
type CertificateRecord struct {
	ID          int64  `json:"id"`
	Instrument  string `json:"instrument"`
	Certificate string `json:"certificate"`
	CreatedAt   int64  `json:"created_at"`
}

// SaveCertificate validates c and stores it, returning the new row id.
func (db *DB) SaveCertificate(c *calibration.Coefficients) (int64, error) {
	body, err := calibration.MarshalCertificate(c)
	if err != nil {
		return 0, err
	}

	result, err := db.Exec(`INSERT INTO calibration_certificates (instrument, certificate, body) VALUES (?, ?, ?)`,
		c.Instrument, c.Certificate, string(body))
	if err != nil {
		return 0, fmt.Errorf("failed to save certificate: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// GetCertificate loads and validates the certificate with the given id. It
// returns nil if there is none.
func (db *DB) GetCertificate(id int64) (*calibration.Coefficients, error) {
	var body string
	err := db.QueryRow(`SELECT body FROM calibration_certificates WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}

	c, err := calibration.ParseCertificate([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("certificate %d: %w", id, err)
	}
	return c, nil
}

// ListCertificates returns every stored certificate, newest first.
func (db *DB) ListCertificates() ([]CertificateRecord, error) {
	rows, err := db.Query(`SELECT id, instrument, certificate, created_at
	          FROM calibration_certificates
	          ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query certificates: %w", err)
	}
	defer rows.Close()

	var records []CertificateRecord
	for rows.Next() {
		var r CertificateRecord
		if err := rows.Scan(&r.ID, &r.Instrument, &r.Certificate, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read certificates: %w", err)
	}
	return records, nil
}

// DeleteCertificate removes a certificate. Serial configs that referenced it
// are left without one.
func (db *DB) DeleteCertificate(id int64) error {
	result, err := db.Exec(`DELETE FROM calibration_certificates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete certificate: %w", err)
	}
	return expectOneRow(result, "certificate", id)
}
