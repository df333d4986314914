package calibration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// maxCertificateSize bounds the certificate files we are willing to read.
const maxCertificateSize = 1 * 1024 * 1024

// LoadCertificate reads a JSON calibration certificate and validates it.
// Unknown fields are an error so that a misspelt key is reported instead of
// leaving its coefficient at zero.
func LoadCertificate(path string) (*Coefficients, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("certificate file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat certificate file: %w", err)
	}
	if fileInfo.Size() > maxCertificateSize {
		return nil, fmt.Errorf("certificate file too large: %d bytes (max %d)", fileInfo.Size(), maxCertificateSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate file: %w", err)
	}
	return ParseCertificate(data)
}

// ParseCertificate decodes and validates a JSON certificate body.
func ParseCertificate(data []byte) (*Coefficients, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var c Coefficients
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse certificate JSON: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// MarshalCertificate encodes c in the indented form LoadCertificate reads.
func MarshalCertificate(c *Coefficients) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return json.MarshalIndent(c, "", "  ")
}

// SaveCertificate writes c to path as JSON.
func SaveCertificate(path string, c *Coefficients) error {
	data, err := MarshalCertificate(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write certificate file: %w", err)
	}
	return nil
}
