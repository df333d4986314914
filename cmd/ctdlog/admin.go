package main

import (
	"fmt"
	"log"

	"github.com/banshee-data/ctdlog/internal/calibration"
	"github.com/banshee-data/ctdlog/internal/db"
)

// runMigrate reports or rolls back the schema. Opening the store has
// already applied every pending migration, so there is no "up".
func runMigrate(store *db.DB, action string) error {
	fsys, err := db.MigrationsFS()
	if err != nil {
		return err
	}

	if action == "down" {
		log.Printf("Rolling back one migration...")
		if err := store.MigrateDown(fsys); err != nil {
			return err
		}
	}

	version, dirty, err := store.MigrateVersion(fsys)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	log.Printf("Current version: %d (dirty: %v)", version, dirty)
	if dirty {
		log.Printf("WARNING: a migration failed mid-way; inspect the database before using it")
	}
	return nil
}

// importCertificate stores the certificate at path and links it to the
// named serial config, so later runs with -db pick it up without -cert.
func importCertificate(store *db.DB, path, configName string) error {
	c, err := calibration.LoadCertificate(path)
	if err != nil {
		return err
	}

	cfg, err := store.GetSerialConfigByName(configName)
	if err != nil {
		return err
	}
	if cfg == nil {
		return fmt.Errorf("no serial config named %q", configName)
	}

	id, err := store.SaveCertificate(c)
	if err != nil {
		return err
	}
	cfg.CertificateID = &id
	if err := store.UpdateSerialConfig(cfg); err != nil {
		return err
	}
	log.Printf("imported certificate %d (%s / %s) for serial config %q", id, c.Instrument, c.Certificate, configName)
	return nil
}
