package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS traffic_fines (
		id                      BIGSERIAL PRIMARY KEY,
		prescription_number     TEXT NOT NULL,
		license_plate           TEXT NOT NULL,
		vehicle_certificate     TEXT,
		vehicle_make_model      TEXT,
		vehicle_color           TEXT,
		violation_datetime      TIMESTAMPTZ NOT NULL,
		violation_location      TEXT,
		violation_description   TEXT,
		detected_speed          NUMERIC(6,2),
		allowed_speed           NUMERIC(6,2),
		speed_with_margin       NUMERIC(6,2),
		device_name             TEXT,
		device_serial           TEXT,
		certificate_number      TEXT,
		certificate_date        TIMESTAMPTZ,
		certificate_valid_until TIMESTAMPTZ,
		fine_amount             NUMERIC(12,2) NOT NULL,
		discounted_amount       NUMERIC(12,2) NOT NULL,
		discount_deadline_days  INT NOT NULL DEFAULT 7,
		owner_name              TEXT,
		owner_bin               TEXT,
		owner_address           TEXT,
		issuing_department      TEXT,
		issuing_officer         TEXT,
		article_code            TEXT,
		document_reference      TEXT,
		raw_listing             JSONB,
		created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
		is_paid                 BOOLEAN NOT NULL DEFAULT false
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_traffic_fines_prescription_number ON traffic_fines(prescription_number);`,
	`CREATE INDEX IF NOT EXISTS idx_traffic_fines_license_plate ON traffic_fines(license_plate);`,
	`CREATE INDEX IF NOT EXISTS idx_traffic_fines_violation_datetime ON traffic_fines(violation_datetime);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
