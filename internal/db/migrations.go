package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'contract_status') THEN
			CREATE TYPE contract_status AS ENUM (
				'DRAFT', 'PENDING', 'PENDING_SURVEY_REVIEW', 'APPROVED',
				'PENDING_CUSTOMER_SIGN', 'PENDING_SIGN', 'SIGNED',
				'ACTIVE', 'SUSPENDED', 'EXPIRED', 'TERMINATED'
			);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'payment_status') THEN
			CREATE TYPE payment_status AS ENUM ('PENDING', 'PAID', 'OVERDUE', 'CANCELLED');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'approval_status') THEN
			CREATE TYPE approval_status AS ENUM ('PENDING', 'APPROVED', 'REJECTED');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'reading_status') THEN
			CREATE TYPE reading_status AS ENUM ('PENDING', 'COMPLETED');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS customers (
		id BIGSERIAL PRIMARY KEY,
		code VARCHAR(30) NOT NULL,
		full_name VARCHAR(255) NOT NULL,
		phone VARCHAR(20),
		email VARCHAR(255),
		address TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_customers_code ON customers (code) WHERE code <> '';`,
	`CREATE TABLE IF NOT EXISTS contracts (
		id BIGSERIAL PRIMARY KEY,
		contract_number VARCHAR(50) NOT NULL,
		customer_id BIGINT REFERENCES customers(id),
		guest_name VARCHAR(255),
		guest_phone VARCHAR(20),
		price_type_code VARCHAR(30),
		application_date DATE,
		survey_date DATE,
		technical_design TEXT,
		estimated_cost NUMERIC(15,2) NOT NULL DEFAULT 0,
		contract_value NUMERIC(15,2) NOT NULL DEFAULT 0,
		payment_method VARCHAR(20),
		start_date DATE,
		end_date DATE,
		installation_date DATE,
		service_staff_id BIGINT,
		technical_staff_id BIGINT,
		source_contract_id BIGINT REFERENCES contracts(id),
		notes TEXT,
		status contract_status NOT NULL DEFAULT 'DRAFT',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_contracts_number ON contracts (contract_number);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_status ON contracts (status);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_customer_id ON contracts (customer_id) WHERE customer_id IS NOT NULL;`,
	`CREATE TABLE IF NOT EXISTS tariffs (
		id BIGSERIAL PRIMARY KEY,
		price_type_code VARCHAR(30) NOT NULL,
		type_name VARCHAR(100) NOT NULL,
		environment_fee NUMERIC(15,4) NOT NULL DEFAULT 0,
		vat_rate NUMERIC(5,2) NOT NULL DEFAULT 0,
		status VARCHAR(10) NOT NULL DEFAULT 'active',
		effective_date DATE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_tariffs_price_type ON tariffs (price_type_code, status);`,
	`CREATE TABLE IF NOT EXISTS tariff_tiers (
		id BIGSERIAL PRIMARY KEY,
		tariff_id BIGINT NOT NULL REFERENCES tariffs(id) ON DELETE CASCADE,
		up_to_m3 NUMERIC(12,3),
		unit_price NUMERIC(15,4) NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS meter_readings (
		id BIGSERIAL PRIMARY KEY,
		contract_id BIGINT NOT NULL REFERENCES contracts(id),
		customer_id BIGINT REFERENCES customers(id),
		meter_number VARCHAR(50),
		previous_index NUMERIC(12,3) NOT NULL,
		current_index NUMERIC(12,3) NOT NULL,
		reading_date DATE NOT NULL,
		status reading_status NOT NULL DEFAULT 'PENDING',
		invoice_id BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_readings_unbilled ON meter_readings (contract_id) WHERE invoice_id IS NULL;`,
	`CREATE TABLE IF NOT EXISTS calibration_fees (
		id BIGSERIAL PRIMARY KEY,
		contract_id BIGINT NOT NULL REFERENCES contracts(id),
		customer_id BIGINT REFERENCES customers(id),
		description TEXT,
		amount NUMERIC(15,2) NOT NULL,
		fee_date DATE NOT NULL,
		invoice_id BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id BIGSERIAL PRIMARY KEY,
		invoice_number VARCHAR(64) NOT NULL,
		kind VARCHAR(20) NOT NULL,
		contract_id BIGINT NOT NULL REFERENCES contracts(id),
		customer_id BIGINT REFERENCES customers(id),
		meter_reading_id BIGINT REFERENCES meter_readings(id),
		calibration_fee_id BIGINT REFERENCES calibration_fees(id),
		invoice_date DATE NOT NULL,
		due_date DATE NOT NULL,
		total_consumption NUMERIC(12,3) NOT NULL DEFAULT 0,
		subtotal_amount NUMERIC(15,2) NOT NULL,
		environment_fee_amount NUMERIC(15,2) NOT NULL DEFAULT 0,
		vat_amount NUMERIC(15,2) NOT NULL,
		late_payment_fee NUMERIC(15,2) NOT NULL DEFAULT 0,
		total_amount NUMERIC(15,2) NOT NULL,
		payment_status payment_status NOT NULL DEFAULT 'PENDING',
		paid_date DATE,
		accounting_staff_id BIGINT,
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_invoices_number ON invoices (invoice_number);`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices (payment_status);`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_contract_id ON invoices (contract_id);`,
	`CREATE TABLE IF NOT EXISTS approval_requests (
		id BIGSERIAL PRIMARY KEY,
		type VARCHAR(10) NOT NULL,
		contract_id BIGINT NOT NULL REFERENCES contracts(id),
		requester_id BIGINT REFERENCES customers(id),
		to_customer_id BIGINT REFERENCES customers(id),
		reason TEXT NOT NULL,
		evidence TEXT,
		status approval_status NOT NULL DEFAULT 'PENDING',
		approver_note TEXT,
		approved_by_id BIGINT,
		resolved_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_requests_pending ON approval_requests (contract_id, type) WHERE status = 'PENDING';`,
	`CREATE TABLE IF NOT EXISTS audit_entries (
		id BIGSERIAL PRIMARY KEY,
		subject_type VARCHAR(20) NOT NULL,
		subject_id BIGINT NOT NULL,
		event VARCHAR(50) NOT NULL,
		detail TEXT,
		actor_id BIGINT,
		actor_name VARCHAR(255),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_audit_subject ON audit_entries (subject_type, subject_id);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
