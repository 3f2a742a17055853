package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/slotqueue/internal/db"
	"github.com/clinicore/slotqueue/internal/directory"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := createSchema(context.Background(), pool); err != nil {
		log.Fatalf("create schema: %v", err)
	}
	if err := seedProviders(context.Background(), pool, 40); err != nil {
		log.Fatalf("seed providers: %v", err)
	}
	if err := seedDepartments(context.Background(), pool); err != nil {
		log.Fatalf("seed departments: %v", err)
	}

	log.Println("seed complete")
}

func createSchema(ctx context.Context, pool *pgxpool.Pool) error {
	log.Println("creating schema")

	statements := []string{
		`CREATE TABLE IF NOT EXISTS providers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			specialty TEXT NOT NULL,
			slot_labels TEXT[] NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS departments (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id UUID PRIMARY KEY,
			provider_id TEXT NOT NULL,
			date TEXT NOT NULL,
			slot_label TEXT NOT NULL,
			patient_id TEXT NOT NULL,
			patient_name TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS bookings_triple_idx
			ON bookings (provider_id, date, slot_label)`,
		`CREATE INDEX IF NOT EXISTS bookings_patient_idx
			ON bookings (patient_id)`,
		`CREATE TABLE IF NOT EXISTS queue_entries (
			visit_id UUID PRIMARY KEY,
			department_id TEXT NOT NULL,
			date TEXT NOT NULL,
			patient_id TEXT NOT NULL,
			patient_name TEXT NOT NULL,
			token_number INT NOT NULL,
			status TEXT NOT NULL,
			joined_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS queue_entries_queue_idx
			ON queue_entries (department_id, date, joined_at)`,
		`CREATE TABLE IF NOT EXISTS visit_memos (
			id UUID PRIMARY KEY,
			patient_id TEXT NOT NULL,
			patient_name TEXT NOT NULL,
			departments JSONB NOT NULL,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS visit_memos_patient_idx
			ON visit_memos (patient_id)`,
		`CREATE TABLE IF NOT EXISTS event_logs (
			id BIGSERIAL PRIMARY KEY,
			event_type TEXT NOT NULL,
			topic TEXT NOT NULL,
			payload JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	log.Println("schema ready")
	return nil
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d providers", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.NewString()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO providers (id, name, specialty, slot_labels, created_at)
			VALUES ($1, $2, $3, $4, now())
		`, id, name, spec, directory.DefaultSlotLabels())
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("providers seeded")
	return nil
}

func seedDepartments(ctx context.Context, pool *pgxpool.Pool) error {
	departments := []string{
		"Radiology",
		"Pathology",
		"Pharmacy",
		"Physiotherapy",
		"Cardiology OPD",
		"General OPD",
		"Blood Bank",
		"Dental",
	}

	log.Printf("seeding %d departments", len(departments))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, name := range departments {
		_, err := tx.Exec(ctx, `
			INSERT INTO departments (id, name, created_at)
			VALUES ($1, $2, now())
			ON CONFLICT (id) DO NOTHING
		`, uuid.NewString(), name)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("departments seeded")
	return nil
}
