package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/slotqueue/internal/directory"
	"github.com/clinicore/slotqueue/internal/memo"
	"github.com/clinicore/slotqueue/internal/queue"
	"github.com/clinicore/slotqueue/internal/slot"
	"github.com/clinicore/slotqueue/pkg/logging"
)

const recordBuffer = 1024

type recordKind int

const (
	recordBooking recordKind = iota
	recordQueueEntry
	recordMemo
	recordEvent
)

type record struct {
	kind    recordKind
	booking slot.Booking
	entry   queue.Entry
	memo    memo.Memo
	event   eventRecord
}

type eventRecord struct {
	kind    string
	topic   string
	payload any
	at      time.Time
}

// Archive persists committed ledger state to Postgres for audit and warm
// reads. Writes go through a buffered channel consumed by Run, so the engine
// never blocks on the database; when the buffer is full the record is
// dropped with a warning, the in-memory ledger stays authoritative.
type Archive struct {
	pool    *pgxpool.Pool
	logger  *logging.Logger
	records chan record
}

func NewArchive(pool *pgxpool.Pool, logger *logging.Logger) *Archive {
	if logger == nil {
		logger = logging.Default()
	}
	return &Archive{
		pool:    pool,
		logger:  logger,
		records: make(chan record, recordBuffer),
	}
}

func (a *Archive) RecordBooking(b slot.Booking) {
	a.enqueue(record{kind: recordBooking, booking: b})
}

func (a *Archive) RecordQueueEntry(e queue.Entry) {
	a.enqueue(record{kind: recordQueueEntry, entry: e})
}

func (a *Archive) RecordMemo(m memo.Memo) {
	a.enqueue(record{kind: recordMemo, memo: m})
}

func (a *Archive) RecordEvent(kind, topic string, payload any) {
	a.enqueue(record{kind: recordEvent, event: eventRecord{
		kind:    kind,
		topic:   topic,
		payload: payload,
		at:      time.Now(),
	}})
}

func (a *Archive) enqueue(rec record) {
	select {
	case a.records <- rec:
	default:
		a.logger.Warn("archive: record buffer full, dropping", "kind", int(rec.kind))
	}
}

// Run drains the record channel until ctx is cancelled.
func (a *Archive) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec := <-a.records:
			if err := a.apply(ctx, rec); err != nil {
				a.logger.Error("archive: write failed", "error", err, "kind", int(rec.kind))
			}
		}
	}
}

func (a *Archive) apply(ctx context.Context, rec record) error {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	switch rec.kind {
	case recordBooking:
		return a.upsertBooking(writeCtx, rec.booking)
	case recordQueueEntry:
		return a.upsertQueueEntry(writeCtx, rec.entry)
	case recordMemo:
		return a.upsertMemo(writeCtx, rec.memo)
	case recordEvent:
		return a.insertEvent(writeCtx, rec.event)
	}
	return nil
}

func (a *Archive) upsertBooking(ctx context.Context, b slot.Booking) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO bookings (id, provider_id, date, slot_label, patient_id, patient_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    updated_at = EXCLUDED.updated_at
	`, b.ID, b.ProviderID, b.Date, b.SlotLabel, b.PatientID, b.PatientName, b.Status, b.CreatedAt, b.UpdatedAt)
	return err
}

func (a *Archive) upsertQueueEntry(ctx context.Context, e queue.Entry) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO queue_entries (visit_id, department_id, date, patient_id, patient_name, token_number, status, joined_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (visit_id) DO UPDATE
		SET status = EXCLUDED.status,
		    updated_at = EXCLUDED.updated_at
	`, e.VisitID, e.DepartmentID, e.Date, e.PatientID, e.PatientName, e.TokenNumber, e.Status, e.JoinedAt, e.UpdatedAt)
	return err
}

func (a *Archive) upsertMemo(ctx context.Context, m memo.Memo) error {
	departments, err := json.Marshal(m.Departments)
	if err != nil {
		return err
	}
	_, err = a.pool.Exec(ctx, `
		INSERT INTO visit_memos (id, patient_id, patient_name, departments, is_read, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET departments = EXCLUDED.departments,
		    is_read = EXCLUDED.is_read,
		    updated_at = EXCLUDED.updated_at
	`, m.ID, m.PatientID, m.PatientName, departments, m.IsRead, m.CreatedAt, m.UpdatedAt)
	return err
}

func (a *Archive) insertEvent(ctx context.Context, ev eventRecord) error {
	payload, err := json.Marshal(ev.payload)
	if err != nil {
		return err
	}
	_, err = a.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, topic, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, ev.kind, ev.topic, payload, ev.at)
	return err
}

// LoadDirectory fills the in-memory directory from the provider and
// department reference tables.
func LoadDirectory(ctx context.Context, pool *pgxpool.Pool, dir *directory.Directory) error {
	rows, err := pool.Query(ctx, `
		SELECT id, name, specialty, slot_labels
		FROM providers
		ORDER BY name
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p directory.Provider
		if err := rows.Scan(&p.ID, &p.Name, &p.Specialty, &p.SlotLabels); err != nil {
			return err
		}
		if len(p.SlotLabels) == 0 {
			p.SlotLabels = directory.DefaultSlotLabels()
		}
		dir.RegisterProvider(p)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	deptRows, err := pool.Query(ctx, `
		SELECT id, name
		FROM departments
		ORDER BY name
	`)
	if err != nil {
		return err
	}
	defer deptRows.Close()

	for deptRows.Next() {
		var d directory.Department
		if err := deptRows.Scan(&d.ID, &d.Name); err != nil {
			return err
		}
		dir.RegisterDepartment(d)
	}
	return deptRows.Err()
}
