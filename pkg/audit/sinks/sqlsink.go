package sinks

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/llm-devops/workflow-core/pkg/audit"
)

// SQLSink is the optional relational audit sink: a single append-only
// table, backed by the pure-Go modernc.org/sqlite driver so the engine
// never needs cgo to persist audit history.
type SQLSink struct {
	db *sql.DB
}

// NewSQLSink opens (and migrates) a sqlite database at dsn for audit
// storage.
func NewSQLSink(dsn string) (*SQLSink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening audit sqlite database")
	}
	const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL,
	step_id TEXT,
	event_type TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	trace_id TEXT,
	span_id TEXT,
	payload TEXT
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrating audit_events table")
	}
	return &SQLSink{db: db}, nil
}

func (s *SQLSink) Name() string { return "sql" }

func (s *SQLSink) Write(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return errors.Wrap(err, "marshalling audit payload")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, workflow_id, step_id, event_type, timestamp, trace_id, span_id, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.WorkflowID, event.StepID, event.EventType,
		event.Timestamp.Format("2006-01-02T15:04:05.000000000Z07:00"),
		event.TraceID, event.SpanID, string(payload),
	)
	if err != nil {
		return errors.Wrap(err, "inserting audit event")
	}
	return nil
}

// Flush is a no-op: every Write is already a committed statement, there is
// no buffered batch to force out.
func (s *SQLSink) Flush(_ context.Context) error { return nil }

// Close releases the underlying database handle.
func (s *SQLSink) Close() error {
	return s.db.Close()
}
