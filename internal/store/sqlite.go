package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/qmailtrail/internal/logline"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - messages and deliveries tables
const currentSchemaVersion = 1

// MemoryPath opens an SQLite database that lives only as long as the Store.
const MemoryPath = ":memory:"

type sqliteBackend struct {
	db *sql.DB
}

// OpenSQLite returns a Store backed by SQLite at path (MemoryPath for an
// in-memory database). Existing rows are deleted: the database is scratch
// space for one run, not a checkpoint.
//
// The database is configured with:
//   - a single connection (an in-memory database is per-connection)
//   - WAL mode and NORMAL synchronous mode for file databases
//   - 5-second busy timeout for lock contention
func OpenSQLite(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	if err := truncate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reset tables: %w", err)
	}

	return &Store{b: &sqliteBackend{db: db}}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func truncate(db *sql.DB) error {
	for _, table := range []string{"messages", "deliveries"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	return nil
}

func (s *sqliteBackend) getMessage(ctx context.Context, id logline.ID) (MessageRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, size, sender, direction, recipient,
		       delivery_status, delivery_detail, completed_at, fields
		FROM messages
		WHERE id = ?
	`, string(id))

	rec, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return MessageRecord{}, false, nil
	}
	if err != nil {
		return MessageRecord{}, false, err
	}
	return rec, true, nil
}

func (s *sqliteBackend) putMessage(ctx context.Context, rec MessageRecord) error {
	var completedAt sql.NullInt64
	if !rec.CompletionTime.IsZero() {
		completedAt = sql.NullInt64{Int64: rec.CompletionTime.UnixNano(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages
		(id, size, sender, direction, recipient, delivery_status, delivery_detail, completed_at, fields)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			size = excluded.size,
			sender = excluded.sender,
			direction = excluded.direction,
			recipient = excluded.recipient,
			delivery_status = excluded.delivery_status,
			delivery_detail = excluded.delivery_detail,
			completed_at = excluded.completed_at,
			fields = excluded.fields
	`,
		string(rec.ID),
		rec.Size,
		rec.Sender,
		string(rec.Direction),
		rec.Recipient,
		rec.DeliveryStatus,
		rec.DeliveryDetail,
		completedAt,
		int64(rec.Fields),
	)
	if err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (s *sqliteBackend) deleteMessage(ctx context.Context, id logline.ID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, string(id)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (s *sqliteBackend) getBinding(ctx context.Context, deliveryID logline.ID) (logline.ID, bool, error) {
	var messageID string
	err := s.db.QueryRowContext(ctx,
		`SELECT message_id FROM deliveries WHERE id = ?`, string(deliveryID),
	).Scan(&messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read delivery: %w", err)
	}
	return logline.ID(messageID), true, nil
}

func (s *sqliteBackend) putBinding(ctx context.Context, b Binding) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deliveries (id, message_id) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET message_id = excluded.message_id
	`, string(b.DeliveryID), string(b.MessageID))
	if err != nil {
		return fmt.Errorf("write delivery: %w", err)
	}
	return nil
}

func (s *sqliteBackend) deleteBinding(ctx context.Context, deliveryID logline.ID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM deliveries WHERE id = ?`, string(deliveryID)); err != nil {
		return fmt.Errorf("delete delivery: %w", err)
	}
	return nil
}

// snapshot orders by (length(id), id): canonical ids have no leading
// zeros, so this is numeric order.
func (s *sqliteBackend) snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		Messages:   []MessageRecord{},
		Deliveries: []Binding{},
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, size, sender, direction, recipient,
		       delivery_status, delivery_detail, completed_at, fields
		FROM messages
		ORDER BY length(id) ASC, id ASC
	`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanMessage(rows)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Messages = append(snap.Messages, rec)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("iterate messages: %w", err)
	}

	drows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id
		FROM deliveries
		ORDER BY length(id) ASC, id ASC
	`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query deliveries: %w", err)
	}
	defer drows.Close()

	for drows.Next() {
		var did, mid string
		if err := drows.Scan(&did, &mid); err != nil {
			return Snapshot{}, fmt.Errorf("scan delivery: %w", err)
		}
		snap.Deliveries = append(snap.Deliveries, Binding{
			DeliveryID: logline.ID(did),
			MessageID:  logline.ID(mid),
		})
	}
	if err := drows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("iterate deliveries: %w", err)
	}

	return snap, nil
}

func (s *sqliteBackend) close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (MessageRecord, error) {
	var (
		rec         MessageRecord
		id          string
		direction   string
		completedAt sql.NullInt64
		fields      int64
	)
	err := row.Scan(
		&id,
		&rec.Size,
		&rec.Sender,
		&direction,
		&rec.Recipient,
		&rec.DeliveryStatus,
		&rec.DeliveryDetail,
		&completedAt,
		&fields,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MessageRecord{}, err
		}
		return MessageRecord{}, fmt.Errorf("scan message: %w", err)
	}

	rec.ID = logline.ID(id)
	rec.Direction = logline.Direction(direction)
	rec.Fields = Fields(fields)
	if completedAt.Valid {
		rec.CompletionTime = time.Unix(0, completedAt.Int64)
	}
	return rec, nil
}
