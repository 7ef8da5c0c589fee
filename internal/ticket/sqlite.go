package ticket

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fixbot-io/fixbot/pkg/protocol"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ticket store: open: %w", err)
	}

	// Enable WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ticket store: wal: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tickets (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at       TEXT NOT NULL,
			completed_at     TEXT,
			status           TEXT NOT NULL DEFAULT 'new',
			exhibit          TEXT NOT NULL,
			problem          TEXT NOT NULL,
			requester_handle TEXT NOT NULL,
			requester_id     INTEGER NOT NULL,
			engineer_handle  TEXT NOT NULL DEFAULT '',
			engineer_name    TEXT NOT NULL DEFAULT '',
			resolution       TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS engineers (
			chat_id INTEGER PRIMARY KEY,
			name    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS exhibits (
			name     TEXT NOT NULL,
			problem  TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
		CREATE INDEX IF NOT EXISTS idx_tickets_requester ON tickets(requester_id);
	`)
	if err != nil {
		return fmt.Errorf("ticket store: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Create(exhibit, problem string, requester protocol.Identity) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO tickets (created_at, status, exhibit, problem, requester_handle, requester_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, time.Now().Format(time.RFC3339), string(protocol.TicketNew), exhibit, problem, requester.Handle, requester.ID)
	if err != nil {
		return 0, fmt.Errorf("ticket store: create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ticket store: create id: %w", err)
	}
	return id, nil
}

const ticketColumns = `id, created_at, completed_at, status, exhibit, problem, requester_handle, requester_id, engineer_handle, engineer_name, resolution`

func (s *SQLiteStore) FindByID(id int64) (*protocol.Ticket, error) {
	row := s.db.QueryRow(`SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
	t, err := scanTicket(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ticket store: find: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) ListByStatus(status protocol.TicketStatus) ([]*protocol.Ticket, error) {
	return s.list(`SELECT `+ticketColumns+` FROM tickets WHERE status = ? ORDER BY id`, string(status))
}

func (s *SQLiteStore) ListByRequester(requesterID int64) ([]*protocol.Ticket, error) {
	return s.list(`SELECT `+ticketColumns+` FROM tickets WHERE requester_id = ? ORDER BY id`, requesterID)
}

func (s *SQLiteStore) list(query string, arg any) ([]*protocol.Ticket, error) {
	rows, err := s.db.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("ticket store: list: %w", err)
	}
	defer rows.Close()

	var tickets []*protocol.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("ticket store: list scan: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// Transition reads the row, verifies its current status matches expected,
// then writes the new status and the given fields. The backing table offers
// no compare-and-set; callers serialize transitions per ticket id so the
// read-verify-write span is not interleaved.
func (s *SQLiteStore) Transition(id int64, expected, next protocol.TicketStatus, fields TransitionFields) (bool, error) {
	var current string
	err := s.db.QueryRow(`SELECT status FROM tickets WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ticket store: transition read: %w", err)
	}
	if current != string(expected) {
		return false, nil
	}

	var res sql.Result
	switch next {
	case protocol.TicketInProgress:
		res, err = s.db.Exec(`
			UPDATE tickets SET status = ?, engineer_handle = ?, engineer_name = ?
			WHERE id = ? AND status = ?
		`, string(next), fields.EngineerHandle, fields.EngineerName, id, string(expected))
	case protocol.TicketCompleted:
		var completedAt string
		if fields.CompletedAt != nil {
			completedAt = fields.CompletedAt.Format(time.RFC3339)
		} else {
			completedAt = time.Now().Format(time.RFC3339)
		}
		res, err = s.db.Exec(`
			UPDATE tickets SET status = ?, completed_at = ?, resolution = ?
			WHERE id = ? AND status = ?
		`, string(next), completedAt, fields.Resolution, id, string(expected))
	default:
		return false, fmt.Errorf("ticket store: transition to %q not supported", next)
	}
	if err != nil {
		return false, fmt.Errorf("ticket store: transition write: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (s *SQLiteStore) ListEngineers() ([]Engineer, error) {
	rows, err := s.db.Query(`SELECT chat_id, name FROM engineers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("ticket store: list engineers: %w", err)
	}
	defer rows.Close()

	var engineers []Engineer
	for rows.Next() {
		var e Engineer
		if err := rows.Scan(&e.ChatID, &e.Name); err != nil {
			return nil, fmt.Errorf("ticket store: scan engineer: %w", err)
		}
		engineers = append(engineers, e)
	}
	return engineers, rows.Err()
}

func (s *SQLiteStore) ListExhibits() ([]Exhibit, error) {
	rows, err := s.db.Query(`SELECT name, problem FROM exhibits ORDER BY name, position`)
	if err != nil {
		return nil, fmt.Errorf("ticket store: list exhibits: %w", err)
	}
	defer rows.Close()

	var exhibits []Exhibit
	index := make(map[string]int)
	for rows.Next() {
		var name, problem string
		if err := rows.Scan(&name, &problem); err != nil {
			return nil, fmt.Errorf("ticket store: scan exhibit: %w", err)
		}
		i, ok := index[name]
		if !ok {
			i = len(exhibits)
			index[name] = i
			exhibits = append(exhibits, Exhibit{Name: name})
		}
		if problem != "" {
			exhibits[i].Problems = append(exhibits[i].Problems, problem)
		}
	}
	return exhibits, rows.Err()
}

// DB returns the underlying database connection (for testing or direct access).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// --- helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanTicket(row scannable) (*protocol.Ticket, error) {
	var t protocol.Ticket
	var createdAt string
	var completedAt *string
	var status, engineerHandle, engineerName string

	err := row.Scan(&t.ID, &createdAt, &completedAt, &status, &t.Exhibit, &t.Problem,
		&t.Requester.Handle, &t.Requester.ID, &engineerHandle, &engineerName, &t.Resolution)
	if err != nil {
		return nil, err
	}

	t.Status = protocol.TicketStatus(status)
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if completedAt != nil && *completedAt != "" {
		ct, _ := time.Parse(time.RFC3339, *completedAt)
		t.CompletedAt = &ct
	}
	if engineerHandle != "" || engineerName != "" {
		t.Engineer = &protocol.Identity{Handle: engineerHandle, Name: engineerName}
	}
	return &t, nil
}
