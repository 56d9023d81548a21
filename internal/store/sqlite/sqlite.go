package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/roomchat/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema without migrations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection serializes every transaction, which is what the
	// registry's read-modify-write updates rely on.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

// ==== UserStore implementation ====

// CreateUser inserts a user with a password hash.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, username, passwordHash); err != nil {
		if isConstraintErr(err) {
			return nil, fmt.Errorf("insert user %q: %w", username, store.ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetUser(ctx, username)
}

// GetUser retrieves a user by exact username.
func (s *SQLiteStore) GetUser(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT username, password_hash, created_at
		FROM users
		WHERE username = ? COLLATE BINARY
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// UserExists reports whether a username is taken, ignoring case.
func (s *SQLiteStore) UserExists(ctx context.Context, username string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username = ? COLLATE NOCASE`, username).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query user exists: %w", err)
	}
	return true, nil
}

// ListUsers returns all users ordered by username.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*store.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, created_at
		FROM users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		var user store.User
		if err := rows.Scan(&user.Username, &user.PasswordHash, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &user)
	}

	return users, rows.Err()
}

// DeleteUser removes a user, matching the name case-insensitively.
func (s *SQLiteStore) DeleteUser(ctx context.Context, username string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE username = ? COLLATE NOCASE`, username)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %q: %w", username, store.ErrNotFound)
	}
	return nil
}

// ==== RoomStore implementation ====

// CreateRoom inserts a room with its member lists.
func (s *SQLiteStore) CreateRoom(ctx context.Context, room *store.Room) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	query := `
		INSERT INTO rooms (name, private, creator)
		VALUES (?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, query, room.Name, room.Private, room.Creator); err != nil {
		if isConstraintErr(err) {
			return fmt.Errorf("insert room %q: %w", room.Name, store.ErrConflict)
		}
		return fmt.Errorf("insert room: %w", err)
	}

	if err := writeMembers(ctx, tx, room); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	created, err := loadRoom(ctx, s.db, room.Name)
	if err != nil {
		return err
	}
	room.CreatedAt = created.CreatedAt
	return nil
}

// GetRoom retrieves a room by name.
func (s *SQLiteStore) GetRoom(ctx context.Context, name string) (*store.Room, error) {
	return loadRoom(ctx, s.db, name)
}

// ListRooms returns every room ordered by creation.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]*store.Room, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM rooms ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan room: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	// Release the only connection before loading member lists.
	rows.Close()

	rooms := make([]*store.Room, 0, len(names))
	for _, name := range names {
		room, err := loadRoom(ctx, s.db, name)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// UpdateRoom applies fn to the stored room inside a transaction.
func (s *SQLiteStore) UpdateRoom(ctx context.Context, name string, fn func(*store.Room) error) (*store.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	room, err := loadRoom(ctx, tx, name)
	if err != nil {
		return nil, err
	}

	if err := fn(room); err != nil {
		return nil, err
	}
	// The primary key never changes through an update.
	room.Name = name

	if _, err := tx.ExecContext(ctx, `UPDATE rooms SET private = ?, creator = ? WHERE name = ?`, room.Private, room.Creator, name); err != nil {
		return nil, fmt.Errorf("update room: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM room_allowed WHERE room = ?`, name); err != nil {
		return nil, fmt.Errorf("clear allowed: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM room_muted WHERE room = ?`, name); err != nil {
		return nil, fmt.Errorf("clear muted: %w", err)
	}
	if err := writeMembers(ctx, tx, room); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return room, nil
}

// DeleteRoom removes a room, its member lists and its whole message log.
func (s *SQLiteStore) DeleteRoom(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	result, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("room %q: %w", name, store.ErrNotFound)
	}

	for _, query := range []string{
		`DELETE FROM room_allowed WHERE room = ?`,
		`DELETE FROM room_muted WHERE room = ?`,
		`DELETE FROM messages WHERE room = ?`,
	} {
		if _, err := tx.ExecContext(ctx, query, name); err != nil {
			return fmt.Errorf("purge room %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func loadRoom(ctx context.Context, q querier, name string) (*store.Room, error) {
	var room store.Room
	err := q.QueryRowContext(ctx, `
		SELECT name, private, creator, created_at
		FROM rooms
		WHERE name = ?
	`, name).Scan(&room.Name, &room.Private, &room.Creator, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %q: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}

	room.Allowed, err = loadNames(ctx, q, `SELECT username FROM room_allowed WHERE room = ? ORDER BY position ASC`, name)
	if err != nil {
		return nil, fmt.Errorf("query allowed: %w", err)
	}
	room.Muted, err = loadNames(ctx, q, `SELECT username FROM room_muted WHERE room = ? ORDER BY position ASC`, name)
	if err != nil {
		return nil, fmt.Errorf("query muted: %w", err)
	}
	return &room, nil
}

func loadNames(ctx context.Context, q querier, query, room string) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, room)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func writeMembers(ctx context.Context, q querier, room *store.Room) error {
	for i, user := range room.Allowed {
		if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO room_allowed (room, username, position) VALUES (?, ?, ?)`, room.Name, user, i); err != nil {
			return fmt.Errorf("insert allowed: %w", err)
		}
	}
	for i, user := range room.Muted {
		if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO room_muted (room, username, position) VALUES (?, ?, ?)`, room.Name, user, i); err != nil {
			return fmt.Errorf("insert muted: %w", err)
		}
	}
	return nil
}

// ==== MessageStore implementation ====

// AppendMessage persists a message at the end of its room's log.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	query := `
		INSERT INTO messages (room, sender, body, type, ts)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, query, msg.Room, msg.From, msg.Text, string(msg.Type), msg.Timestamp)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	var index int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE room = ? AND id < ?`, msg.Room, id).Scan(&index); err != nil {
		return fmt.Errorf("count messages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	msg.ID = id
	msg.Index = index
	return nil
}

// ListMessages returns a room's log in append order.
func (s *SQLiteStore) ListMessages(ctx context.Context, room string) ([]*store.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room, sender, body, type, ts
		FROM messages
		WHERE room = ?
		ORDER BY id ASC
	`, room)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []*store.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msg.Index = len(messages)
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// DeleteMessageAt removes the message at a zero-based log position.
func (s *SQLiteStore) DeleteMessageAt(ctx context.Context, room string, index int, authorize func(*store.Message) error) (*store.Message, error) {
	if index < 0 {
		return nil, fmt.Errorf("message %d: %w", index, store.ErrNotFound)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	row := tx.QueryRowContext(ctx, `
		SELECT id, room, sender, body, type, ts
		FROM messages
		WHERE room = ?
		ORDER BY id ASC
		LIMIT 1 OFFSET ?
	`, room, index)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %d in %q: %w", index, room, store.ErrNotFound)
		}
		return nil, err
	}

	msg.Index = index

	if authorize != nil {
		if err := authorize(msg); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, msg.ID); err != nil {
		return nil, fmt.Errorf("delete message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return msg, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (*store.Message, error) {
	var msg store.Message
	var msgType string
	if err := row.Scan(&msg.ID, &msg.Room, &msg.From, &msg.Text, &msgType, &msg.Timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}
	msg.Type = store.MessageType(msgType)
	return &msg, nil
}

var _ store.Store = (*SQLiteStore)(nil)
