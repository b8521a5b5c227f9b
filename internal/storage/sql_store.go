package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/SanjayB2005/TaskManagement/migrations"
	"github.com/SanjayB2005/TaskManagement/pkg/models"
	"github.com/SanjayB2005/TaskManagement/pkg/storage"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const taskColumns = "id, title, description, deadline, status, started_at, duration, created_at, updated_at"

// DBInterface is the part of sqlx shared by *sqlx.DB and *sqlx.Tx.
type DBInterface interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Rebind(query string) string
}

// SQLStore is a storage.Store over PostgreSQL or SQLite. Queries are written
// with '?' placeholders and rebound for the active driver.
type SQLStore struct {
	db         DBInterface
	driverName string
	dsn        string
}

// NewSQLStore opens and pings the database. driverName is "postgres" or
// "sqlite3".
func NewSQLStore(driverName, dsn string) (*SQLStore, error) {
	switch driverName {
	case "postgres", "sqlite3":
	default:
		return nil, errors.Errorf("unsupported driver %q", driverName)
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driverName)
	}
	if driverName == "sqlite3" {
		// one connection keeps ":memory:" databases alive and serializes writers
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(storage.ErrUnavailable, "ping %s: %v", driverName, err)
	}
	return &SQLStore{db: db, driverName: driverName, dsn: dsn}, nil
}

// Migrate brings the schema up to date.
func (s *SQLStore) Migrate() error {
	db, ok := s.db.(*sqlx.DB)
	if !ok {
		return errors.New("cannot migrate inside a transaction")
	}
	if s.driverName == "sqlite3" {
		return migrations.Up(db.DB, s.driverName)
	}
	return migrations.UpURL(s.driverName, s.dsn)
}

func (s *SQLStore) Begin(ctx context.Context) (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return nil, wrapErr(err, "begin transaction")
		}
		return &SQLStore{db: tx, driverName: s.driverName, dsn: s.dsn}, nil
	}
	return nil, errors.New("cannot begin transaction on unknown type")
}

func (s *SQLStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return wrapErr(tx.Commit(), "commit")
	}
	return errors.New("cannot commit: not a transaction")
}

func (s *SQLStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return errors.New("cannot rollback: not a transaction")
}

func (s *SQLStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if db, ok := s.db.(*sqlx.DB); ok {
		if err := db.PingContext(ctx); err != nil {
			return errors.Wrapf(storage.ErrUnavailable, "ping: %v", err)
		}
	}
	return nil
}

// SaveTask inserts a new task.
func (s *SQLStore) SaveTask(ctx context.Context, t models.Task) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.Title, t.Description, t.Deadline, t.Status, t.StartedAt, t.Duration, t.CreatedAt, t.UpdatedAt)
	return wrapErr(err, "save task")
}

// GetTask loads a task by ID. Inside a PostgreSQL transaction the row stays
// locked until commit.
func (s *SQLStore) GetTask(ctx context.Context, id string) (models.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE id = ?"
	if _, inTx := s.db.(*sqlx.Tx); inTx && s.driverName == "postgres" {
		query += " FOR UPDATE"
	}
	var task models.Task
	err := s.db.GetContext(ctx, &task, s.db.Rebind(query), id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Task{}, wrapErr(err, "get task "+id)
	}
	return task, nil
}

// ListTasks returns tasks oldest first.
func (s *SQLStore) ListTasks(ctx context.Context, filter storage.TaskFilter) ([]models.Task, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *filter.Status)
	}
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)")
		pattern := "%" + q + "%"
		args = append(args, pattern, pattern)
	}

	query := "SELECT " + taskColumns + " FROM tasks"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	tasks := []models.Task{}
	if err := s.db.SelectContext(ctx, &tasks, s.db.Rebind(query), args...); err != nil {
		return nil, wrapErr(err, "list tasks")
	}
	return tasks, nil
}

// UpdateTask overwrites every mutable column of an existing task.
func (s *SQLStore) UpdateTask(ctx context.Context, t models.Task) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE tasks
		SET title = ?, description = ?, deadline = ?, status = ?, started_at = ?, duration = ?, updated_at = ?
		WHERE id = ?`),
		t.Title, t.Description, t.Deadline, t.Status, t.StartedAt, t.Duration, t.UpdatedAt, t.ID)
	if err != nil {
		return wrapErr(err, "update task "+t.ID)
	}
	return requireRow(res, storage.ErrNotFound)
}

// UpdateTaskProgress writes a sweep outcome if the task is still On Progress.
func (s *SQLStore) UpdateTaskProgress(ctx context.Context, id string, duration int, status models.TaskStatus, updatedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE tasks
		SET duration = ?, status = ?, updated_at = ?
		WHERE id = ? AND status = ?`),
		duration, status, updatedAt, id, models.InProgressTaskStatus)
	if err != nil {
		return wrapErr(err, "update task progress "+id)
	}
	if err := requireRow(res, storage.ErrStale); err != nil {
		if _, getErr := s.GetTask(ctx, id); errors.Is(getErr, storage.ErrNotFound) {
			return storage.ErrNotFound
		}
		return err
	}
	return nil
}

// DeleteTask removes a task; deleting an unknown ID is not an error.
func (s *SQLStore) DeleteTask(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM tasks WHERE id = ?"), id)
	return wrapErr(err, "delete task "+id)
}

func requireRow(res sql.Result, notAffected error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notAffected
	}
	return nil
}

// wrapErr annotates err and marks connectivity failures as
// storage.ErrUnavailable.
func wrapErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	// a cancelled or expired request is the caller's deadline, not an outage
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, msg)
	}
	if isConnErr(err) {
		return errors.Wrapf(storage.ErrUnavailable, "%s: %v", msg, err)
	}
	return errors.Wrap(err, msg)
}

func isConnErr(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
