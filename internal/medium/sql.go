package medium

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"lernguide/internal/storage"
)

// SQL stores items in the kv_items table of a relational database.
type SQL struct {
	db       *sql.DB
	driver   string
	capacity int
}

// NewSQL migrates db and returns a medium over it. The medium owns db.
func NewSQL(db *sql.DB, driver string, capacity int) (*SQL, error) {
	driver = storage.Normalize(driver)
	if err := storage.Migrate(db, driver); err != nil {
		return nil, err
	}
	return &SQL{db: db, driver: driver, capacity: capacity}, nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQL) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQL) upsertQuery() string {
	switch s.driver {
	case "mysql":
		return `INSERT INTO kv_items (item_key, item_value, updated_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE item_value = VALUES(item_value), updated_at = VALUES(updated_at)`
	default:
		return s.rebind(`INSERT INTO kv_items (item_key, item_value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (item_key) DO UPDATE SET item_value = excluded.item_value, updated_at = excluded.updated_at`)
	}
}

// usageQuery sums the byte length of every other item.
func (s *SQL) usageQuery() string {
	size := func(col string) string { return "OCTET_LENGTH(" + col + ")" }
	if s.driver == "sqlite3" {
		size = func(col string) string { return "LENGTH(CAST(" + col + " AS BLOB))" }
	}
	return s.rebind(`SELECT COALESCE(SUM(` + size("item_key") + ` + ` + size("item_value") +
		`), 0) FROM kv_items WHERE item_key <> ?`)
}

func (s *SQL) SetItem(ctx context.Context, key, value string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin kv write: %w", err)
	}
	defer tx.Rollback()

	var used int64
	err = tx.QueryRowContext(ctx, s.usageQuery(), key).Scan(&used)
	if err != nil {
		return fmt.Errorf("measure kv usage: %w", err)
	}
	if exceeds(s.capacity, int(used)+itemSize(key, value)) {
		return ErrQuotaExceeded
	}
	if _, err := tx.ExecContext(ctx, s.upsertQuery(), key, value, time.Now().UTC()); err != nil {
		if isSQLQuotaError(err) {
			return ErrQuotaExceeded
		}
		return fmt.Errorf("write kv item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		if isSQLQuotaError(err) {
			return ErrQuotaExceeded
		}
		return fmt.Errorf("commit kv write: %w", err)
	}
	return nil
}

func (s *SQL) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT item_value FROM kv_items WHERE item_key = ?`), key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read kv item: %w", err)
	}
	return value, true, nil
}

func (s *SQL) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM kv_items WHERE item_key = ?`), key); err != nil {
		return fmt.Errorf("delete kv item: %w", err)
	}
	return nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}

// isSQLQuotaError recognizes size and disk-full rejections from each driver.
func isSQLQuotaError(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// 1406 data too long, 1114 table is full, 1153 packet too large
		return myErr.Number == 1406 || myErr.Number == 1114 || myErr.Number == 1153
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrFull || liteErr.Code == sqlite3.ErrTooBig
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// disk_full, program_limit_exceeded
		return pgErr.Code == "53100" || pgErr.Code == "54000"
	}
	return false
}
