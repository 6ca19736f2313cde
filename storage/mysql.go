package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLBlobStore is a MySQL-backed BlobStore for multi-instance deployments
// that need a shared, durable artifact/checkpoint backend.
type MySQLBlobStore struct {
	db *sql.DB
}

// NewMySQLBlobStore opens (and migrates) a MySQL-backed BlobStore using dsn,
// a standard go-sql-driver/mysql data source name.
func NewMySQLBlobStore(dsn string) (*MySQLBlobStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open mysql: %w", err)
	}

	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: ping mysql: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS blobs (
	` + "`key`" + ` VARCHAR(512) PRIMARY KEY,
	value LONGBLOB NOT NULL
) ENGINE=InnoDB;`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: create schema: %w", err)
	}

	return &MySQLBlobStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *MySQLBlobStore) Close() error {
	return s.db.Close()
}

func (s *MySQLBlobStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO blobs (`key`, value) VALUES (?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value)",
		key, value)
	if err != nil {
		return fmt.Errorf("storage: put %q: %w", key, err)
	}
	return nil
}

func (s *MySQLBlobStore) PutIfAbsent(ctx context.Context, key string, value []byte) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT IGNORE INTO blobs (`key`, value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("storage: put-if-absent %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: put-if-absent %q: %w", key, err)
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *MySQLBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM blobs WHERE `key` = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get %q: %w", key, err)
	}
	return value, nil
}

func (s *MySQLBlobStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM blobs WHERE `key` = ?", key); err != nil {
		return fmt.Errorf("storage: delete %q: %w", key, err)
	}
	return nil
}

func (s *MySQLBlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT `key` FROM blobs WHERE `key` LIKE CONCAT(?, '%') ORDER BY `key`", prefix)
	if err != nil {
		return nil, fmt.Errorf("storage: list %q: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("storage: list %q: %w", prefix, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
