package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	_ "github.com/lib/pq"
)

var identifier = regexp.MustCompile("^[a-zA-Z0-9_]+$")

// PostgresStore implements Journal on a single upserted table.
type PostgresStore struct {
	db        *sql.DB
	tableName string
}

// NewPostgresStore initializes PostgreSQL storage.
// tablePrefix defaults to "namer_"; the table is prefix + "runs".
func NewPostgresStore(connStr string, tablePrefix string) (*PostgresStore, error) {
	if tablePrefix == "" {
		tablePrefix = "namer_"
	}
	tableName := tablePrefix + "runs"
	if !identifier.MatchString(tableName) {
		return nil, fmt.Errorf("invalid table name: %s", tableName)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	store := &PostgresStore{
		db:        db,
		tableName: tableName,
	}
	if err := store.initTable(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (p *PostgresStore) initTable() error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		run_key VARCHAR(255) PRIMARY KEY,
		correlation_id TEXT NOT NULL,
		record JSONB NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`, p.tableName)
	_, err := p.db.Exec(query)
	return err
}

func (p *PostgresStore) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
	INSERT INTO %s (run_key, correlation_id, record, updated_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (run_key)
	DO UPDATE SET correlation_id = EXCLUDED.correlation_id, record = EXCLUDED.record, updated_at = NOW();
	`, p.tableName)
	_, err = p.db.ExecContext(ctx, query, rec.Key(), rec.CorrelationID, data)
	return err
}

func (p *PostgresStore) Load(ctx context.Context, chain, contract string) (*Record, error) {
	var data []byte
	query := fmt.Sprintf("SELECT record FROM %s WHERE run_key = $1", p.tableName)
	err := p.db.QueryRowContext(ctx, query, Key(chain, contract)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", Key(chain, contract), err)
	}
	return &rec, nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}
