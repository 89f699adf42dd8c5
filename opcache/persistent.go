package opcache

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
)

// PersistedDocument is one row a PersistentStore hands back to
// WarmOnReload: enough to recompile without the original requester
// around.
type PersistedDocument struct {
	Document      string
	OperationName string
}

// PersistentStore backs operation_caching.warm_on_reload: every
// compiled document is saved here as it's built, so a restarted or
// hot-reloaded gateway can proactively recompile its hottest keys
// instead of waiting for traffic to repopulate the cache cold.
type PersistentStore interface {
	Save(ctx context.Context, key, document, operationName, schemaVersion string) error
	Load(ctx context.Context) ([]PersistedDocument, error)
}

// MySQLStore is the PersistentStore backed by a SQL table of
// (cache_key, document, operation_name, schema_version) rows.
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

const createOperationCacheTable = `
CREATE TABLE IF NOT EXISTS operation_cache (
	cache_key      VARCHAR(191) PRIMARY KEY,
	document       MEDIUMTEXT NOT NULL,
	operation_name VARCHAR(255) NOT NULL,
	schema_version VARCHAR(64) NOT NULL,
	saved_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// EnsureSchema creates the backing table if it doesn't already exist.
func (s *MySQLStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createOperationCacheTable)
	return err
}

func (s *MySQLStore) Save(ctx context.Context, key, document, operationName, schemaVersion string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operation_cache (cache_key, document, operation_name, schema_version)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			document = VALUES(document),
			operation_name = VALUES(operation_name),
			schema_version = VALUES(schema_version),
			saved_at = CURRENT_TIMESTAMP
	`, key, document, operationName, schemaVersion)
	return err
}

func (s *MySQLStore) Load(ctx context.Context) ([]PersistedDocument, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT document, operation_name FROM operation_cache`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PersistedDocument
	for rows.Next() {
		var d PersistedDocument
		if err := rows.Scan(&d.Document, &d.OperationName); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
