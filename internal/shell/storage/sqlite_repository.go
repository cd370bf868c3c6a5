package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sierra-export/internal/core/domain"
	"sierra-export/internal/core/usecases"
)

// sqliteTimeLayout keeps a fixed-width fraction so stored timestamps
// stay lexically ordered; RFC3339Nano trims trailing zeros and breaks
// ORDER BY within the same second.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteExportRepository stores export instances in a local SQLite
// file. It is the default backend for single-node deployments.
type SQLiteExportRepository struct {
	db *sql.DB
}

func NewSQLiteExportRepository(dbPath string) (*SQLiteExportRepository, error) {
	log.Printf("[DEBUG] SQLiteExportRepository - opening database: %s", dbPath)

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	repo := &SQLiteExportRepository{db: db}
	if err := repo.initSchema(); err != nil {
		return nil, err
	}

	log.Printf("[DEBUG] SQLiteExportRepository - database initialized successfully")
	return repo, nil
}

func (r *SQLiteExportRepository) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS export_instances (
    id TEXT PRIMARY KEY,
    export_type TEXT NOT NULL,
    export_filter TEXT NOT NULL,
    filter_options TEXT NOT NULL, -- JSON string
    username TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    status TEXT NOT NULL,
    errors INTEGER NOT NULL DEFAULT 0,
    warnings INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Index for common queries
CREATE INDEX IF NOT EXISTS idx_instances_type ON export_instances(export_type);
CREATE INDEX IF NOT EXISTS idx_instances_status ON export_instances(status);
CREATE INDEX IF NOT EXISTS idx_instances_type_status ON export_instances(export_type, status);
CREATE INDEX IF NOT EXISTS idx_instances_timestamp ON export_instances(timestamp);

-- Trigger to update updated_at timestamp
CREATE TRIGGER IF NOT EXISTS update_instances_updated_at
    AFTER UPDATE ON export_instances
    FOR EACH ROW
BEGIN
    UPDATE export_instances SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
END;
`
	_, err := r.db.Exec(schema)
	if err != nil {
		log.Printf("[DEBUG] SQLiteExportRepository - schema initialization failed: %v", err)
	}
	return err
}

func (r *SQLiteExportRepository) Save(instance domain.ExportInstance) error {
	optionsJSON, err := json.Marshal(instance.Options)
	if err != nil {
		return err
	}

	// Use UPSERT (INSERT OR REPLACE)
	query := `
		INSERT OR REPLACE INTO export_instances
			(id, export_type, export_filter, filter_options, username, timestamp, status, errors, warnings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?,
			COALESCE((SELECT created_at FROM export_instances WHERE id = ?), CURRENT_TIMESTAMP),
			CURRENT_TIMESTAMP
		)
	`

	_, err = r.db.Exec(query, instance.ID, instance.ExportType, instance.Filter,
		string(optionsJSON), instance.Username, instance.Timestamp.UTC().Format(sqliteTimeLayout),
		string(instance.Status), instance.Errors, instance.Warnings, instance.ID)
	if err != nil {
		log.Printf("[DEBUG] SQLiteExportRepository.Save - database error: %v", err)
	}
	return err
}

func (r *SQLiteExportRepository) FindByID(id string) (domain.ExportInstance, error) {
	query := `
		SELECT id, export_type, export_filter, filter_options, username, timestamp, status, errors, warnings
		FROM export_instances
		WHERE id = ?
	`
	instance, err := scanInstance(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return domain.ExportInstance{}, domain.ErrInstanceNotFound
	}
	return instance, err
}

func (r *SQLiteExportRepository) FindAll(query usecases.ListQuery) ([]domain.ExportInstance, int, error) {
	where := "WHERE 1=1"
	var args []interface{}
	if query.Status != "" {
		where += " AND status = ?"
		args = append(args, query.Status)
	}
	if query.ExportType != "" {
		where += " AND export_type = ?"
		args = append(args, query.ExportType)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM export_instances " + where
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `
		SELECT id, export_type, export_filter, filter_options, username, timestamp, status, errors, warnings
		FROM export_instances ` + where + `
		ORDER BY timestamp DESC
	`
	if query.Limit > 0 {
		listQuery += " LIMIT ? OFFSET ?"
		args = append(args, query.Limit, query.Offset)
	}

	rows, err := r.db.Query(listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var instances []domain.ExportInstance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			log.Printf("[DEBUG] SQLiteExportRepository.FindAll - scan error: %v", err)
			return nil, 0, err
		}
		instances = append(instances, instance)
	}
	return instances, total, rows.Err()
}

func (r *SQLiteExportRepository) LatestFinished(exportType string) (domain.ExportInstance, error) {
	query := `
		SELECT id, export_type, export_filter, filter_options, username, timestamp, status, errors, warnings
		FROM export_instances
		WHERE export_type = ? AND status IN ('success', 'done_with_errors')
		ORDER BY timestamp DESC
		LIMIT 1
	`
	instance, err := scanInstance(r.db.QueryRow(query, exportType))
	if err == sql.ErrNoRows {
		return domain.ExportInstance{}, domain.ErrInstanceNotFound
	}
	return instance, err
}

func (r *SQLiteExportRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM export_instances WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrInstanceNotFound
	}
	return nil
}

func (r *SQLiteExportRepository) Close() error {
	return r.db.Close()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInstance(row rowScanner) (domain.ExportInstance, error) {
	var instance domain.ExportInstance
	var optionsJSON, timestampStr, statusStr string

	err := row.Scan(&instance.ID, &instance.ExportType, &instance.Filter, &optionsJSON,
		&instance.Username, &timestampStr, &statusStr, &instance.Errors, &instance.Warnings)
	if err != nil {
		return domain.ExportInstance{}, err
	}

	if optionsJSON != "" && optionsJSON != "null" {
		if err := json.Unmarshal([]byte(optionsJSON), &instance.Options); err != nil {
			return domain.ExportInstance{}, err
		}
	}
	parsed, err := time.Parse(sqliteTimeLayout, timestampStr)
	if err != nil {
		// Rows written before the fixed-width layout carry a trimmed
		// fraction.
		parsed, err = time.Parse(time.RFC3339Nano, timestampStr)
	}
	if err != nil {
		return domain.ExportInstance{}, fmt.Errorf("unparseable timestamp %q: %w", timestampStr, err)
	}
	instance.Timestamp = parsed
	instance.Status = domain.ParseStatus(statusStr)
	return instance, nil
}
