package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"sierra-export/internal/config"
	"sierra-export/internal/core/domain"
	"sierra-export/internal/core/usecases"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// PostgresExportRepository stores export instances in PostgreSQL for
// multi-node deployments. Schema changes ship as embedded migrations
// and run at startup.
type PostgresExportRepository struct {
	db *sql.DB
}

func NewPostgresExportRepository(dbConfig config.DatabaseConfig) (*PostgresExportRepository, error) {
	log.Printf("[DEBUG] PostgresExportRepository - connecting to %s:%d/%s", dbConfig.Host, dbConfig.Port, dbConfig.Name)

	db, err := sql.Open("postgres", dbConfig.ConnectionString())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(dbConfig.MaxOpenConnections)
	db.SetMaxIdleConns(dbConfig.MaxIdleConnections)
	db.SetConnMaxLifetime(dbConfig.ConnectionMaxLifetime)

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Printf("[DEBUG] PostgresExportRepository - database initialized successfully")
	return &PostgresExportRepository{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}
	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func (r *PostgresExportRepository) Save(instance domain.ExportInstance) error {
	optionsJSON, err := json.Marshal(instance.Options)
	if err != nil {
		return err
	}
	if instance.Options == nil {
		optionsJSON = []byte("{}")
	}

	query := `
		INSERT INTO export_instances
			(id, export_type, export_filter, filter_options, username, timestamp, status, errors, warnings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			errors = EXCLUDED.errors,
			warnings = EXCLUDED.warnings,
			updated_at = NOW()
	`
	_, err = r.db.Exec(query, instance.ID, instance.ExportType, instance.Filter,
		optionsJSON, instance.Username, instance.Timestamp,
		string(instance.Status), instance.Errors, instance.Warnings)
	if err != nil {
		log.Printf("[DEBUG] PostgresExportRepository.Save - database error: %v", err)
	}
	return err
}

func (r *PostgresExportRepository) FindByID(id string) (domain.ExportInstance, error) {
	query := `
		SELECT id, export_type, export_filter, filter_options, username, timestamp, status, errors, warnings
		FROM export_instances
		WHERE id = $1
	`
	instance, err := scanPostgresInstance(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return domain.ExportInstance{}, domain.ErrInstanceNotFound
	}
	return instance, err
}

func (r *PostgresExportRepository) FindAll(query usecases.ListQuery) ([]domain.ExportInstance, int, error) {
	where := "WHERE 1=1"
	var args []interface{}
	if query.Status != "" {
		args = append(args, query.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if query.ExportType != "" {
		args = append(args, query.ExportType)
		where += fmt.Sprintf(" AND export_type = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM export_instances "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `
		SELECT id, export_type, export_filter, filter_options, username, timestamp, status, errors, warnings
		FROM export_instances ` + where + `
		ORDER BY timestamp DESC
	`
	if query.Limit > 0 {
		args = append(args, query.Limit, query.Offset)
		listQuery += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.Query(listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var instances []domain.ExportInstance
	for rows.Next() {
		instance, err := scanPostgresInstance(rows)
		if err != nil {
			return nil, 0, err
		}
		instances = append(instances, instance)
	}
	return instances, total, rows.Err()
}

func (r *PostgresExportRepository) LatestFinished(exportType string) (domain.ExportInstance, error) {
	query := `
		SELECT id, export_type, export_filter, filter_options, username, timestamp, status, errors, warnings
		FROM export_instances
		WHERE export_type = $1 AND status IN ('success', 'done_with_errors')
		ORDER BY timestamp DESC
		LIMIT 1
	`
	instance, err := scanPostgresInstance(r.db.QueryRow(query, exportType))
	if err == sql.ErrNoRows {
		return domain.ExportInstance{}, domain.ErrInstanceNotFound
	}
	return instance, err
}

func (r *PostgresExportRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM export_instances WHERE id = $1`, id)
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

func (r *PostgresExportRepository) Close() error {
	return r.db.Close()
}

func scanPostgresInstance(row rowScanner) (domain.ExportInstance, error) {
	var instance domain.ExportInstance
	var optionsJSON []byte
	var statusStr string

	err := row.Scan(&instance.ID, &instance.ExportType, &instance.Filter, &optionsJSON,
		&instance.Username, &instance.Timestamp, &statusStr, &instance.Errors, &instance.Warnings)
	if err != nil {
		return domain.ExportInstance{}, err
	}

	if len(optionsJSON) > 0 {
		if err := json.Unmarshal(optionsJSON, &instance.Options); err != nil {
			return domain.ExportInstance{}, err
		}
	}
	instance.Status = domain.ParseStatus(statusStr)
	return instance, nil
}
