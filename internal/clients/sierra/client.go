package sierra

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"sierra-export/internal/config"
)

// Record is one row from sierra_view.record_metadata, joined with the
// attached item data when the record is an item.
type Record struct {
	ID           int64
	RecordType   string
	RecordNum    int64
	LastUpdated  time.Time
	DeletionDate *time.Time
	LocationCode string
}

// RecordNumber renders the record in III notation, e.g. b1234567.
func (r Record) RecordNumber() string {
	return fmt.Sprintf("%s%d", r.RecordType, r.RecordNum)
}

// CodeName is a code/label pair from one of the Sierra property tables.
type CodeName struct {
	Code string
	Name string
}

// Client reads record metadata from the Sierra reporting database. All
// access goes through the sierra_view schema, which Sierra exposes
// read-only.
type Client struct {
	db *sql.DB
}

func NewClient(config config.SierraDBConfig) (*Client, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open sierra connection: %w", err)
	}

	// The reporting replica tolerates very few concurrent sessions.
	db.SetMaxOpenConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	log.Printf("[SIERRA] connected to %s:%d/%s", config.Host, config.Port, config.Name)
	return &Client{db: db}, nil
}

// NewClientWithDB wraps an existing handle; used by tests.
func NewClientWithDB(db *sql.DB) *Client {
	return &Client{db: db}
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// CountRecords returns how many records of the given type match the
// filter. The count drives chunk planning, so it runs before any rows
// are fetched.
func (c *Client) CountRecords(ctx context.Context, recordType string, filter Filter) (int, error) {
	where, args, err := filter.BuildWhere(2)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM sierra_view.record_metadata rm
		 WHERE rm.record_type_code = $1 AND %s`, where)

	var count int
	row := c.db.QueryRowContext(ctx, query, append([]interface{}{recordType}, args...)...)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sierra records: %w", err)
	}
	return count, nil
}

// FetchRecords returns one window of matching records ordered by id, so
// concurrent chunks never overlap.
func (c *Client) FetchRecords(ctx context.Context, recordType string, filter Filter, offset, limit int) ([]Record, error) {
	where, args, err := filter.BuildWhere(2)
	if err != nil {
		return nil, err
	}

	args = append([]interface{}{recordType}, args...)
	query := fmt.Sprintf(
		`SELECT rm.id, rm.record_type_code, rm.record_num,
		        rm.record_last_updated_gmt, rm.deletion_date_gmt,
		        COALESCE(ir.location_code, '')
		 FROM sierra_view.record_metadata rm
		 LEFT JOIN sierra_view.item_record ir ON ir.record_id = rm.id
		 WHERE rm.record_type_code = $1 AND %s
		 ORDER BY rm.id
		 LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sierra records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// FetchAttachedBibs returns the bib records linked to the given item
// record ids. Compound exports use this to reindex the parents of
// touched items.
func (c *Client) FetchAttachedBibs(ctx context.Context, itemIDs []int64) ([]Record, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}

	placeholders := ""
	args := make([]interface{}, 0, len(itemIDs))
	for i, id := range itemIDs {
		if i > 0 {
			placeholders += ","
		}
		placeholders += fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`SELECT DISTINCT rm.id, rm.record_type_code, rm.record_num,
		        rm.record_last_updated_gmt, rm.deletion_date_gmt, ''
		 FROM sierra_view.record_metadata rm
		 JOIN sierra_view.bib_record_item_record_link link ON link.bib_record_id = rm.id
		 WHERE link.item_record_id IN (%s) AND rm.deletion_date_gmt IS NULL
		 ORDER BY rm.id`, placeholders)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attached bibs: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// FetchAttachedItems returns the item records linked to the given bib
// record ids, with their location codes. The inverse compound export
// uses this to reindex the children of touched bibs.
func (c *Client) FetchAttachedItems(ctx context.Context, bibIDs []int64) ([]Record, error) {
	if len(bibIDs) == 0 {
		return nil, nil
	}

	placeholders := ""
	args := make([]interface{}, 0, len(bibIDs))
	for i, id := range bibIDs {
		if i > 0 {
			placeholders += ","
		}
		placeholders += fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`SELECT DISTINCT rm.id, rm.record_type_code, rm.record_num,
		        rm.record_last_updated_gmt, rm.deletion_date_gmt,
		        COALESCE(ir.location_code, '')
		 FROM sierra_view.record_metadata rm
		 JOIN sierra_view.bib_record_item_record_link link ON link.item_record_id = rm.id
		 LEFT JOIN sierra_view.item_record ir ON ir.record_id = rm.id
		 WHERE link.bib_record_id IN (%s) AND rm.deletion_date_gmt IS NULL
		 ORDER BY rm.id`, placeholders)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attached items: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// FetchLocations returns every location code with its public name.
func (c *Client) FetchLocations(ctx context.Context) ([]CodeName, error) {
	return c.fetchCodeNames(ctx,
		`SELECT l.code, COALESCE(ln.name, '')
		 FROM sierra_view.location l
		 LEFT JOIN sierra_view.location_name ln ON ln.location_id = l.id
		 ORDER BY l.code`)
}

// FetchItypes returns every item type code with its name.
func (c *Client) FetchItypes(ctx context.Context) ([]CodeName, error) {
	return c.fetchCodeNames(ctx,
		`SELECT ip.code_num::text, COALESCE(ipn.name, '')
		 FROM sierra_view.itype_property ip
		 LEFT JOIN sierra_view.itype_property_name ipn ON ipn.itype_property_id = ip.id
		 ORDER BY ip.code_num`)
}

// FetchItemStatuses returns every item status code with its name.
func (c *Client) FetchItemStatuses(ctx context.Context) ([]CodeName, error) {
	return c.fetchCodeNames(ctx,
		`SELECT isp.code, COALESCE(ispn.name, '')
		 FROM sierra_view.item_status_property isp
		 LEFT JOIN sierra_view.item_status_property_name ispn
		      ON ispn.item_status_property_id = isp.id
		 ORDER BY isp.code`)
}

func (c *Client) fetchCodeNames(ctx context.Context, query string) ([]CodeName, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sierra metadata: %w", err)
	}
	defer rows.Close()

	var result []CodeName
	for rows.Next() {
		var cn CodeName
		if err := rows.Scan(&cn.Code, &cn.Name); err != nil {
			return nil, fmt.Errorf("failed to scan sierra metadata row: %w", err)
		}
		result = append(result, cn)
	}
	return result, rows.Err()
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var record Record
		var deleted sql.NullTime
		err := rows.Scan(&record.ID, &record.RecordType, &record.RecordNum,
			&record.LastUpdated, &deleted, &record.LocationCode)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sierra record: %w", err)
		}
		if deleted.Valid {
			t := deleted.Time
			record.DeletionDate = &t
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
