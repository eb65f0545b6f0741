package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/passivescan/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "passivescan.db"

// timestampLayout stores times with fixed-width fractions so that text
// ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// AuditDB provides SQLite-based storage for audit reports.
type AuditDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures AuditDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates an AuditDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*AuditDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run 'passivescan audit' first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a new file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	adb := &AuditDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := adb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return adb, nil
}

// Path returns the database file path.
func (adb *AuditDB) Path() string {
	return adb.dbPath
}

// Close closes the database connection.
func (adb *AuditDB) Close() error {
	return adb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (adb *AuditDB) createTables() error {
	schema := `
	-- Audit runs store complete reports as JSON
	CREATE TABLE IF NOT EXISTS audit_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		page_url TEXT NOT NULL,
		source TEXT,
		timestamp TEXT NOT NULL,
		report_json TEXT NOT NULL,
		summary TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_page ON audit_runs(page_url);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON audit_runs(timestamp);
	`

	_, err := adb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveReport stores a report and returns its database ID.
func (adb *AuditDB) SaveReport(ctx context.Context, report *model.Report) (int64, error) {
	if report == nil {
		return 0, errors.New("cannot save nil report")
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	summary := report.Summary
	if summary == nil {
		summary = model.NewSummary(report)
	}
	summaryJSON, _ := json.Marshal(summary) //nolint:errcheck,errchkjson // Summary only holds ints

	query := `
	INSERT INTO audit_runs (run_id, page_url, source, timestamp, report_json, summary)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := adb.db.ExecContext(ctx, query,
		report.RunID,
		report.PageURL,
		report.Source,
		report.DateAudited.UTC().Format(timestampLayout),
		string(reportJSON),
		string(summaryJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save report: %w", err)
	}

	return result.LastInsertId()
}

// LatestReport retrieves the most recent report for a page.
// It returns nil without error when the page has no reports.
func (adb *AuditDB) LatestReport(ctx context.Context, pageURL string) (*model.Report, error) {
	query := `
	SELECT report_json FROM audit_runs
	WHERE page_url = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`

	var reportJSON string
	err := adb.db.QueryRowContext(ctx, query, pageURL).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return decodeReport(reportJSON)
}

// ReportHistory retrieves all reports for a page, newest first.
// Rows whose JSON can no longer be decoded are skipped.
func (adb *AuditDB) ReportHistory(ctx context.Context, pageURL string) ([]*model.Report, error) {
	query := `
	SELECT report_json FROM audit_runs
	WHERE page_url = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := adb.db.QueryContext(ctx, query, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get report history: %w", err)
	}
	defer rows.Close()

	var reports []*model.Report
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		report, err := decodeReport(reportJSON)
		if err != nil {
			continue
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// RunMetadata contains summary information about a stored run.
// It is used for listing history without loading full reports.
type RunMetadata struct {
	// ID is the database ID of the run.
	ID int64

	// RunID is the run's UUID.
	RunID string

	// PageURL is the audited page.
	PageURL string

	// Source is the snapshot file the run was read from.
	Source string

	// Timestamp is when the run was audited.
	Timestamp time.Time

	// Summary holds the outcome counts of the run.
	Summary model.Summary
}

// HistoryWithMetadata retrieves run metadata for a page, newest first.
func (adb *AuditDB) HistoryWithMetadata(ctx context.Context, pageURL string) ([]RunMetadata, error) {
	query := `
	SELECT id, run_id, page_url, source, timestamp, summary
	FROM audit_runs
	WHERE page_url = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := adb.db.QueryContext(ctx, query, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get report history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var timestamp string
		var source, summaryJSON sql.NullString

		if err := rows.Scan(&meta.ID, &meta.RunID, &meta.PageURL, &source, &timestamp, &summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Source = source.String
		meta.Timestamp = parseTimestamp(timestamp)
		if summaryJSON.Valid && summaryJSON.String != "" {
			if err := json.Unmarshal([]byte(summaryJSON.String), &meta.Summary); err != nil {
				return nil, fmt.Errorf("failed to decode summary of run %d: %w", meta.ID, err)
			}
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetReportByID retrieves a report by its database ID.
// It returns nil without error when no such run exists.
func (adb *AuditDB) GetReportByID(ctx context.Context, id int64) (*model.Report, error) {
	return adb.getReport(ctx, "SELECT report_json FROM audit_runs WHERE id = ?", id)
}

// GetReportByRunID retrieves a report by its run UUID.
// It returns nil without error when no such run exists.
func (adb *AuditDB) GetReportByRunID(ctx context.Context, runID string) (*model.Report, error) {
	return adb.getReport(ctx, "SELECT report_json FROM audit_runs WHERE run_id = ?", runID)
}

// getReport runs a single-row report query.
func (adb *AuditDB) getReport(ctx context.Context, query string, arg any) (*model.Report, error) {
	var reportJSON string
	err := adb.db.QueryRowContext(ctx, query, arg).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return decodeReport(reportJSON)
}

// ListAuditedPages returns all page URLs that have stored runs.
func (adb *AuditDB) ListAuditedPages(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT page_url FROM audit_runs
	ORDER BY page_url
	`

	rows, err := adb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var pages []string
	for rows.Next() {
		var page string
		if err := rows.Scan(&page); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, page)
	}

	return pages, rows.Err()
}

// decodeReport parses a stored report.
func decodeReport(reportJSON string) (*model.Report, error) {
	var report model.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999",
	"2006-01-02 15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
