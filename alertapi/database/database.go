package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"

	"incident-monitor/config"
	"incident-monitor/models"
)

// Database handles all alert service storage.
type Database struct {
	db *sql.DB
}

// Connect opens the mysql connection described by cfg.
func Connect(cfg *config.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&multiStatements=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Infof("database connected to %s:%s/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)

	return &Database{db: db}, nil
}

// New wraps an existing connection; used by tests.
func New(db *sql.DB) *Database {
	return &Database{db: db}
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// EnsureTables creates the alert service tables when they do not exist yet.
func (d *Database) EnsureTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			alert_id BIGINT AUTO_INCREMENT PRIMARY KEY,
			camera_id INT NOT NULL,
			event_type VARCHAR(32) NOT NULL,
			status VARCHAR(32) NOT NULL,
			sent_at DATETIME NULL,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_alerts_camera (camera_id),
			INDEX idx_alerts_ts (timestamp)
		)`,
		`CREATE TABLE IF NOT EXISTS event_media (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			alert_id BIGINT NOT NULL,
			media_url VARCHAR(512) NOT NULL,
			media_type VARCHAR(128) NOT NULL,
			content LONGBLOB,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_media_alert (alert_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure tables: %w", err)
		}
	}
	return nil
}

// InsertAlert persists one user-initiated alert and returns its id.
func (d *Database) InsertAlert(ctx context.Context, req models.AlertCreateRequest) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO alerts (camera_id, event_type, status, sent_at, timestamp) VALUES (?, ?, ?, ?, ?)`,
		req.CameraID, string(req.EventType), string(req.Status), req.SentAt, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted alert id: %w", err)
	}
	return id, nil
}

// GetAlert fetches one stored alert.
func (d *Database) GetAlert(ctx context.Context, alertID int64) (*models.AlertRecord, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT alert_id, camera_id, event_type, status, sent_at, timestamp FROM alerts WHERE alert_id = ?`,
		alertID)

	var rec models.AlertRecord
	var sentAt sql.NullTime
	if err := row.Scan(&rec.AlertID, &rec.CameraID, &rec.EventType, &rec.Status, &sentAt, &rec.Timestamp); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query alert %d: %w", alertID, err)
	}
	if sentAt.Valid {
		rec.SentAt = sentAt.Time
	}
	return &rec, nil
}

// GetLastAlerts returns the most recent alerts, newest first.
func (d *Database) GetLastAlerts(ctx context.Context, limit int) ([]models.AlertRecord, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT alert_id, camera_id, event_type, status, sent_at, timestamp FROM alerts ORDER BY alert_id DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var records []models.AlertRecord
	for rows.Next() {
		var rec models.AlertRecord
		var sentAt sql.NullTime
		if err := rows.Scan(&rec.AlertID, &rec.CameraID, &rec.EventType, &rec.Status, &sentAt, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		if sentAt.Valid {
			rec.SentAt = sentAt.Time
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveMedia stores one evidence object bound to an alert.
func (d *Database) SaveMedia(ctx context.Context, alertID int64, key, mediaType string, content []byte) error {
	if _, err := d.db.ExecContext(ctx,
		`INSERT INTO event_media (alert_id, media_url, media_type, content) VALUES (?, ?, ?, ?)`,
		alertID, key, mediaType, content); err != nil {
		return fmt.Errorf("failed to save media for alert %d: %w", alertID, err)
	}
	return nil
}

// GetMediaURL returns the storage key of the latest evidence attached to an
// alert, or "" when none exists.
func (d *Database) GetMediaURL(ctx context.Context, alertID int64) (string, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT media_url FROM event_media WHERE alert_id = ? ORDER BY id DESC LIMIT 1`,
		alertID)

	var url string
	if err := row.Scan(&url); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to query media for alert %d: %w", alertID, err)
	}
	return url, nil
}
