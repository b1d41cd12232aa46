package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"

	"incident-monitor/models"
)

var (
	db   *sql.DB
	mock sqlmock.Sqlmock
)

func setUp() {
	db, mock, _ = sqlmock.New()
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

func TestInsertAlert(t *testing.T) {
	it(func() {
		d := New(db)

		mock.ExpectExec("INSERT INTO alerts").
			WithArgs(1, "theft", "pending", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(42, 1))

		id, err := d.InsertAlert(context.Background(), models.AlertCreateRequest{
			EventType: models.AlertTypeTheft,
			CameraID:  1,
			Status:    models.ReportStatusPending,
			SentAt:    time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("InsertAlert failed: %v", err)
		}
		if id != 42 {
			t.Errorf("alert id = %d, want 42", id)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestInsertAlertError(t *testing.T) {
	it(func() {
		d := New(db)

		mock.ExpectExec("INSERT INTO alerts").
			WillReturnError(sql.ErrConnDone)

		if _, err := d.InsertAlert(context.Background(), models.AlertCreateRequest{
			EventType: models.AlertTypeViolence,
			CameraID:  2,
			Status:    models.ReportStatusPending,
		}); err == nil {
			t.Fatal("InsertAlert succeeded on a dead connection")
		}
	})
}

func TestGetAlert(t *testing.T) {
	it(func() {
		d := New(db)

		now := time.Now().UTC()
		rows := sqlmock.NewRows([]string{"alert_id", "camera_id", "event_type", "status", "sent_at", "timestamp"}).
			AddRow(42, 1, "theft", "pending", now, now)

		mock.ExpectQuery("SELECT alert_id, camera_id, event_type, status, sent_at, timestamp FROM alerts").
			WithArgs(int64(42)).
			WillReturnRows(rows)

		rec, err := d.GetAlert(context.Background(), 42)
		if err != nil {
			t.Fatalf("GetAlert failed: %v", err)
		}
		if rec == nil || rec.AlertID != 42 || rec.EventType != models.AlertTypeTheft {
			t.Errorf("record = %+v", rec)
		}
	})
}

func TestGetAlertMissing(t *testing.T) {
	it(func() {
		d := New(db)

		mock.ExpectQuery("SELECT alert_id, camera_id, event_type, status, sent_at, timestamp FROM alerts").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"alert_id", "camera_id", "event_type", "status", "sent_at", "timestamp"}))

		rec, err := d.GetAlert(context.Background(), 7)
		if err != nil {
			t.Fatalf("GetAlert failed: %v", err)
		}
		if rec != nil {
			t.Errorf("record = %+v, want nil for missing alert", rec)
		}
	})
}

func TestSaveMedia(t *testing.T) {
	it(func() {
		d := New(db)

		mock.ExpectExec("INSERT INTO event_media").
			WithArgs(int64(42), "uploads/abc.mp4", "video/mp4", []byte("blob")).
			WillReturnResult(sqlmock.NewResult(1, 1))

		if err := d.SaveMedia(context.Background(), 42, "uploads/abc.mp4", "video/mp4", []byte("blob")); err != nil {
			t.Fatalf("SaveMedia failed: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestGetMediaURL(t *testing.T) {
	it(func() {
		d := New(db)

		mock.ExpectQuery("SELECT media_url FROM event_media").
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"media_url"}).AddRow("uploads/abc.mp4"))

		url, err := d.GetMediaURL(context.Background(), 42)
		if err != nil {
			t.Fatalf("GetMediaURL failed: %v", err)
		}
		if url != "uploads/abc.mp4" {
			t.Errorf("url = %q", url)
		}
	})
}

func TestGetMediaURLMissing(t *testing.T) {
	it(func() {
		d := New(db)

		mock.ExpectQuery("SELECT media_url FROM event_media").
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"media_url"}))

		url, err := d.GetMediaURL(context.Background(), 42)
		if err != nil {
			t.Fatalf("GetMediaURL failed: %v", err)
		}
		if url != "" {
			t.Errorf("url = %q, want empty for missing media", url)
		}
	})
}
