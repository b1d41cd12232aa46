package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jknair0/beforeeach"

	"incident-monitor/alertapi/database"
	ws "incident-monitor/alertapi/websocket"
	"incident-monitor/models"
)

var (
	db   *sql.DB
	mock sqlmock.Sqlmock
)

func setUp() {
	gin.SetMode(gin.TestMode)
	db, mock, _ = sqlmock.New()
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

func newRouter() (*gin.Engine, *ws.Hub) {
	hub := ws.NewHub()
	h := New(database.New(db), hub, nil)

	r := gin.New()
	r.POST("/alerts/", h.CreateAlert)
	r.GET("/alerts/", h.ListAlerts)
	r.POST("/aws/upload/file", h.UploadFile)
	r.GET("/aws/upload/file", h.GetFileURL)
	r.GET("/health", h.Health)
	return r, hub
}

type detailResponse struct {
	Detail []models.FieldError `json:"detail"`
}

func TestCreateAlertMissingFields(t *testing.T) {
	it(func() {
		r, _ := newRouter()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/alerts/", strings.NewReader(`{}`))
		r.ServeHTTP(w, req)

		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", w.Code)
		}

		var resp detailResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad error body: %v", err)
		}

		wantFields := []string{"event_type", "camera_id", "status", "sent_at"}
		if len(resp.Detail) != len(wantFields) {
			t.Fatalf("got %d field errors, want %d", len(resp.Detail), len(wantFields))
		}
		for i, want := range wantFields {
			if got := resp.Detail[i].Loc[1]; got != want {
				t.Errorf("detail[%d].loc = %q, want %q", i, got, want)
			}
			if resp.Detail[i].Message != "field required" {
				t.Errorf("detail[%d].msg = %q", i, resp.Detail[i].Message)
			}
		}
	})
}

func TestCreateAlertInvalidEnum(t *testing.T) {
	it(func() {
		r, _ := newRouter()

		body := `{"event_type":"arson","camera_id":1,"status":"pending","sent_at":"2026-08-30T10:00:00Z"}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/alerts/", strings.NewReader(body))
		r.ServeHTTP(w, req)

		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", w.Code)
		}

		var resp detailResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad error body: %v", err)
		}
		if len(resp.Detail) != 1 {
			t.Fatalf("got %d field errors, want 1", len(resp.Detail))
		}
		if resp.Detail[0].Loc[1] != "event_type" {
			t.Errorf("loc = %v, want event_type", resp.Detail[0].Loc)
		}
	})
}

func TestCreateAlertSuccess(t *testing.T) {
	it(func() {
		r, hub := newRouter()

		mock.ExpectExec("INSERT INTO alerts").
			WithArgs(3, "theft", "urgent", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(7, 1))

		body := `{"event_type":"theft","camera_id":3,"status":"urgent","sent_at":"2026-08-30T10:00:00Z"}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/alerts/", strings.NewReader(body))
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}

		var rec models.AlertRecord
		if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
			t.Fatalf("bad response body: %v", err)
		}
		if rec.AlertID != 7 {
			t.Errorf("alert_id = %d, want 7", rec.AlertID)
		}
		if rec.EventType != models.AlertTypeTheft {
			t.Errorf("event_type = %q", rec.EventType)
		}

		if _, lastID := hub.GetStats(); lastID != 7 {
			t.Errorf("hub last alert id = %d, want 7", lastID)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestListAlerts(t *testing.T) {
	it(func() {
		r, _ := newRouter()

		now := time.Now().UTC()
		rows := sqlmock.NewRows([]string{"alert_id", "camera_id", "event_type", "status", "sent_at", "timestamp"}).
			AddRow(9, 2, "violence", "pending", now, now).
			AddRow(8, 1, "theft", "pending", now, now)
		mock.ExpectQuery("SELECT (.+) FROM alerts ORDER BY alert_id DESC").
			WithArgs(50).
			WillReturnRows(rows)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/alerts/", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var recs []models.AlertRecord
		if err := json.Unmarshal(w.Body.Bytes(), &recs); err != nil {
			t.Fatalf("bad response body: %v", err)
		}
		if len(recs) != 2 || recs[0].AlertID != 9 {
			t.Errorf("unexpected records: %+v", recs)
		}
	})
}

func uploadRequest(t *testing.T, alertID, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("alert_id", alertID); err != nil {
		t.Fatal(err)
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/aws/upload/file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadFile(t *testing.T) {
	it(func() {
		r, _ := newRouter()

		now := time.Now().UTC()
		mock.ExpectQuery("SELECT (.+) FROM alerts WHERE alert_id").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"alert_id", "camera_id", "event_type", "status", "sent_at", "timestamp"}).
				AddRow(7, 3, "theft", "urgent", now, now))
		mock.ExpectExec("INSERT INTO event_media").
			WithArgs(int64(7), sqlmock.AnyArg(), sqlmock.AnyArg(), []byte("clip-bytes")).
			WillReturnResult(sqlmock.NewResult(1, 1))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, uploadRequest(t, "7", "clip.mp4", []byte("clip-bytes")))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}

		var resp struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad response body: %v", err)
		}
		if !strings.HasPrefix(resp.URL, "uploads/") || !strings.HasSuffix(resp.URL, ".mp4") {
			t.Errorf("url = %q, want uploads/<uuid>.mp4", resp.URL)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestUploadFileUnknownAlert(t *testing.T) {
	it(func() {
		r, _ := newRouter()

		mock.ExpectQuery("SELECT (.+) FROM alerts WHERE alert_id").
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"alert_id", "camera_id", "event_type", "status", "sent_at", "timestamp"}))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, uploadRequest(t, "99", "clip.mp4", []byte("x")))

		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
	})
}

func TestGetFileURL(t *testing.T) {
	it(func() {
		r, _ := newRouter()

		mock.ExpectQuery("SELECT media_url FROM event_media").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"media_url"}).AddRow("uploads/abc.mp4"))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/aws/upload/file?alert_id=7", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "uploads/abc.mp4") {
			t.Errorf("body = %s", w.Body.String())
		}
	})
}

func TestGetFileURLMissing(t *testing.T) {
	it(func() {
		r, _ := newRouter()

		mock.ExpectQuery("SELECT media_url FROM event_media").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"media_url"}))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/aws/upload/file?alert_id=7", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
	})
}

func TestHealth(t *testing.T) {
	it(func() {
		r, _ := newRouter()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "healthy") {
			t.Errorf("body = %s", w.Body.String())
		}
	})
}
