package detection

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"incident-monitor/models"
)

func evidence() models.Evidence {
	return models.Evidence{
		Filename:    "clip.mp4",
		ContentType: "video/mp4",
		Data:        []byte("fake video bytes"),
	}
}

func TestDetectSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/model/api/v1/detect" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("not a multipart request: %v", err)
		}
		if got := r.FormValue("camera_id"); got != "3" {
			t.Errorf("camera_id = %q, want 3", got)
		}
		file, header, err := r.FormFile("video")
		if err != nil {
			t.Fatalf("video part missing: %v", err)
		}
		defer file.Close()
		if header.Filename != "clip.mp4" {
			t.Errorf("filename = %q", header.Filename)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "fake video bytes" {
			t.Error("evidence bytes were altered in transit")
		}

		json.NewEncoder(w).Encode(models.DetectionResult{
			Prediction:          "event-detected",
			AlertType:           "theft",
			Confidence:          0.95,
			ClipDurationSeconds: 7.5,
			AlertStatus:         "sent",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	res, err := c.Detect(context.Background(), 3, evidence())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if res.Prediction != "event-detected" || res.AlertType != "theft" {
		t.Errorf("verdict = %+v", res)
	}
	if res.Confidence != 0.95 || res.ClipDurationSeconds != 7.5 {
		t.Errorf("numeric fields = %+v", res)
	}
}

func TestDetectUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail": "video too short"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Detect(context.Background(), 1, evidence())

	var derr *Error
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want detection.Error", err)
	}
	if derr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", derr.StatusCode)
	}
	if derr.Message != "video too short" {
		t.Errorf("Message = %q, upstream detail not preserved", derr.Message)
	}
}

func TestDetectRawBodyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("model crashed"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Detect(context.Background(), 1, evidence())

	var derr *Error
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want detection.Error", err)
	}
	if derr.Message != "model crashed" {
		t.Errorf("Message = %q, want raw body", derr.Message)
	}
}

func TestDetectTransportError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second)
	_, err := c.Detect(context.Background(), 1, evidence())

	var derr *Error
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want detection.Error for transport failure", err)
	}
}
