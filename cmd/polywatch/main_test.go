package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NibirNd/Poly/internal/alert"
	"github.com/NibirNd/Poly/internal/config"
	"github.com/NibirNd/Poly/internal/demo"
	"github.com/NibirNd/Poly/internal/scan"
	"github.com/NibirNd/Poly/internal/storage"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testScanner(log *logrus.Logger) *scan.Scanner {
	cfg := &config.Config{
		Mode:               config.ModeDemo,
		MinTradeUSD:        100,
		MinBaseScore:       30,
		ReferenceMeanUSD:   500,
		ReferenceSpreadUSD: 1500,
		RecencyWindow:      time.Hour,
		EvalConcurrency:    2,
		AlertCapacity:      10,
		PollInterval:       time.Second,
		NotifyMinLevel:     "HIGH",
		AlertMode:          "log",
	}
	src := demo.NewSource()
	return scan.NewScanner(cfg, src, src, demo.NewOracle(), demo.NewAnalyzer(), alert.NewLogSender(log), nil, log)
}

type stubArchive struct {
	records []storage.ActivityRecord
	err     error
	limit   int
}

func (s *stubArchive) RecentActivities(ctx context.Context, limit int) ([]storage.ActivityRecord, error) {
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func TestResumeFields(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	fields, ok := resumeFields(now.Add(-90*time.Second).Format(time.RFC3339), now)
	if !ok {
		t.Fatal("resumeFields rejected a valid checkpoint")
	}
	if fields["since_last_cycle"] != "1m30s" {
		t.Errorf("since_last_cycle = %v, want 1m30s", fields["since_last_cycle"])
	}

	if _, ok := resumeFields("", now); ok {
		t.Error("empty checkpoint accepted")
	}
	if _, ok := resumeFields("not-a-timestamp", now); ok {
		t.Error("malformed checkpoint accepted")
	}
}

func TestOpsMuxArchivedAlerts(t *testing.T) {
	archive := &stubArchive{records: []storage.ActivityRecord{
		{TradeID: "t1", MarketID: "m1", Score: 92, Level: "CRITICAL"},
		{TradeID: "t2", MarketID: "m2", Score: 70, Level: "HIGH"},
	}}
	log := testLogger()
	mux := newOpsMux(testScanner(log), archive, log)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts?archived&limit=5", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if archive.limit != 5 {
		t.Errorf("archive limit = %d, want 5", archive.limit)
	}
	var got []storage.ActivityRecord
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 2 || got[0].TradeID != "t1" {
		t.Errorf("archived records = %+v, want the two stub records", got)
	}
}

func TestOpsMuxArchivedAlertsWithoutArchive(t *testing.T) {
	log := testLogger()
	mux := newOpsMux(testScanner(log), nil, log)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts?archived", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when no archive is configured", rec.Code)
	}
}

func TestOpsMuxArchivedAlertsQueryFailure(t *testing.T) {
	log := testLogger()
	mux := newOpsMux(testScanner(log), &stubArchive{err: errors.New("connection lost")}, log)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts?archived", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 on archive failure", rec.Code)
	}
}

func TestOpsMuxLiveAlerts(t *testing.T) {
	log := testLogger()
	mux := newOpsMux(testScanner(log), nil, log)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/alerts", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want 204", rec.Code)
	}
}

func TestOpsMuxStatus(t *testing.T) {
	log := testLogger()
	mux := newOpsMux(testScanner(log), nil, log)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var status scan.Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.State != "idle" {
		t.Errorf("state = %s, want idle before any session", status.State)
	}
}
