package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type recordedRequests struct {
	statuses []int
}

func (r *recordedRequests) Record(status int, _ time.Duration) {
	r.statuses = append(r.statuses, status)
}

func TestLoggerRecordsStatus(t *testing.T) {
	collector := &recordedRequests{}
	handler := Logger(collector)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/leave/requests", nil))
	if len(collector.statuses) != 1 || collector.statuses[0] != http.StatusConflict {
		t.Fatalf("expected first status to be recorded, got %v", collector.statuses)
	}
}

func TestRecovererReturns500(t *testing.T) {
	handler := Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
