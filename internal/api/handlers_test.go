package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fredhutch/phiscan/internal/config"
	"github.com/fredhutch/phiscan/internal/engine"
	"github.com/fredhutch/phiscan/internal/modeladapter"
	"github.com/fredhutch/phiscan/internal/models"
	"github.com/fredhutch/phiscan/internal/patterns"
	"github.com/fredhutch/phiscan/internal/risk"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	lib, err := patterns.NewLibrary()
	if err != nil {
		t.Fatal(err)
	}
	adapter := modeladapter.New(nil, nil, modeladapter.Config{}, nil)
	eng := engine.New(lib.Snapshot(), adapter, risk.NewScorer(risk.Config{}), engine.Config{Workers: 2}, nil)
	return New(config.Default(), eng)
}

func TestHandleHealth(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleClassifyJSON(t *testing.T) {
	s := testServer(t)

	body := `{"filename":"note.txt","text":"Patient SSN 123-45-6789","include_occurrences":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var res models.ClassificationResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !res.ContainsPHI || res.TotalIdentifiers != 1 {
		t.Errorf("result = %+v", res)
	}
	if res.RiskLevel != models.RiskLow {
		t.Errorf("risk = %s", res.RiskLevel)
	}
	if !res.RuleOnly {
		t.Error("expected rule_only without model collaborators")
	}
	if len(res.Occurrences) != 1 {
		t.Errorf("occurrences = %d", len(res.Occurrences))
	}
}

func TestHandleClassifyBadBody(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestBatchRoutesAbsentWithoutQueue(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", strings.NewReader(`{"bucket":"b"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want route absent", rec.Code)
	}
}
