package oracle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"coolguard/internal/models"
)

func testRequest() Request {
	return Request{
		Reading: models.Reading{
			ID:           42,
			Timestamp:    time.Now().UTC(),
			TDSPPM:       1600,
			TemperatureC: 24,
			Safe:         false,
			Reason:       "tds_exceeded",
		},
		Issues: []string{"TDS 1600 ppm exceeds 500 ppm (scale formation risk)"},
	}
}

func TestClient_Diagnose_JSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"impact": "Scale buildup reduces heat transfer",
			"root_cause": "Evaporative concentration",
			"actions": ["Flush loop", "Inspect treatment system"]
		}`))
	}))
	defer srv.Close()

	client := NewClient(DefaultConfig(srv.URL))

	result, err := client.Diagnose(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Impact != "Scale buildup reduces heat transfer" {
		t.Errorf("impact mismatch: %q", result.Impact)
	}
	if result.RootCause != "Evaporative concentration" {
		t.Errorf("root cause mismatch: %q", result.RootCause)
	}
	if len(result.Actions) != 2 {
		t.Errorf("expected 2 actions, got %v", result.Actions)
	}
	if result.ResponseMS < 0 {
		t.Errorf("invalid response_ms: %d", result.ResponseMS)
	}
}

func TestClient_Diagnose_PlainTextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`IMPACT:
High TDS risks unplanned downtime in the cooling loop.

ROOT CAUSE:
Insufficient blowdown allowed dissolved solids to concentrate.

ACTIONS:
1. Initiate a partial drain and refill of the loop
2. Verify blowdown valve operation
3. Retest TDS within one hour`))
	}))
	defer srv.Close()

	client := NewClient(DefaultConfig(srv.URL))

	result, err := client.Diagnose(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Impact != "High TDS risks unplanned downtime in the cooling loop." {
		t.Errorf("impact mismatch: %q", result.Impact)
	}
	if result.RootCause != "Insufficient blowdown allowed dissolved solids to concentrate." {
		t.Errorf("root cause mismatch: %q", result.RootCause)
	}
	want := []string{
		"Initiate a partial drain and refill of the loop",
		"Verify blowdown valve operation",
		"Retest TDS within one hour",
	}
	if !reflect.DeepEqual(result.Actions, want) {
		t.Errorf("actions mismatch: %v", result.Actions)
	}
}

func TestClient_Diagnose_EmptyActionsGetDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"impact": "Some impact", "root_cause": "Some cause", "actions": []}`))
	}))
	defer srv.Close()

	client := NewClient(DefaultConfig(srv.URL))

	result, err := client.Diagnose(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(result.Actions, DefaultActions) {
		t.Errorf("expected default actions, got %v", result.Actions)
	}
}

func TestClient_Diagnose_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"impact": "too late"}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	client := NewClient(cfg)

	_, err := client.Diagnose(context.Background(), testRequest())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClient_Diagnose_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(DefaultConfig(srv.URL))

	_, err := client.Diagnose(context.Background(), testRequest())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestParsePlainText_InlineSections(t *testing.T) {
	impact, rootCause, actions := parsePlainText(
		"IMPACT: Reduced cooling capacity.\nROOT CAUSE: Scale deposits.\nACTIONS:\n- Clean heat exchanger\n- Check inhibitor dosing")

	if impact != "Reduced cooling capacity." {
		t.Errorf("impact mismatch: %q", impact)
	}
	if rootCause != "Scale deposits." {
		t.Errorf("root cause mismatch: %q", rootCause)
	}
	if len(actions) != 2 {
		t.Errorf("expected 2 actions, got %v", actions)
	}
}

func TestParsePlainText_Unstructured(t *testing.T) {
	impact, rootCause, actions := parsePlainText("something entirely unrelated")
	if impact != "" || rootCause != "" || len(actions) != 0 {
		t.Errorf("expected nothing parsed, got %q %q %v", impact, rootCause, actions)
	}
}
