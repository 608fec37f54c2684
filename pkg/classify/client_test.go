package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func TestClassifyDisabledReturnsZeroResult(t *testing.T) {
	c := NewClient("", time.Second)
	if c.Enabled() {
		t.Fatal("expected client with empty URL to be disabled")
	}

	result, err := c.Classify(context.Background(), Request{MAC: "AA:BB:CC:DD:EE:FF"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !reflect.DeepEqual(result, Result{}) {
		t.Errorf("result = %+v, want zero value", result)
	}
}

func TestClassifyPostsRequestAndDecodesResponse(t *testing.T) {
	var gotReq Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Result{Label: "rodent", Confidence: 0.92})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	result, err := c.Classify(context.Background(), Request{
		TenantID: "tenant-1",
		DeviceID: "device-1",
		MAC:      "AA:BB:CC:DD:EE:FF",
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.Label != "rodent" || result.Confidence != 0.92 {
		t.Errorf("result = %+v, want {rodent 0.92}", result)
	}
	if gotReq.MAC != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("request MAC = %q, want AA:BB:CC:DD:EE:FF", gotReq.MAC)
	}
}

func TestClassifyNonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	if _, err := c.Classify(context.Background(), Request{}); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
