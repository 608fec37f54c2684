package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// testPayload mirrors the shape of the registry/audit request bodies this
// package actually validates: a device MAC, an alert severity, and an
// optional emergency-contact email.
type testPayload struct {
	MAC      string `json:"mac" validate:"required,mac"`
	Severity string `json:"severity" validate:"required,oneof=low medium high critical"`
	Email    string `json:"email" validate:"omitempty,email"`
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid JSON",
			body:    `{"mac":"AA:BB:CC:DD:EE:FF","severity":"high"}`,
			wantErr: false,
		},
		{
			name:    "empty body",
			body:    "",
			wantErr: true,
			errMsg:  "request body is empty",
		},
		{
			name:    "invalid JSON",
			body:    `{invalid}`,
			wantErr: true,
			errMsg:  "invalid JSON",
		},
		{
			name:    "unknown field",
			body:    `{"mac":"AA:BB:CC:DD:EE:FF","unknown":"field"}`,
			wantErr: true,
			errMsg:  "invalid JSON",
		},
		{
			name:    "trailing data",
			body:    `{"mac":"AA:BB:CC:DD:EE:FF"}{"extra":true}`,
			wantErr: true,
			errMsg:  "request body must contain a single JSON object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p testPayload
			err := Decode(r, &p)
			if (err != nil) != tt.wantErr {
				t.Errorf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && err != nil && tt.errMsg != "" {
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error = %q, want to contain %q", err.Error(), tt.errMsg)
				}
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		payload   testPayload
		wantCount int
	}{
		{
			name:      "valid payload",
			payload:   testPayload{MAC: "AA:BB:CC:DD:EE:FF", Severity: "high"},
			wantCount: 0,
		},
		{
			name:      "missing required fields",
			payload:   testPayload{},
			wantCount: 2, // mac and severity
		},
		{
			name:      "malformed mac",
			payload:   testPayload{MAC: "not-a-mac", Severity: "high"},
			wantCount: 1,
		},
		{
			name:      "invalid severity",
			payload:   testPayload{MAC: "AA:BB:CC:DD:EE:FF", Severity: "extreme"},
			wantCount: 1,
		},
		{
			name:      "invalid email",
			payload:   testPayload{MAC: "AA:BB:CC:DD:EE:FF", Severity: "high", Email: "not-an-email"},
			wantCount: 1,
		},
		{
			name:      "valid email",
			payload:   testPayload{MAC: "AA:BB:CC:DD:EE:FF", Severity: "high", Email: "user@example.com"},
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.payload)
			if len(errs) != tt.wantCount {
				t.Errorf("Validate() returned %d errors, want %d: %+v", len(errs), tt.wantCount, errs)
			}
		})
	}
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantOK     bool
		wantStatus int
	}{
		{
			name:   "valid request",
			body:   `{"mac":"AA:BB:CC:DD:EE:FF","severity":"high"}`,
			wantOK: true,
		},
		{
			name:       "invalid JSON",
			body:       `{bad}`,
			wantOK:     false,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed mac",
			body:       `{"mac":"not-a-mac","severity":"high"}`,
			wantOK:     false,
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			var p testPayload
			ok := DecodeAndValidate(w, r, &p)
			if ok != tt.wantOK {
				t.Errorf("DecodeAndValidate() = %v, want %v", ok, tt.wantOK)
			}
			if !ok && w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestMACAddressValidation(t *testing.T) {
	tests := []struct {
		mac     string
		wantErr bool
	}{
		{"AA:BB:CC:DD:EE:FF", false},
		{"aa:bb:cc:dd:ee:ff", false},
		{"AABBCCDDEEFF", true},
		{"AA:BB:CC:DD:EE", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.mac, func(t *testing.T) {
			errs := Validate(testPayload{MAC: tt.mac, Severity: "high"})
			if (len(errs) != 0) != tt.wantErr {
				t.Errorf("Validate(mac=%q) errors = %+v, wantErr %v", tt.mac, errs, tt.wantErr)
			}
		})
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Title", "title"},
		{"CreatedAt", "created_at"},
		{"ID", "i_d"},
		{"PageSize", "page_size"},
		{"lowercase", "lowercase"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := toSnakeCase(tt.in)
			if got != tt.want {
				t.Errorf("toSnakeCase(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
