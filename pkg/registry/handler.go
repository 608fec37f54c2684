package registry

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/devicefabric/fabric/internal/httpserver"
)

// Handler exposes the Device Registry's public, unauthenticated HTTP
// surface (§6 device-facing HTTP).
type Handler struct {
	store *Store
}

// NewHandler creates a registry Handler.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Routes returns the routes that mount under /device.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/claiming-mode", h.handleClaimingMode)
	r.Get("/check-claim/{mac}", h.handleCheckClaim)
	r.Get("/claim-status", h.handleClaimStatus)
	r.Post("/verify-revocation", h.handleVerifyRevocation)
	return r
}

// MountClaim mounts POST /devices/claim (plural, top-level — not under
// /device) onto the given router.
func (h *Handler) MountClaim(r chi.Router) {
	r.Post("/devices/claim", h.handleClaim)
}

type claimingModeRequest struct {
	MAC    string `json:"mac" validate:"required,mac"`
	Serial string `json:"serial"`
	IP     string `json:"ip"`
}

func (h *Handler) handleClaimingMode(w http.ResponseWriter, r *http.Request) {
	var req claimingModeRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	expiresAt, err := h.store.OpenClaimingWindow(r.Context(), req.MAC, nil)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, httpserver.ErrCodeInternal, "could not open claiming window")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{
		"success":   true,
		"expiresAt": expiresAt.Format(time.RFC3339),
	})
}

type claimDeviceInfo struct {
	MACAddress        string `json:"macAddress" validate:"required,mac"`
	HardwareVersion   string `json:"hardwareVersion"`
	FirmwareVersion   string `json:"firmwareVersion"`
	FilesystemVersion string `json:"filesystemVersion"`
}

type claimRequest struct {
	ClaimCode  string          `json:"claimCode" validate:"required"`
	DeviceInfo claimDeviceInfo `json:"deviceInfo" validate:"required"`
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	creds, err := h.store.Claim(r.Context(), req.ClaimCode, DeviceInfo{
		MAC:               req.DeviceInfo.MACAddress,
		HardwareVersion:   req.DeviceInfo.HardwareVersion,
		FirmwareVersion:   req.DeviceInfo.FirmwareVersion,
		FilesystemVersion: req.DeviceInfo.FilesystemVersion,
	})
	if err != nil {
		if errors.Is(err, ErrClaimCodeInvalid) || errors.Is(err, ErrClaimingWindowClosed) {
			httpserver.RespondError(w, http.StatusBadRequest, httpserver.ErrCodeBadRequest, err.Error())
			return
		}
		httpserver.RespondError(w, http.StatusInternalServerError, httpserver.ErrCodeInternal, "claim failed")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{
		"deviceId":      creds.DeviceID,
		"tenantId":      creds.TenantID,
		"mqttClientId":  creds.MQTTClientID,
		"mqttUsername":  creds.MQTTUsername,
		"mqttPassword":  creds.MQTTPassword,
		"mqttBrokerUrl": creds.MQTTBrokerURL,
		"deviceName":    creds.DeviceName,
	})
}

func (h *Handler) handleCheckClaim(w http.ResponseWriter, r *http.Request) {
	mac := chi.URLParam(r, "mac")

	claimed, creds, err := h.store.CheckClaim(r.Context(), mac)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, httpserver.ErrCodeInternal, "check-claim failed")
		return
	}
	if !claimed {
		httpserver.Respond(w, http.StatusOK, map[string]any{"claimed": false})
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{
		"claimed": true,
		"data": map[string]any{
			"deviceId":      creds.DeviceID,
			"tenantId":      creds.TenantID,
			"mqttClientId":  creds.MQTTClientID,
			"mqttUsername":  creds.MQTTUsername,
			"mqttPassword":  creds.MQTTPassword,
			"mqttBrokerUrl": creds.MQTTBrokerURL,
			"deviceName":    creds.DeviceName,
		},
	})
}

// handleClaimStatus implements the stable claim-status contract (§4.C):
// no row and no window -> claimed:false; claimed row -> claimed:true;
// soft-deleted row -> 410; no row for a MAC that once had one (purged)
// -> 404.
func (h *Handler) handleClaimStatus(w http.ResponseWriter, r *http.Request) {
	mac := r.URL.Query().Get("mac")
	if mac == "" {
		httpserver.RespondError(w, http.StatusBadRequest, httpserver.ErrCodeBadRequest, "mac is required")
		return
	}

	device, err := h.store.q.GetLatestDeviceByMAC(r.Context(), mac)
	if errors.Is(err, pgx.ErrNoRows) {
		hadHistory, histErr := h.store.q.HasClaimHistory(r.Context(), mac)
		if histErr != nil {
			httpserver.RespondError(w, http.StatusInternalServerError, httpserver.ErrCodeInternal, "claim-status lookup failed")
			return
		}
		if hadHistory {
			// Existed once, now purged: a missing row must not be
			// reported as a successful "unclaimed" state.
			httpserver.Respond(w, http.StatusNotFound, nil)
			return
		}
		httpserver.Respond(w, http.StatusOK, map[string]any{"claimed": false})
		return
	}
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, httpserver.ErrCodeInternal, "claim-status lookup failed")
		return
	}

	if device.UnclaimedAt != nil {
		httpserver.Respond(w, http.StatusGone, map[string]any{
			"claimed":   false,
			"revokedAt": device.UnclaimedAt.Format(time.RFC3339),
		})
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{"claimed": true})
}

type verifyRevocationRequest struct {
	MAC   string `json:"mac" validate:"required,mac"`
	Token string `json:"token" validate:"required"`
}

func (h *Handler) handleVerifyRevocation(w http.ResponseWriter, r *http.Request) {
	var req verifyRevocationRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	valid, reason := h.store.VerifyRevocation(r.Context(), req.MAC, req.Token)
	if valid {
		httpserver.Respond(w, http.StatusOK, map[string]any{"valid": true})
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{"valid": false, "reason": reason})
}
