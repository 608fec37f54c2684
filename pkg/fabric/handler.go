package fabric

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/devicefabric/fabric/internal/httpserver"
)

// Handler exposes the operator-facing manifest publish endpoint (§4.B).
// Unlike the device registry's handler this mounts at the top level, not
// under /device: it is called by release tooling, not by devices.
type Handler struct {
	store *Store
}

// NewHandler creates a fabric Handler.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Routes returns the manifest publish route, to be mounted on the
// top-level router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/manifests/{kind}", h.handlePublishManifest)
	return r
}

type publishManifestRequest struct {
	TenantID string `json:"tenantId"`
	Version  string `json:"version" validate:"required"`
	URL      string `json:"url" validate:"required,url"`
	Hash     string `json:"hash" validate:"required"`
}

// handlePublishManifest publishes a retained manifest notice for the
// firmware or filesystem kind named in the path. An absent tenantId
// publishes the global fallback manifest.
func (h *Handler) handlePublishManifest(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if kind != "firmware" && kind != "filesystem" {
		httpserver.RespondError(w, http.StatusBadRequest, httpserver.ErrCodeBadRequest, "kind must be firmware or filesystem")
		return
	}

	var req publishManifestRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.store.PublishManifest(r.Context(), req.TenantID, kind, Manifest{
		Version: req.Version,
		URL:     req.URL,
		Hash:    req.Hash,
	}); err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, httpserver.ErrCodeInternal, "publishing manifest failed")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}
