package audit

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/devicefabric/fabric/internal/httpserver"
)

// unclaimNotifyRequest is the body of POST /device/unclaim-notify.
type unclaimNotifyRequest struct {
	MAC    string `json:"mac" validate:"required,mac"`
	Source string `json:"source" validate:"required,oneof=factory_reset local_ui mqtt_revoke"`
}

// Handler exposes the unclaim-notify endpoint used by devices that locally
// discarded their credentials (factory reset, local UI action, or an MQTT
// revoke they already processed) to record why.
type Handler struct {
	writer *Writer
}

// NewHandler creates an audit Handler.
func NewHandler(writer *Writer) *Handler {
	return &Handler{writer: writer}
}

// Routes returns the unclaim-notify route, to be mounted under /device.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/unclaim-notify", h.handleUnclaimNotify)
	return r
}

func (h *Handler) handleUnclaimNotify(w http.ResponseWriter, r *http.Request) {
	var req unclaimNotifyRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	detail, _ := json.Marshal(map[string]string{"source": req.Source})
	h.writer.Log(Entry{
		DeviceMAC: req.MAC,
		Source:    req.Source,
		Detail:    detail,
	})

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}
