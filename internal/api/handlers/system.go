// system.go — обработчик GET /api/v1/info: ограничения загрузки для клиентов.
package handlers

import (
	"net/http"

	"github.com/bigkaa/flashshare/internal/config"
	"github.com/bigkaa/flashshare/internal/service"
	"github.com/bigkaa/flashshare/internal/validation"
)

// SystemHandler — обработчик системных endpoints.
type SystemHandler struct {
	svc             ShareService
	defaultTTLHours int
}

// NewSystemHandler создаёт обработчик системных endpoints.
func NewSystemHandler(svc ShareService, defaultTTLHours int) *SystemHandler {
	return &SystemHandler{svc: svc, defaultTTLHours: defaultTTLHours}
}

type infoResponse struct {
	Version            string   `json:"version"`
	Storage            string   `json:"storage"`
	MaxFileSize        int64    `json:"maxFileSize"`
	AllowedExtensions  []string `json:"allowedExtensions"`
	AcceptedExtensions string   `json:"accept"`
	MinTTLHours        int      `json:"minTtlHours"`
	MaxTTLHours        int      `json:"maxTtlHours"`
	DefaultTTLHours    int      `json:"defaultTtlHours"`
}

// GetInfo обрабатывает GET /api/v1/info.
func (h *SystemHandler) GetInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, infoResponse{
		Version:            config.Version,
		Storage:            h.svc.BackendName(),
		MaxFileSize:        h.svc.MaxSize(),
		AllowedExtensions:  validation.AllowedExtensions(),
		AcceptedExtensions: validation.AcceptedExtensions(),
		MinTTLHours:        service.MinTTLHours,
		MaxTTLHours:        service.MaxTTLHours,
		DefaultTTLHours:    h.defaultTTLHours,
	})
}
