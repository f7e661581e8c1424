package api

import (
	"net/http"

	"github.com/alaska-icy-giant/simbridge/internal/api/apiutil"
	"github.com/alaska-icy-giant/simbridge/internal/auth"
	"github.com/alaska-icy-giant/simbridge/internal/models"
)

type createDeviceRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// handleCreateDevice handles POST /devices.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req createDeviceRequest
	if !apiutil.DecodeJSON(w, r, &req) {
		return
	}
	if !apiutil.RequireNonEmpty(w, "name", req.Name) {
		return
	}
	if !apiutil.ValidateEnum(w, "type", req.Type, []string{string(models.RoleHost), string(models.RoleClient)}) {
		return
	}

	device, err := s.Store.CreateDevice(r.Context(), userID, req.Name, models.DeviceRole(req.Type), nil)
	if err != nil {
		apiutil.InternalError(w, s.Logger, "creating device failed", err)
		return
	}

	apiutil.WriteJSONRaw(w, http.StatusCreated, deviceJSON(device, s.Registry.IsOnline(device.ID)))
}

// handleListDevices handles GET /devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	devices, err := s.Store.ListDevicesByOwner(r.Context(), userID)
	if err != nil {
		apiutil.InternalError(w, s.Logger, "listing devices failed", err)
		return
	}

	out := make([]map[string]interface{}, len(devices))
	for i := range devices {
		out[i] = deviceJSON(&devices[i], s.Registry.IsOnline(devices[i].ID))
	}
	apiutil.WriteJSONRaw(w, http.StatusOK, out)
}

func deviceJSON(d *models.Device, online bool) map[string]interface{} {
	m := map[string]interface{}{
		"id":        d.ID,
		"name":      d.Name,
		"type":      d.Role,
		"is_online": online,
	}
	if d.LastSeenAt != nil {
		m["last_seen"] = d.LastSeenAt
	}
	return m
}
