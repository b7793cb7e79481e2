package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ValueRequest is the body of PUT /entities/{id}/value. Numbers take a JSON
// number, switches a bool or "on"/"off", everything else a string.
type ValueRequest struct {
	Value any `json:"value"`
}

// EnabledRequest is the body of PUT /entities/{id}/enabled.
type EnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	entities := s.entities.List(r.URL.Query().Get("device"))
	writeJSON(w, http.StatusOK, map[string]any{"entities": entities, "count": len(entities)})
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	state, err := s.entities.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleSetEntityValue validates and transmits a write for the entity.
// It answers 202 once the write is on the wire; the entity's value follows
// when the appliance reports it.
func (s *Server) handleSetEntityValue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value field is required")
		return
	}

	err := s.withEntityDevice(id, func() error {
		return s.entities.Command(r.Context(), id, req.Value)
	})
	if err != nil {
		s.logger.Debug("entity command rejected", "entity", id, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "sent", "entity": id})
}

func (s *Server) handleSetEntityEnabled(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req EnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Enabled == nil {
		writeBadRequest(w, "enabled field is required")
		return
	}

	err := s.withEntityDevice(id, func() error {
		return s.entities.SetEnabled(id, *req.Enabled)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	state, err := s.entities.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// withEntityDevice runs fn holding the lock of the entity's device.
func (s *Server) withEntityDevice(uniqueID string, fn func() error) error {
	if s.devices == nil {
		return fn()
	}
	state, err := s.entities.Get(uniqueID)
	if err != nil {
		return err
	}
	return s.devices.WithDevice(state.DeviceName, fn)
}
