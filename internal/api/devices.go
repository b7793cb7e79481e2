package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/geappliances-bridge/internal/erd"
)

// DeviceSummary is one entry of the device list.
type DeviceSummary struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	Supported   int    `json:"supported"`
	Unsupported int    `json:"unsupported"`
}

// ERDView is the JSON form of one ERD. Value is lowercase hex, or null when
// no value has been observed.
type ERDView struct {
	ERD         string  `json:"erd"`
	Value       *string `json:"value"`
	Supported   bool    `json:"supported"`
	Subscribers int     `json:"subscribers"`
}

// DeviceView is a device with all of its ERDs.
type DeviceView struct {
	Name string    `json:"name"`
	ID   string    `json:"id"`
	ERDs []ERDView `json:"erds"`
}

func erdView(st erd.ERDState) ERDView {
	v := ERDView{ERD: st.ID.String(), Supported: st.Supported, Subscribers: st.Subscribers}
	if st.Value != nil {
		hex := erd.EncodeHex(st.Value)
		v.Value = &hex
	}
	return v
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	names := s.store.Devices()
	devices := make([]DeviceSummary, 0, len(names))
	for _, name := range names {
		snap, err := s.store.Snapshot(name)
		if err != nil {
			continue
		}
		d := DeviceSummary{Name: snap.Name, ID: snap.ID}
		for _, st := range snap.ERDs {
			if st.Supported {
				d.Supported++
			} else {
				d.Unsupported++
			}
		}
		devices = append(devices, d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns the device and its ERDs. ?supported=true limits
// the list to supported ERDs.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Snapshot(chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	onlySupported := r.URL.Query().Get("supported") == "true"
	view := DeviceView{Name: snap.Name, ID: snap.ID, ERDs: make([]ERDView, 0, len(snap.ERDs))}
	for _, st := range snap.ERDs {
		if onlySupported && !st.Supported {
			continue
		}
		view.ERDs = append(view.ERDs, erdView(st))
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetERD(w http.ResponseWriter, r *http.Request) {
	id, err := erd.ParseID(chi.URLParam(r, "erd"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	snap, err := s.store.Snapshot(chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	for _, st := range snap.ERDs {
		if st.ID == id {
			writeJSON(w, http.StatusOK, erdView(st))
			return
		}
	}
	writeNotFound(w, "erd not found")
}

func (s *Server) handleListDeviceEntities(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.store.DeviceExists(name) {
		writeNotFound(w, "device not found")
		return
	}
	entities := s.entities.List(name)
	writeJSON(w, http.StatusOK, map[string]any{"entities": entities, "count": len(entities)})
}
