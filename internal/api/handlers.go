// Package api exposes the provisioning and renumbering operations,
// plus the inventory CRUD needed to feed them, over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/as36198/linkd/internal/config"
	"github.com/as36198/linkd/internal/log"
	"github.com/as36198/linkd/internal/model"
	"github.com/as36198/linkd/internal/provision"
	"github.com/as36198/linkd/internal/regularize"
	"github.com/as36198/linkd/internal/renumber"
	"github.com/as36198/linkd/internal/script"
	"github.com/as36198/linkd/internal/storage"
	"github.com/as36198/linkd/internal/topology"
)

// Handler handles HTTP requests
type Handler struct {
	store *storage.Store
	cfg   *config.Config
}

// NewHandler creates a new API handler
func NewHandler(store *storage.Store, cfg *config.Config) *Handler {
	return &Handler{store: store, cfg: cfg}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Inventory
	mux.HandleFunc("POST /api/sites", h.createSite)
	mux.HandleFunc("GET /api/devices", h.listDevices)
	mux.HandleFunc("POST /api/devices", h.createDevice)
	mux.HandleFunc("GET /api/devices/{id}/ports", h.listDevicePorts)
	mux.HandleFunc("POST /api/devices/{id}/ports", h.createDevicePort)
	mux.HandleFunc("POST /api/blocks", h.createBlock)
	mux.HandleFunc("POST /api/links", h.createLink)

	// Operations
	mux.HandleFunc("POST /api/provision", h.provision)
	mux.HandleFunc("POST /api/renumber/generate", h.renumberGenerate)
	mux.HandleFunc("POST /api/renumber/prune", h.renumberPrune)
	mux.HandleFunc("POST /api/regularize/descriptions", h.regularizeDescriptions)
	mux.HandleFunc("POST /api/regularize/ptrs", h.regularizePTRs)
}

// provision handles POST /api/provision
func (h *Handler) provision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		provision.Params
		Commit bool `json:"commit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.runOperation(w, req.Commit, func(tx *storage.Tx) (script.Output, error) {
		return provision.AddPNI(tx, &req.Params)
	})
}

// renumberGenerate handles POST /api/renumber/generate
func (h *Handler) renumberGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		renumber.Params
		Commit bool `json:"commit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.runOperation(w, req.Commit, func(tx *storage.Tx) (script.Output, error) {
		return renumber.Generate(tx, &req.Params)
	})
}

// renumberPrune handles POST /api/renumber/prune
func (h *Handler) renumberPrune(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Commit bool `json:"commit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.runOperation(w, req.Commit, renumber.Prune)
}

// regularizeDescriptions handles POST /api/regularize/descriptions
func (h *Handler) regularizeDescriptions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Commit bool `json:"commit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.runOperation(w, req.Commit, regularize.Descriptions)
}

// regularizePTRs handles POST /api/regularize/ptrs
func (h *Handler) regularizePTRs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Commit bool   `json:"commit"`
		Domain string `json:"domain,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	domain := req.Domain
	if domain == "" {
		domain = h.cfg.PTRDomain
	}

	h.runOperation(w, req.Commit, func(tx *storage.Tx) (script.Output, error) {
		return regularize.PTRs(tx, domain)
	})
}

// runOperation executes an operation through the transaction runner
// and writes its structured result. Cancellations surface as a normal
// result with result=false; only faults become a 500.
func (h *Handler) runOperation(w http.ResponseWriter, commit bool, op script.Op) {
	result, err := script.Run(h.store, commit, op)
	if err != nil {
		h.internalError(w, err)
		return
	}

	status := http.StatusOK
	if !result.Result {
		status = http.StatusUnprocessableEntity
	}
	h.writeJSON(w, status, result)
}

// createSite handles POST /api/sites
func (h *Handler) createSite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	site, err := h.withTx(func(tx *storage.Tx) (any, error) {
		return tx.CreateSite(req.Name)
	})
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, site)
}

// listDevices handles GET /api/devices
func (h *Handler) listDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.withTx(func(tx *storage.Tx) (any, error) {
		return tx.ListDevices()
	})
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, devices)
}

// createDevice handles POST /api/devices
func (h *Handler) createDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Site string `json:"site"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Site == "" {
		h.writeError(w, http.StatusBadRequest, "name and site are required")
		return
	}

	device, err := h.withTx(func(tx *storage.Tx) (any, error) {
		site, err := tx.GetSiteByName(req.Site)
		if err != nil {
			return nil, err
		}
		return tx.CreateDevice(req.Name, site.ID)
	})
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, device)
}

// listDevicePorts handles GET /api/devices/{id}/ports
func (h *Handler) listDevicePorts(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "device ID required")
		return
	}

	ports, err := h.withTx(func(tx *storage.Tx) (any, error) {
		if _, err := tx.GetDevice(id); err != nil {
			return nil, err
		}
		return tx.ListPorts(&model.PortFilter{DeviceID: id})
	})
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ports)
}

// createDevicePort handles POST /api/devices/{id}/ports
func (h *Handler) createDevicePort(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "device ID required")
		return
	}

	var req struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Kind == "" {
		req.Kind = model.PortKindPhysical
	}

	port, err := h.withTx(func(tx *storage.Tx) (any, error) {
		if _, err := tx.GetDevice(id); err != nil {
			return nil, err
		}
		p := &model.Port{DeviceID: id, Name: req.Name, Kind: req.Kind, Mode: req.Mode}
		if err := tx.CreatePort(p); err != nil {
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, port)
}

// createBlock handles POST /api/blocks
func (h *Handler) createBlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CIDR   string `json:"cidr"`
		Family int    `json:"family"`
		Role   string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CIDR == "" {
		h.writeError(w, http.StatusBadRequest, "cidr is required")
		return
	}
	if req.Family != 4 && req.Family != 6 {
		h.writeError(w, http.StatusBadRequest, "family must be 4 or 6")
		return
	}

	block, err := h.withTx(func(tx *storage.Tx) (any, error) {
		return tx.CreateBlock(req.CIDR, req.Family, req.Role)
	})
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, block)
}

// createLink handles POST /api/links
func (h *Handler) createLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		A script.PortRef `json:"a"`
		B script.PortRef `json:"b"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	link, err := h.withTx(func(tx *storage.Tx) (any, error) {
		a, err := req.A.Resolve(tx)
		if err != nil {
			return nil, err
		}
		b, err := req.B.Resolve(tx)
		if err != nil {
			return nil, err
		}
		for _, port := range []*model.Port{a, b} {
			if err := topology.EnsureAvailable(tx, port); err != nil {
				return nil, err
			}
		}
		return tx.CreateLink(a.ID, b.ID)
	})
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, link)
}

// withTx runs fn inside one committed transaction
func (h *Handler) withTx(fn func(tx *storage.Tx) (any, error)) (any, error) {
	tx, err := h.store.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := fn(tx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// storeError maps storage and validation errors to HTTP statuses
func (h *Handler) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrSiteNotFound),
		errors.Is(err, storage.ErrDeviceNotFound),
		errors.Is(err, storage.ErrPortNotFound),
		errors.Is(err, storage.ErrBlockNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case script.IsCancel(err):
		h.writeError(w, http.StatusConflict, err.Error())
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		h.writeError(w, http.StatusConflict, "already exists")
	default:
		h.internalError(w, err)
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// internalError logs the error and writes a generic 500 response
func (h *Handler) internalError(w http.ResponseWriter, err error) {
	log.Error("Internal server error", "error", err)
	h.writeError(w, http.StatusInternalServerError, "Internal Server Error")
}
