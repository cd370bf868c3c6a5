package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"sierra-export/internal/core/domain"
	"sierra-export/internal/core/usecases"
)

type ExportHandler struct {
	exportService *usecases.ExportService
	apiPrefix     string
}

func NewExportHandler(exportService *usecases.ExportService, apiPrefix string) *ExportHandler {
	return &ExportHandler{
		exportService: exportService,
		apiPrefix:     apiPrefix,
	}
}

// CreateExport triggers an export run. The caller's staff username
// comes from the X-Username header; a missing header records the run
// as triggered by the automated account.
func (h *ExportHandler) CreateExport(w http.ResponseWriter, r *http.Request) {
	log.Printf("[DEBUG] HTTP CreateExport called - method: %s, path: %s", r.Method, r.URL.Path)

	var req struct {
		ExportType string                 `json:"export_type"`
		Filter     string                 `json:"export_filter"`
		Options    map[string]interface{} `json:"filter_options"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[DEBUG] HTTP CreateExport failed - JSON decode error: %v", err)
		respondWithErrors(w, http.StatusBadRequest, []ErrorObject{errorInvalidJSON(err)})
		return
	}

	username := r.Header.Get("X-Username")

	log.Printf("[DEBUG] HTTP CreateExport - parsed request: type=%s, filter=%s, username=%s",
		req.ExportType, req.Filter, username)

	if req.ExportType == "" || req.Filter == "" {
		log.Printf("[DEBUG] HTTP CreateExport failed - missing required fields")
		respondWithErrors(w, http.StatusBadRequest, []ErrorObject{errorMissingFields()})
		return
	}

	instance, err := h.exportService.CreateExport(req.ExportType, req.Filter, req.Options, username)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrExportTypeNotFound):
			respondWithErrors(w, http.StatusBadRequest, []ErrorObject{errorInvalidField("export_type", err.Error())})
			return
		case errors.Is(err, domain.ErrInvalidFilter), errors.Is(err, domain.ErrNoLastExport):
			respondWithErrors(w, http.StatusBadRequest, []ErrorObject{errorInvalidField("export_filter", err.Error())})
			return
		case errors.Is(err, domain.ErrInvalidOptions):
			respondWithErrors(w, http.StatusBadRequest, []ErrorObject{errorInvalidField("filter_options", err.Error())})
			return
		}
		if instance.ID == "" {
			log.Printf("[DEBUG] HTTP CreateExport failed - internal error: %v", err)
			respondWithErrors(w, http.StatusInternalServerError, []ErrorObject{errorInternalServer()})
			return
		}
		// The instance was saved but could not be enqueued. It stays in
		// waiting, so the run is still accepted.
		log.Printf("[DEBUG] HTTP CreateExport - enqueue failed for %s, instance remains waiting: %v", instance.ID, err)
	}

	log.Printf("[DEBUG] HTTP CreateExport success - instance created with ID: %s", instance.ID)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", h.apiPrefix+"/exports/"+instance.ID)
	w.WriteHeader(http.StatusAccepted)

	if err := json.NewEncoder(w).Encode(ToExportResponse(instance)); err != nil {
		log.Printf("[DEBUG] HTTP CreateExport - warning: failed to encode response: %v", err)
	}
}

func (h *ExportHandler) GetAllExports(w http.ResponseWriter, r *http.Request) {
	statusFilter := r.URL.Query().Get("status")
	typeFilter := r.URL.Query().Get("export_type")
	offset, limit := parsePaginationParams(r.URL)

	instances, total, err := h.exportService.ListExports(usecases.ListQuery{
		Status:     statusFilter,
		ExportType: typeFilter,
		Offset:     offset,
		Limit:      limit,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidStatus) {
			respondWithErrors(w, http.StatusBadRequest, []ErrorObject{errorInvalidField("status", err.Error())})
			return
		}
		log.Printf("[DEBUG] GetAllExports failed - unable to retrieve exports: %v", err)
		respondWithErrors(w, http.StatusInternalServerError, []ErrorObject{errorInternalServer()})
		return
	}

	response := buildPaginatedResponse(r.URL, offset, limit, total, ToExportResponseList(instances))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (h *ExportHandler) GetExport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	instance, err := h.exportService.GetExport(id)
	if err != nil {
		if errors.Is(err, domain.ErrInstanceNotFound) {
			respondWithErrors(w, http.StatusNotFound, []ErrorObject{errorNotFound("Export", id)})
			return
		}
		log.Printf("[DEBUG] GetExport failed - internal error: %v", err)
		respondWithErrors(w, http.StatusInternalServerError, []ErrorObject{errorInternalServer()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ToExportResponse(instance))
}

func (h *ExportHandler) GetAllExportTypes(w http.ResponseWriter, r *http.Request) {
	types := h.exportService.ListExportTypes()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(types)
}

func (h *ExportHandler) GetExportType(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	exportType, err := h.exportService.GetExportType(code)
	if err != nil {
		respondWithErrors(w, http.StatusNotFound, []ErrorObject{errorNotFound("Export Type", code)})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(exportType)
}

func (h *ExportHandler) GetAllExportFilters(w http.ResponseWriter, r *http.Request) {
	filters := h.exportService.ListExportFilters()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(filters)
}
