package http

import (
	"path"

	"github.com/gorilla/mux"

	"sierra-export/internal/core/usecases"
)

// SetupRoutes builds the admin API router. siteURLRoot prefixes every
// route for deployments served behind a path proxy; "/" or "" means no
// prefix.
func SetupRoutes(exportService *usecases.ExportService, siteURLRoot string, corsWhitelist []string) *mux.Router {
	apiPrefix := path.Join("/", siteURLRoot, "api/v1")

	router := mux.NewRouter()
	handler := NewExportHandler(exportService, apiPrefix)
	cors := NewCORSMiddleware(corsWhitelist)

	router.Use(LoggingMiddleware)
	router.Use(cors.Handler)

	api := router.PathPrefix(apiPrefix).Subrouter()

	// Export runs
	api.HandleFunc("/exports", handler.CreateExport).Methods("POST")
	api.HandleFunc("/exports", handler.GetAllExports).Methods("GET")
	api.HandleFunc("/exports/{id}", handler.GetExport).Methods("GET")

	// Export admin metadata
	api.HandleFunc("/export-types", handler.GetAllExportTypes).Methods("GET")
	api.HandleFunc("/export-types/{code}", handler.GetExportType).Methods("GET")
	api.HandleFunc("/export-filters", handler.GetAllExportFilters).Methods("GET")

	return router
}
