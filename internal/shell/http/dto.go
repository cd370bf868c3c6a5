package http

import (
	"time"

	"sierra-export/internal/core/domain"
)

// ExportResponse is the API response model for export instances. The
// filter label is resolved server-side so admin front ends do not need
// to carry the filter table.
type ExportResponse struct {
	ID          string                 `json:"id"`
	ExportType  string                 `json:"export_type"`
	Filter      string                 `json:"export_filter"`
	FilterLabel string                 `json:"export_filter_label"`
	Options     map[string]interface{} `json:"filter_options,omitempty"`
	Username    string                 `json:"username"`
	Timestamp   time.Time              `json:"timestamp"`
	Status      string                 `json:"status"`
	Errors      int                    `json:"errors"`
	Warnings    int                    `json:"warnings"`
}

// ToExportResponse converts a domain.ExportInstance to an ExportResponse DTO
func ToExportResponse(instance domain.ExportInstance) ExportResponse {
	return ExportResponse{
		ID:          instance.ID,
		ExportType:  instance.ExportType,
		Filter:      instance.Filter,
		FilterLabel: domain.FilterLabel(instance.Filter),
		Options:     instance.Options,
		Username:    instance.Username,
		Timestamp:   instance.Timestamp,
		Status:      string(instance.Status),
		Errors:      instance.Errors,
		Warnings:    instance.Warnings,
	}
}

// ToExportResponseList converts a slice of domain.ExportInstance to DTOs
func ToExportResponseList(instances []domain.ExportInstance) []ExportResponse {
	responses := make([]ExportResponse, len(instances))
	for i, instance := range instances {
		responses[i] = ToExportResponse(instance)
	}
	return responses
}
