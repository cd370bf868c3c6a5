package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ExportType describes one kind of export job. Code is the primary key
// and must match a registered exporter implementation 1:1.
type ExportType struct {
	Code        string `json:"code"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`

	// Chunk sizes used when an export run is broken into batches.
	// Large chunks with heavy per-record fetching can exhaust memory,
	// so conservative defaults are set per type.
	MaxRecChunk int `json:"max_rec_chunk"`
	MaxDelChunk int `json:"max_del_chunk"`

	// Parallel indicates whether batches may run concurrently. Serial
	// exporters chain batch state from one chunk to the next.
	Parallel bool `json:"parallel"`
}

// ExportFilter identifies which records an export run covers.
type ExportFilter struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

const (
	FilterFullExport  = "full_export"
	FilterDateRange   = "updated_date_range"
	FilterRecordRange = "record_range"
	FilterLastExport  = "last_export"
	FilterLocation    = "location"
)

// ExportFilters lists every supported filter in display order.
var ExportFilters = []ExportFilter{
	{Code: FilterFullExport, Label: "Full Export"},
	{Code: FilterDateRange, Label: "Updated Date Range"},
	{Code: FilterRecordRange, Label: "Record Range (by record number)"},
	{Code: FilterLastExport, Label: "Last Export"},
	{Code: FilterLocation, Label: "Location"},
}

func IsValidFilter(code string) bool {
	for _, f := range ExportFilters {
		if f.Code == code {
			return true
		}
	}
	return false
}

func FilterLabel(code string) string {
	for _, f := range ExportFilters {
		if f.Code == code {
			return f.Label
		}
	}
	return code
}

// III record numbers look like "b1234567" -- a record-type letter
// followed by the numeric part.
var recordNumPattern = regexp.MustCompile(`^[a-z][0-9]{5,8}$`)

// ValidateFilterOptions checks that the options map carries what the
// given filter needs. Filters take their options as strings; dates use
// the 2006-01-02 layout.
func ValidateFilterOptions(filter string, options map[string]interface{}) error {
	switch filter {
	case FilterFullExport, FilterLastExport:
		return nil

	case FilterDateRange:
		from, err := optionDate(options, "date_range_from")
		if err != nil {
			return err
		}
		to, err := optionDate(options, "date_range_to")
		if err != nil {
			return err
		}
		if to.Before(from) {
			return fmt.Errorf("%w: date_range_to precedes date_range_from", ErrInvalidOptions)
		}
		return nil

	case FilterRecordRange:
		from, err := optionString(options, "record_range_from")
		if err != nil {
			return err
		}
		to, err := optionString(options, "record_range_to")
		if err != nil {
			return err
		}
		if !recordNumPattern.MatchString(from) || !recordNumPattern.MatchString(to) {
			return fmt.Errorf("%w: record numbers must be a type letter plus digits (e.g. b1234567)", ErrInvalidOptions)
		}
		if from[0] != to[0] {
			return fmt.Errorf("%w: record range endpoints have different record types", ErrInvalidOptions)
		}
		fromNum, _ := strconv.ParseInt(from[1:], 10, 64)
		toNum, _ := strconv.ParseInt(to[1:], 10, 64)
		if fromNum > toNum {
			return fmt.Errorf("%w: record_range_from is greater than record_range_to", ErrInvalidOptions)
		}
		return nil

	case FilterLocation:
		_, err := optionString(options, "location_code")
		return err

	default:
		return ErrInvalidFilter
	}
}

func optionString(options map[string]interface{}, key string) (string, error) {
	v, ok := options[key]
	if !ok {
		return "", fmt.Errorf("%w: missing option %q", ErrInvalidOptions, key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: option %q must be a non-empty string", ErrInvalidOptions, key)
	}
	return s, nil
}

func optionDate(options map[string]interface{}, key string) (time.Time, error) {
	s, err := optionString(options, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: option %q is not a YYYY-MM-DD date", ErrInvalidOptions, key)
	}
	return t, nil
}
