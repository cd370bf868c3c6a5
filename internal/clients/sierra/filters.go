package sierra

import (
	"fmt"
	"strconv"
	"time"

	"sierra-export/internal/core/domain"
)

// Filter translates an export filter plus its options into the WHERE
// clause applied to sierra_view.record_metadata queries.
type Filter struct {
	// Code is one of the domain export filter codes
	Code string

	// Options carries the filter parameters (date range, record range,
	// location code)
	Options map[string]interface{}

	// Latest is the resolved last-export watermark; required when Code
	// is last_export
	Latest time.Time

	// Deletions switches the date window onto deletion_date_gmt
	// instead of record_last_updated_gmt
	Deletions bool
}

// BuildWhere renders the filter as a SQL fragment with positional
// placeholders starting at $start. Deletion queries always constrain
// deletion_date_gmt IS NOT NULL; record queries constrain it IS NULL so
// half-deleted rows never show up as live records.
func (f Filter) BuildWhere(start int) (string, []interface{}, error) {
	var clause string
	var args []interface{}

	if f.Deletions {
		clause = "rm.deletion_date_gmt IS NOT NULL"
	} else {
		clause = "rm.deletion_date_gmt IS NULL"
	}

	dateColumn := "rm.record_last_updated_gmt"
	if f.Deletions {
		dateColumn = "rm.deletion_date_gmt"
	}

	switch f.Code {
	case domain.FilterFullExport:
		// No additional constraint.

	case domain.FilterDateRange:
		from, to, err := dateRangeBounds(f.Options)
		if err != nil {
			return "", nil, err
		}
		clause += fmt.Sprintf(" AND %s >= $%d AND %s <= $%d", dateColumn, start, dateColumn, start+1)
		args = append(args, from, to)

	case domain.FilterLastExport:
		if f.Latest.IsZero() {
			return "", nil, domain.ErrNoLastExport
		}
		clause += fmt.Sprintf(" AND %s >= $%d", dateColumn, start)
		args = append(args, f.Latest)

	case domain.FilterRecordRange:
		from, err := stringOption(f.Options, "record_range_from")
		if err != nil {
			return "", nil, err
		}
		to, err := stringOption(f.Options, "record_range_to")
		if err != nil {
			return "", nil, err
		}
		fromNum, err := strconv.ParseInt(from[1:], 10, 64)
		if err != nil {
			return "", nil, fmt.Errorf("%w: bad record_range_from", domain.ErrInvalidOptions)
		}
		toNum, err := strconv.ParseInt(to[1:], 10, 64)
		if err != nil {
			return "", nil, fmt.Errorf("%w: bad record_range_to", domain.ErrInvalidOptions)
		}
		clause += fmt.Sprintf(" AND rm.record_num >= $%d AND rm.record_num <= $%d", start, start+1)
		args = append(args, fromNum, toNum)

	case domain.FilterLocation:
		code, err := stringOption(f.Options, "location_code")
		if err != nil {
			return "", nil, err
		}
		clause += fmt.Sprintf(
			" AND rm.id IN (SELECT ir.record_id FROM sierra_view.item_record ir WHERE ir.location_code = $%d)",
			start)
		args = append(args, code)

	default:
		return "", nil, domain.ErrInvalidFilter
	}

	return clause, args, nil
}

// dateRangeBounds converts the from/to date options into an inclusive
// UTC window covering local midnight through 23:59:59 of the end date.
// The location is set when the filter is built (see Client.Filter).
var filterLocation = time.UTC

// SetLocation sets the zone used to interpret date-range options.
func SetLocation(loc *time.Location) {
	if loc != nil {
		filterLocation = loc
	}
}

func dateRangeBounds(options map[string]interface{}) (time.Time, time.Time, error) {
	fromStr, err := stringOption(options, "date_range_from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	toStr, err := stringOption(options, "date_range_to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	fromDay, err := time.ParseInLocation("2006-01-02", fromStr, filterLocation)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: bad date_range_from", domain.ErrInvalidOptions)
	}
	toDay, err := time.ParseInLocation("2006-01-02", toStr, filterLocation)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: bad date_range_to", domain.ErrInvalidOptions)
	}

	from := fromDay.UTC()
	to := toDay.Add(24*time.Hour - time.Second).UTC()
	return from, to, nil
}

func stringOption(options map[string]interface{}, key string) (string, error) {
	v, ok := options[key]
	if !ok {
		return "", fmt.Errorf("%w: missing option %q", domain.ErrInvalidOptions, key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: option %q must be a non-empty string", domain.ErrInvalidOptions, key)
	}
	return s, nil
}
