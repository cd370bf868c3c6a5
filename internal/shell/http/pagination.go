package http

import (
	"net/url"
	"strconv"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// PaginationMeta carries the total result count for a listing.
type PaginationMeta struct {
	Count int `json:"count"`
}

// NavigationLinks holds the offset-based page links for a listing.
// Absent links are omitted from the JSON response.
type NavigationLinks struct {
	First string `json:"first,omitempty"`
	Last  string `json:"last,omitempty"`
	Next  string `json:"next,omitempty"`
	Prev  string `json:"previous,omitempty"`
}

// PaginatedResponse is the envelope for all listing endpoints.
type PaginatedResponse struct {
	Meta  PaginationMeta  `json:"meta"`
	Links NavigationLinks `json:"links"`
	Data  interface{}     `json:"data"`
}

// parsePaginationParams reads offset/limit from the query string.
// Invalid or negative values fall back to the defaults, and limit is
// capped at maxLimit.
func parsePaginationParams(u *url.URL) (offset, limit int) {
	offset = 0
	limit = defaultLimit

	if raw := u.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	if raw := u.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return offset, limit
}

func pageLink(u *url.URL, offset, limit int) string {
	link := *u
	q := link.Query()
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	link.RawQuery = q.Encode()
	return link.String()
}

// calculateOffsetOfLastPage returns the offset of the final page for
// the given total and page size.
func calculateOffsetOfLastPage(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	lastPage := (total - 1) / limit
	return lastPage * limit
}

// buildNavigationLinks builds first/last/next/prev links for the
// current page. An empty result set gets no links at all.
func buildNavigationLinks(u *url.URL, offset, limit, total int) NavigationLinks {
	if total <= 0 {
		return NavigationLinks{}
	}

	links := NavigationLinks{
		First: pageLink(u, 0, limit),
		Last:  pageLink(u, calculateOffsetOfLastPage(total, limit), limit),
	}

	if offset+limit < total {
		links.Next = pageLink(u, offset+limit, limit)
	}
	if offset > 0 {
		prev := offset - limit
		if prev < 0 {
			prev = 0
		}
		links.Prev = pageLink(u, prev, limit)
	}

	return links
}

func buildPaginatedResponse(u *url.URL, offset, limit, total int, data interface{}) PaginatedResponse {
	return PaginatedResponse{
		Meta:  PaginationMeta{Count: total},
		Links: buildNavigationLinks(u, offset, limit, total),
		Data:  data,
	}
}
