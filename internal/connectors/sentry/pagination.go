package sentry

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/sentry-tap/internal/core/domain"
)

// linkRegex matches Link header entries: <url>; rel="..."; results="...".
var linkRegex = regexp.MustCompile(`<([^>]+)>`)

// attrRegex matches key="value" attributes within one Link entry.
var attrRegex = regexp.MustCompile(`(\w+)="([^"]*)"`)

// nextLink is the parsed "next" relation of a paginated response.
type nextLink struct {
	// URL is the absolute URL of the next page.
	URL string

	// Results is true only when the server explicitly marks the next
	// page as non-empty (results="true").
	Results bool
}

// page is one response of a list endpoint: its records plus the
// optional next-page locator.
type page struct {
	records []domain.Record
	next    *nextLink
}

// hasMore reports whether traversal should continue. Both conditions
// are required: a next relation must be present AND its results flag
// must be explicitly true. A missing relation, a missing flag or any
// malformed pagination metadata terminates traversal rather than loop.
func (p *page) hasMore() bool {
	return p.next != nil && p.next.Results && p.next.URL != ""
}

// ParseNextLink extracts the "next" relation from a Link header.
// Returns nil if no next link is present.
func ParseNextLink(linkHeader string) *nextLink {
	if linkHeader == "" {
		return nil
	}

	for _, part := range strings.Split(linkHeader, ",") {
		part = strings.TrimSpace(part)

		urlMatch := linkRegex.FindStringSubmatch(part)
		if len(urlMatch) < 2 {
			continue
		}

		attrs := make(map[string]string)
		for _, m := range attrRegex.FindAllStringSubmatch(part, -1) {
			attrs[m[1]] = m[2]
		}
		if attrs["rel"] != "next" {
			continue
		}

		return &nextLink{
			URL:     urlMatch[1],
			Results: attrs["results"] == "true",
		}
	}

	return nil
}

// paginate follows the next-page locator of first until the server
// signals no further results, returning all records in server order.
// A mid-traversal fetch failure surfaces as-is; records from pages
// already fetched are not returned with it.
func (c *Client) paginate(ctx context.Context, first *page) ([]domain.Record, error) {
	records := first.records
	current := first

	for current.hasMore() {
		next, err := c.getPage(ctx, current.next.URL, nil)
		if err != nil {
			return nil, err
		}
		records = append(records, next.records...)
		current = next
	}

	return records, nil
}

// paginateFiltered is paginate with a per-page filter. Traversal stops
// early once a fetched page contributes no records, which bounds the
// walk over endpoints ordered newest-first.
func (c *Client) paginateFiltered(
	ctx context.Context, first *page, keep func(domain.Record) bool,
) ([]domain.Record, error) {
	records := filterRecords(first.records, keep)
	if len(records) == 0 {
		return nil, nil
	}
	current := first

	for current.hasMore() {
		next, err := c.getPage(ctx, current.next.URL, nil)
		if err != nil {
			return nil, err
		}
		kept := filterRecords(next.records, keep)
		if len(kept) == 0 {
			break
		}
		records = append(records, kept...)
		current = next
	}

	return records, nil
}

func filterRecords(records []domain.Record, keep func(domain.Record) bool) []domain.Record {
	var out []domain.Record
	for _, rec := range records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}
