package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/roach88/selectapi/internal/apierr"
)

// Page bounds for list requests.
const (
	DefaultLimit = 10
	MaxLimit     = 50
	MaxOffset    = 1000
)

// Page is a limit/offset window over a list result.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ParsePage reads limit and offset from their string forms. Empty strings
// take the defaults (limit 10, offset 0). Out-of-range values are a
// validation error.
func ParsePage(limit, offset string) (Page, error) {
	p := Page{Limit: DefaultLimit}
	if s := strings.TrimSpace(limit); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Page{}, apierr.Validation("invalid limit %q", limit)
		}
		p.Limit = n
	}
	if s := strings.TrimSpace(offset); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Page{}, apierr.Validation("invalid offset %q", offset)
		}
		p.Offset = n
	}
	return p, p.Validate()
}

// Validate checks the page bounds.
func (p Page) Validate() error {
	if p.Limit < 1 || p.Limit > MaxLimit {
		return apierr.Validation("limit must be between 1 and %d", MaxLimit)
	}
	if p.Offset < 0 || p.Offset > MaxOffset {
		return apierr.Validation("offset must be between 0 and %d", MaxOffset)
	}
	return nil
}

// Next returns the following page.
func (p Page) Next() Page {
	return Page{Limit: p.Limit, Offset: p.Offset + p.Limit}
}

// Prev returns the preceding page, shrinking its limit so it ends where p
// begins. The second result is false on the first page.
func (p Page) Prev() (Page, bool) {
	if p.Offset <= 0 {
		return Page{}, false
	}
	prev := max(p.Offset-p.Limit, 0)
	return Page{Limit: min(p.Limit, p.Offset-prev), Offset: prev}, true
}

// Links renders next and prev URLs based on base, keeping its other query
// parameters. prev is empty on the first page; next is empty when the
// current page came back short.
func (p Page) Links(base *url.URL, returned int) (next, prev string) {
	link := func(q Page) string {
		u := *base
		values := u.Query()
		values.Set("limit", strconv.Itoa(q.Limit))
		values.Set("offset", strconv.Itoa(q.Offset))
		u.RawQuery = values.Encode()
		return u.String()
	}
	if returned >= p.Limit {
		next = link(p.Next())
	}
	if pp, ok := p.Prev(); ok {
		prev = link(pp)
	}
	return next, prev
}
