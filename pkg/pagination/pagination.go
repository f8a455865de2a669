// Package pagination pages through in-memory lists for the JSON API.
package pagination

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPerPage is used when the client asks for no particular size.
	DefaultPerPage = 24
	// MaxPerPage caps the page size a client may request.
	MaxPerPage = 100
)

// Params is a 1-based page request.
type Params struct {
	Page    int
	PerPage int
}

// Offset is the index of the first item on the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// FromRequest reads ?page= and ?per_page=. Malformed or non-positive values
// use the defaults; a page size above MaxPerPage is clamped to it.
func FromRequest(r *http.Request) Params {
	return FromQuery(r.URL.Query())
}

// FromQuery is FromRequest for an already parsed query.
func FromQuery(q url.Values) Params {
	p := Params{Page: 1, PerPage: DefaultPerPage}
	if v, ok := positive(q.Get("page")); ok {
		p.Page = v
	}
	if v, ok := positive(q.Get("per_page")); ok {
		p.PerPage = min(v, MaxPerPage)
	}
	return p
}

func positive(s string) (int, bool) {
	v, err := strconv.Atoi(s)
	return v, err == nil && v > 0
}

// Page is one page of a list plus enough metadata to render pager controls.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	Page    int  `json:"page"`
	PerPage int  `json:"perPage"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"hasNext"`
	HasPrev bool `json:"hasPrev"`
}

// Slice returns the page of all selected by p. Items are copied, so the
// page does not alias all. A page past the end is empty, not an error.
func Slice[T any](all []T, p Params) Page[T] {
	start := min(p.Offset(), len(all))
	end := min(start+p.PerPage, len(all))

	items := make([]T, end-start)
	copy(items, all[start:end])

	pages := (len(all) + p.PerPage - 1) / p.PerPage
	return Page[T]{
		Items:   items,
		Total:   len(all),
		Page:    p.Page,
		PerPage: p.PerPage,
		Pages:   pages,
		HasNext: p.Page < pages,
		HasPrev: p.Page > 1,
	}
}

// SetLinkHeader advertises the neighbouring pages of pg as RFC 8288 links
// relative to the request URL.
func SetLinkHeader[T any](w http.ResponseWriter, r *http.Request, pg Page[T]) {
	var links []string
	link := func(page int, rel string) {
		u := *r.URL
		q := u.Query()
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(pg.PerPage))
		u.RawQuery = q.Encode()
		links = append(links, fmt.Sprintf("<%s>; rel=%q", u.RequestURI(), rel))
	}
	if pg.HasPrev {
		link(pg.Page-1, "prev")
	}
	if pg.HasNext {
		link(pg.Page+1, "next")
	}
	if len(links) > 0 {
		w.Header().Set("Link", strings.Join(links, ", "))
	}
}
