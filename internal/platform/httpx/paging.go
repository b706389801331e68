package httpx

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/miniintern/bizboard/internal/shared"
)

// NewPage wraps results in the paginated envelope with absolute next and
// previous links derived from the request URL.
func NewPage[T any](r *http.Request, p shared.Pagination, results []T) shared.Page[T] {
	if results == nil {
		results = []T{}
	}
	page := shared.Page[T]{Count: p.Total, Results: results}
	if p.HasNext() {
		link := pageURL(r, p.Page+1)
		page.Next = &link
	}
	if p.HasPrevious() {
		link := pageURL(r, p.Page-1)
		page.Previous = &link
	}
	return page
}

func pageURL(r *http.Request, page int) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	query := r.URL.Query()
	if page <= 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(page))
	}
	u := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: query.Encode()}
	return u.String()
}
