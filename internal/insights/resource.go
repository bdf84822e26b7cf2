package insights

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// URLFactory builds the request URL of one call.
type URLFactory func() string

// Link is a navigable reference to another resource or the next page.
type Link struct {
	Href string `json:"href"`
}

// Links is the _links block of a list response.
type Links struct {
	Next *Link `json:"next,omitempty"`
	Self *Link `json:"self,omitempty"`
}

// Resource implements the five verbs shared by every Insights resource,
// generic over the entity E, its create params C and its update params U.
// The scope path is fixed at construction.
type Resource[E, C, U any] struct {
	client *Client
	kind   string
	base   string
}

// NewResource binds a resource of the given kind (used in error messages) to
// the scope path below the client's base URL. Segments are path-escaped.
func NewResource[E, C, U any](client *Client, kind string, segments ...string) *Resource[E, C, U] {
	var b strings.Builder
	b.WriteString(client.baseURL)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return &Resource[E, C, U]{client: client, kind: kind, base: b.String()}
}

// URL returns the scope URL with extra path segments appended.
func (r *Resource[E, C, U]) URL(segments ...string) string {
	if len(segments) == 0 {
		return r.base
	}
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return r.base + "/" + strings.Join(escaped, "/")
}

// At returns a URLFactory for URL(segments...).
func (r *Resource[E, C, U]) At(segments ...string) URLFactory {
	u := r.URL(segments...)
	return func() string { return u }
}

// GetAll issues GET urlFactory() and follows _links.next.href until a page
// has no next link, concatenating the arrays found under resultKey in page
// order. The next href is requested as-is.
func (r *Resource[E, C, U]) GetAll(ctx context.Context, urlFactory URLFactory, resultKey string) ([]E, error) {
	operation := "list " + resultKey
	results := make([]E, 0)
	seen := make(map[string]struct{})

	pages := 0
	for next := urlFactory(); next != ""; {
		if pages >= r.client.maxPages {
			return nil, &PaginationError{Operation: operation, Pages: pages, URL: next, Reason: "page limit reached"}
		}
		if _, dup := seen[next]; dup {
			return nil, &PaginationError{Operation: operation, Pages: pages, URL: next, Reason: "next link repeats an earlier page"}
		}
		seen[next] = struct{}{}

		resp, err := r.client.do(ctx, operation, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}
		pages++

		items, link, err := decodePage[E](operation, resp.Body, resultKey)
		if err != nil {
			return nil, err
		}
		results = append(results, items...)
		next = link
	}

	r.client.logger.Debug("list complete",
		zap.String("operation", operation),
		zap.Int("pages", pages),
		zap.Int("count", len(results)))
	return results, nil
}

// GetSingle issues GET and parses the envelope.
func (r *Resource[E, C, U]) GetSingle(ctx context.Context, urlFactory URLFactory) (E, error) {
	return r.send(ctx, "get "+r.kind, http.MethodGet, urlFactory(), nil)
}

// Create issues POST with body.
func (r *Resource[E, C, U]) Create(ctx context.Context, urlFactory URLFactory, body C) (E, error) {
	return r.send(ctx, "create "+r.kind, http.MethodPost, urlFactory(), body)
}

// Patch issues PATCH with body; only the fields set in body change server-side.
func (r *Resource[E, C, U]) Patch(ctx context.Context, urlFactory URLFactory, body U) (E, error) {
	return r.send(ctx, "update "+r.kind, http.MethodPatch, urlFactory(), body)
}

// Put issues PUT with body, replacing the entity.
func (r *Resource[E, C, U]) Put(ctx context.Context, urlFactory URLFactory, body U) (E, error) {
	return r.send(ctx, "replace "+r.kind, http.MethodPut, urlFactory(), body)
}

// Delete issues DELETE; any 2xx is success and the body is discarded.
func (r *Resource[E, C, U]) Delete(ctx context.Context, urlFactory URLFactory) error {
	_, err := r.client.do(ctx, "delete "+r.kind, http.MethodDelete, urlFactory(), nil)
	return err
}

func (r *Resource[E, C, U]) send(ctx context.Context, operation, method, url string, body any) (E, error) {
	var zero E
	resp, err := r.client.do(ctx, operation, method, url, body)
	if err != nil {
		return zero, err
	}
	entity, err := ParseSingleEntityBody[E](resp.Body)
	if err != nil {
		if iErr, ok := err.(*InvalidResponseError); ok {
			iErr.Operation = operation
		}
		return zero, err
	}
	return entity, nil
}

// decodePage returns the entities under resultKey and the next href ("" when
// the page is the last one).
func decodePage[E any](operation string, body []byte, resultKey string) ([]E, string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, "", &InvalidResponseError{Operation: operation, Reason: "page is not a JSON object", Body: body, Err: err}
	}
	raw, ok := fields[resultKey]
	if !ok {
		return nil, "", &InvalidResponseError{Operation: operation, Reason: "page has no " + resultKey + " array", Body: body}
	}
	var items []E
	if !isNull(raw) {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, "", &InvalidResponseError{Operation: operation, Reason: "decode " + resultKey, Body: body, Err: err}
		}
	}

	rawLinks, ok := fields["_links"]
	if !ok || isNull(rawLinks) {
		return items, "", nil
	}
	var links Links
	if err := json.Unmarshal(rawLinks, &links); err != nil {
		return nil, "", &InvalidResponseError{Operation: operation, Reason: "decode _links", Body: body, Err: err}
	}
	if links.Next == nil {
		return items, "", nil
	}
	return items, links.Next.Href, nil
}
