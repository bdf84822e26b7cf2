// Package insightstest provides an in-memory Insights API for tests.
package insightstest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/iTwin/insights-api-sample-console-app/internal/insights"
)

type collectionKind struct {
	listKey     string
	envelopeKey string
	idField     string
}

var collections = map[string]collectionKind{
	"reports":              {"reports", "report", "id"},
	"iModelMappings":       {"mappings", "mapping", "mappingId"},
	"mappings":             {"mappings", "mapping", "id"},
	"groups":               {"groups", "group", "id"},
	"properties":           {"properties", "property", "id"},
	"calculatedProperties": {"properties", "property", "id"},
	"customCalculations":   {"customCalculations", "property", "id"},
}

// Server is a fake Insights API. Collections are keyed by their URL path,
// e.g. "/datasources/iModels/im-1/mappings".
type Server struct {
	*httptest.Server

	// PageSize splits list responses into pages when positive.
	PageSize int

	mu          sync.Mutex
	items       map[string][]map[string]any
	nextID      int
	requests    map[string]int
	scripts     map[string][]insights.ExtractionState
	jobs        map[string][]insights.ExtractionState
	statusCalls map[string]int
}

// NewServer starts a Server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		items:       make(map[string][]map[string]any),
		requests:    make(map[string]int),
		scripts:     make(map[string][]insights.ExtractionState),
		jobs:        make(map[string][]insights.ExtractionState),
		statusCalls: make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// NewClient returns an insights.Client pointed at the server.
func (s *Server) NewClient(t testing.TB, opts ...insights.Option) *insights.Client {
	t.Helper()
	opts = append([]insights.Option{insights.WithHTTPClient(s.Server.Client())}, opts...)
	client, err := insights.New(s.URL, insights.StaticToken("Bearer test-token"), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return client
}

// Seed stores item under the collection path and returns its id. An id is
// generated when item has none.
func (s *Server) Seed(path string, item map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind := collections[lastSegment(path)]
	if _, ok := item[kind.idField]; !ok {
		item[kind.idField] = s.newID()
	}
	s.items[path] = append(s.items[path], item)
	return fmt.Sprint(item[kind.idField])
}

// Items returns the stored items of a collection path.
func (s *Server) Items(path string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.items[path]...)
}

// Requests counts the requests received as "METHOD lastSegment", for
// example "POST groups", "POST run" or "GET status".
func (s *Server) Requests(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[key]
}

// ScriptExtraction sets the states reported, one per status request, for the
// next runs of iModelID. The last state repeats. Without a script a job
// reports Succeeded.
func (s *Server) ScriptExtraction(iModelID string, states ...insights.ExtractionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[iModelID] = states
}

func (s *Server) newID() string {
	s.nextID++
	return "id-" + strconv.Itoa(s.nextID)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Header.Get("Authorization") == "" {
		writeError(w, http.StatusUnauthorized, "HeaderNotFound", "Authorization header missing")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	key := segments[len(segments)-1]
	if len(segments) >= 2 && segments[len(segments)-2] == "status" {
		key = "status"
	}
	s.requests[r.Method+" "+key]++

	if s.serveExtraction(w, r, segments) {
		return
	}
	if _, ok := collections[segments[len(segments)-1]]; ok {
		s.serveCollection(w, r, path, segments)
		return
	}
	if len(segments) >= 2 {
		if _, ok := collections[segments[len(segments)-2]]; ok {
			s.serveItem(w, r, strings.Join(segments[:len(segments)-1], "/"), segments[len(segments)-1])
			return
		}
	}
	writeError(w, http.StatusNotFound, "NotFound", "no route for "+path)
}

// serveExtraction handles .../iModels/{id}/extraction/run and
// .../extraction/status/{job}.
func (s *Server) serveExtraction(w http.ResponseWriter, r *http.Request, segments []string) bool {
	n := len(segments)
	switch {
	case n >= 2 && segments[n-2] == "extraction" && segments[n-1] == "run" && r.Method == http.MethodPost:
		iModelID := segments[n-3]
		states := s.scripts[iModelID]
		if len(states) == 0 {
			states = []insights.ExtractionState{insights.StateSucceeded}
		}
		job := "job-" + s.newID()
		s.jobs[job] = states
		writeJSON(w, http.StatusCreated, map[string]any{"run": map[string]any{"id": job}})
		return true
	case n >= 3 && segments[n-3] == "extraction" && segments[n-2] == "status" && r.Method == http.MethodGet:
		job := segments[n-1]
		states, ok := s.jobs[job]
		if !ok {
			writeError(w, http.StatusNotFound, "ExtractionStatusNotFound", "unknown job "+job)
			return true
		}
		i := s.statusCalls[job]
		s.statusCalls[job]++
		if i >= len(states) {
			i = len(states) - 1
		}
		reason := ""
		if states[i] == insights.StateFailed {
			reason = "extraction failed"
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": map[string]any{"state": states[i], "reason": reason}})
		return true
	}
	return false
}

func (s *Server) serveCollection(w http.ResponseWriter, r *http.Request, path string, segments []string) {
	kind := collections[segments[len(segments)-1]]
	switch r.Method {
	case http.MethodGet:
		items := s.items["/"+strings.Join(segments, "/")]
		if projectID := r.URL.Query().Get("projectId"); projectID != "" {
			var filtered []map[string]any
			for _, it := range items {
				if it["projectId"] == projectID {
					filtered = append(filtered, it)
				}
			}
			items = filtered
		}
		s.writePage(w, r, kind.listKey, items)
	case http.MethodPost:
		var item map[string]any
		if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "InvalidRequestBody", err.Error())
			return
		}
		switch segments[len(segments)-1] {
		case "reports":
			item["deleted"] = false
		case "iModelMappings":
			item["reportId"] = segments[1]
		}
		if kind.idField == "id" {
			item["id"] = s.newID()
		}
		s.items[path] = append(s.items[path], item)
		writeJSON(w, http.StatusCreated, map[string]any{kind.envelopeKey: item})
	default:
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", r.Method)
	}
}

func (s *Server) serveItem(w http.ResponseWriter, r *http.Request, collection, id string) {
	path := "/" + collection
	kind := collections[lastSegment(collection)]
	items := s.items[path]
	idx := -1
	for i, it := range items {
		if fmt.Sprint(it[kind.idField]) == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		writeError(w, http.StatusNotFound, "NotFound", "no "+kind.envelopeKey+" "+id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{kind.envelopeKey: items[idx]})
	case http.MethodDelete:
		s.items[path] = append(items[:idx:idx], items[idx+1:]...)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPatch, http.MethodPut:
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "InvalidRequestBody", err.Error())
			return
		}
		item := items[idx]
		if r.Method == http.MethodPut {
			item = map[string]any{kind.idField: items[idx][kind.idField]}
		}
		for k, v := range body {
			item[k] = v
		}
		items[idx] = item
		writeJSON(w, http.StatusOK, map[string]any{kind.envelopeKey: item})
	default:
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", r.Method)
	}
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, listKey string, items []map[string]any) {
	if items == nil {
		items = []map[string]any{}
	}
	links := map[string]any{"self": map[string]string{"href": s.URL + r.URL.RequestURI()}}
	if s.PageSize > 0 {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		start := (page - 1) * s.PageSize
		if start > len(items) {
			start = len(items)
		}
		end := start + s.PageSize
		if end < len(items) {
			q := url.Values{}
			for k, v := range r.URL.Query() {
				q[k] = v
			}
			q.Set("page", strconv.Itoa(page+1))
			links["next"] = map[string]string{"href": s.URL + r.URL.Path + "?" + q.Encode()}
		} else {
			end = len(items)
		}
		items = items[start:end]
	}
	writeJSON(w, http.StatusOK, map[string]any{listKey: items, "_links": links})
}

func lastSegment(path string) string {
	path = strings.TrimSuffix(path, "/")
	return path[strings.LastIndex(path, "/")+1:]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"code": code, "message": message}})
}
