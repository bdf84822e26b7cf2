package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestClient(t *testing.T, server *httptest.Server, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithHTTPClient(server.Client())}, opts...)
	client, err := New(server.URL, StaticToken("Bearer test-token"), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return client
}

// pagedGroups serves n pages of two groups each under /groups?page=i.
func pagedGroups(t *testing.T, n int, lastNext string, hits *int32) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method %s", r.Method)
		}
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			fmt.Sscanf(p, "%d", &page)
		}
		links := map[string]any{"self": map[string]string{"href": server.URL + r.URL.String()}}
		switch {
		case page < n:
			links["next"] = map[string]string{"href": fmt.Sprintf("%s/groups?page=%d", server.URL, page+1)}
		case lastNext == "null":
			links["next"] = nil
		}
		json.NewEncoder(w).Encode(map[string]any{
			"groups": []Group{
				{ID: fmt.Sprintf("g-%d-a", page), GroupName: "A"},
				{ID: fmt.Sprintf("g-%d-b", page), GroupName: "B"},
			},
			"_links": links,
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGetAll_ConcatenatesPagesInOrder(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("%d pages", n), func(t *testing.T) {
			var hits int32
			server := pagedGroups(t, n, "", &hits)
			res := NewResource[Group, GroupCreate, GroupUpdate](newTestClient(t, server), "group", "groups")

			got, err := res.GetAll(context.Background(), res.At(), "groups")
			if err != nil {
				t.Fatalf("GetAll: %v", err)
			}

			var want []string
			for p := 1; p <= n; p++ {
				want = append(want, fmt.Sprintf("g-%d-a", p), fmt.Sprintf("g-%d-b", p))
			}
			var ids []string
			for _, g := range got {
				ids = append(ids, g.ID)
			}
			if diff := cmp.Diff(want, ids); diff != "" {
				t.Errorf("ids (-want +got):\n%s", diff)
			}
			if int(hits) != n {
				t.Errorf("expected %d requests, got %d", n, hits)
			}
		})
	}
}

func TestGetAll_StopsOnNullNext(t *testing.T) {
	var hits int32
	server := pagedGroups(t, 3, "null", &hits)
	res := NewResource[Group, GroupCreate, GroupUpdate](newTestClient(t, server), "group", "groups")

	got, err := res.GetAll(context.Background(), res.At(), "groups")
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(got) != 6 || hits != 3 {
		t.Errorf("expected 6 groups in 3 requests, got %d in %d", len(got), hits)
	}
}

func TestGetAll_EmptyList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"groups": [], "_links": {"self": {"href": "x"}}}`))
	}))
	defer server.Close()

	res := NewResource[Group, GroupCreate, GroupUpdate](newTestClient(t, server), "group", "groups")
	got, err := res.GetAll(context.Background(), res.At(), "groups")
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestGetAll_MissingResultKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"mappings": []}`))
	}))
	defer server.Close()

	res := NewResource[Group, GroupCreate, GroupUpdate](newTestClient(t, server), "group", "groups")
	_, err := res.GetAll(context.Background(), res.At(), "groups")
	if !IsInvalidResponse(err) {
		t.Errorf("expected InvalidResponseError, got %v", err)
	}
}

func TestGetAll_DetectsCycle(t *testing.T) {
	var hits int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		next := server.URL + "/groups?page=2"
		if r.URL.Query().Get("page") == "2" {
			next = server.URL + "/groups"
		}
		json.NewEncoder(w).Encode(map[string]any{
			"groups": []Group{{ID: "g"}},
			"_links": map[string]any{"next": map[string]string{"href": next}},
		})
	}))
	defer server.Close()

	res := NewResource[Group, GroupCreate, GroupUpdate](newTestClient(t, server), "group", "groups")
	_, err := res.GetAll(context.Background(), res.At(), "groups")
	var pErr *PaginationError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected PaginationError, got %v", err)
	}
	if pErr.Pages != 2 || hits != 2 {
		t.Errorf("expected stop after 2 pages, got pages=%d hits=%d", pErr.Pages, hits)
	}
}

func TestGetAll_MaxPages(t *testing.T) {
	var hits int32
	server := pagedGroups(t, 10, "", &hits)
	res := NewResource[Group, GroupCreate, GroupUpdate](newTestClient(t, server, WithMaxPages(3)), "group", "groups")

	_, err := res.GetAll(context.Background(), res.At(), "groups")
	var pErr *PaginationError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected PaginationError, got %v", err)
	}
	if hits != 3 {
		t.Errorf("expected 3 requests before the limit, got %d", hits)
	}
}

func TestGetAll_ErrorOnSecondPage(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"groups": []Group{{ID: "g"}},
			"_links": map[string]any{"next": map[string]string{"href": server.URL + "/groups?page=2"}},
		})
	}))
	defer server.Close()

	res := NewResource[Group, GroupCreate, GroupUpdate](newTestClient(t, server), "group", "groups")
	got, err := res.GetAll(context.Background(), res.At(), "groups")
	if !HasStatusCode(err, http.StatusInternalServerError) {
		t.Fatalf("expected HTTP 500 error, got %v", err)
	}
	if got != nil {
		t.Errorf("expected no partial result, got %+v", got)
	}
}

func TestResource_Verbs(t *testing.T) {
	type call struct {
		Method string
		Path   string
		Body   string
	}
	var calls []call
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		raw, _ := json.Marshal(body)
		calls = append(calls, call{Method: r.Method, Path: r.URL.Path, Body: string(raw)})
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"group": Group{ID: "g-1", GroupName: "Walls", Query: "SELECT 1"}})
	}))
	defer server.Close()

	client := newTestClient(t, server)
	groups := client.Groups("im 1", "m-1")
	ctx := context.Background()

	name := "Walls"
	if _, err := groups.Get(ctx, "g-1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	created, err := groups.Create(ctx, GroupCreate{GroupName: "Walls", Query: "SELECT 1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID != "g-1" || created.Query != "SELECT 1" {
		t.Errorf("unexpected group: %+v", created)
	}
	if _, err := groups.Update(ctx, "g-1", GroupUpdate{GroupName: &name}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := groups.Delete(ctx, "g-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	base := "/datasources/iModels/im 1/mappings/m-1/groups"
	want := []call{
		{http.MethodGet, base + "/g-1", "null"},
		{http.MethodPost, base, `{"groupName":"Walls","query":"SELECT 1"}`},
		{http.MethodPatch, base + "/g-1", `{"groupName":"Walls"}`},
		{http.MethodDelete, base + "/g-1", "null"},
	}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("calls (-want +got):\n%s", diff)
	}
}

func TestResource_PutReplaces(t *testing.T) {
	var method, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{"property": GroupProperty{ID: "p-1", PropertyName: "Yaw"}})
	}))
	defer server.Close()

	client := newTestClient(t, server)
	scope := PropertyScope{IModelID: "im", MappingID: "m", GroupID: "g"}
	got, err := client.GroupProperties(scope).Update(context.Background(), "p-1", GroupPropertyParams{PropertyName: "Yaw"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if method != http.MethodPut || path != "/datasources/iModels/im/mappings/m/groups/g/properties/p-1" {
		t.Errorf("unexpected request %s %s", method, path)
	}
	if got.PropertyName != "Yaw" {
		t.Errorf("unexpected property: %+v", got)
	}
}

func TestResource_SingleEntityRejectsUnknownEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"widget": {"id": "w"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).Reports().Get(context.Background(), "r-1")
	if !IsInvalidResponse(err) {
		t.Fatalf("expected InvalidResponseError, got %v", err)
	}
	if got := err.Error(); got != "get report: invalid response: no recognized entity key" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestReports_ListQuery(t *testing.T) {
	var rawQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]any{
			"reports": []Report{{ID: "r-1", DisplayName: "Quantities"}},
			"_links":  map[string]any{"next": nil},
		})
	}))
	defer server.Close()

	reports, err := newTestClient(t, server).Reports().List(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if rawQuery != "projectId=proj-1" {
		t.Errorf("unexpected query %q", rawQuery)
	}
	if len(reports) != 1 || reports[0].DisplayName != "Quantities" {
		t.Errorf("unexpected reports: %+v", reports)
	}
}
