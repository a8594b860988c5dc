package callrecord

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestRecordHandler(t *testing.T) (*Handler, *Store) {
	t.Helper()
	store := setupTestStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(store, logger), store
}

func TestRecordHandler_RegisterRoutes(t *testing.T) {
	h, _ := newTestRecordHandler(t)
	e := echo.New()
	h.RegisterRoutes(e.Group("/records"))

	registered := make(map[string]bool)
	for _, r := range e.Routes() {
		registered[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{"GET /records", "GET /records/:id"} {
		if !registered[want] {
			t.Errorf("route %s not registered", want)
		}
	}
}

func TestRecordHandler_List_Open(t *testing.T) {
	h, store := newTestRecordHandler(t)
	ctx := context.Background()

	if _, err := store.Open(ctx, "call-a", "t1", "google"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Open(ctx, "call-b", "t1", "google"); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(ctx, "call-a"); err != nil {
		t.Fatal(err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/records", nil)
	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("List failed: %v", err)
	}

	var resp ListRecordsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Total != 1 || resp.Records[0].CallID != "call-b" {
		t.Errorf("response = %+v, want the one still-open record", resp)
	}
}

func TestRecordHandler_List_ByTenant(t *testing.T) {
	h, store := newTestRecordHandler(t)
	ctx := context.Background()

	for _, call := range []string{"c1", "c2", "c3"} {
		if _, err := store.Open(ctx, call, "tenant-x", "voice_ai"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := store.Open(ctx, "c4", "tenant-y", "voice_ai"); err != nil {
		t.Fatal(err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/records?tenant_uuid=tenant-x&limit=2", nil)
	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("List failed: %v", err)
	}

	var resp ListRecordsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2 (limit applied)", resp.Total)
	}
	for _, r := range resp.Records {
		if r.TenantUUID != "tenant-x" {
			t.Errorf("wrong tenant in %+v", r)
		}
	}
}

func TestRecordHandler_Get(t *testing.T) {
	h, store := newTestRecordHandler(t)
	opened, err := store.Open(context.Background(), "call-1", "t1", "google")
	if err != nil {
		t.Fatal(err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/records/"+opened.ID, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(opened.ID)
	if err := h.Get(c); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	var got CallRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if got.ID != opened.ID || got.CallID != "call-1" {
		t.Errorf("record = %+v", got)
	}
}

func TestRecordHandler_Get_NotFound(t *testing.T) {
	h, _ := newTestRecordHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/records/missing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("missing")

	err := h.Get(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("err = %v, want 404", err)
	}
}
