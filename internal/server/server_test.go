package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	core "github.com/mohammad-safakhou/techbrief/internal/agent/core"
	"github.com/mohammad-safakhou/techbrief/internal/store"
	"github.com/mohammad-safakhou/techbrief/session/inmemory"
)

type fakeComparer struct {
	result   core.ComparisonResult
	err      error
	gotRunID string
	gotQuery string
	inFlight map[string]core.ProcessingStatus
}

func (f *fakeComparer) RunComparisonWithID(_ context.Context, runID, query string) (core.ComparisonResult, error) {
	f.gotRunID, f.gotQuery = runID, query
	return f.result, f.err
}

func (f *fakeComparer) Status(runID string) (core.ProcessingStatus, bool) {
	s, ok := f.inFlight[runID]
	return s, ok
}

func (f *fakeComparer) InFlight() []core.ProcessingStatus {
	out := []core.ProcessingStatus{}
	for _, s := range f.inFlight {
		out = append(out, s)
	}
	return out
}

func newHistory(t *testing.T) *store.IndexedStore {
	t.Helper()
	h, err := store.NewIndexedStore(context.Background(), store.NewMemoryStore(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewIndexedStore: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func newTestServer(t *testing.T, cmp Comparer) (*echo.Echo, *store.IndexedStore) {
	t.Helper()
	h := newHistory(t)
	e := New(Options{Comparer: cmp, History: h, Shares: inmemory.NewInMemoryShareStore(), RecentLimit: 2})
	return e, h
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body["error"]
}

func TestCompareReturnsBrief(t *testing.T) {
	c := core.NewComparisonContext("Firebase vs Supabase")
	c.OptionA, c.OptionB, c.TechCategory = "Firebase", "Supabase", core.CategoryDatabase
	cmp := &fakeComparer{result: core.ComparisonResult{
		ID:           "run-1",
		Query:        "Firebase vs Supabase",
		Brief:        "Pick Supabase.",
		Verdict:      core.Verdict{Winner: "Supabase", Side: "b", Rule: core.RuleCost},
		ValueMetrics: core.ValueMetrics{MoneySaved: 840},
		Context:      c,
	}}
	e, _ := newTestServer(t, cmp)

	rec := do(e, http.MethodPost, "/api/compare", `{"query":"Firebase vs Supabase","run_id":"abc"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if cmp.gotRunID != "abc" || cmp.gotQuery != "Firebase vs Supabase" {
		t.Fatalf("comparer called with %q %q", cmp.gotRunID, cmp.gotQuery)
	}
	var resp compareResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Winner != "Supabase" || resp.ValueMetrics.MoneySaved != 840 || resp.OptionB != "Supabase" || resp.Category != core.CategoryDatabase {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Degraded == nil {
		t.Fatalf("degraded should be an empty list, not null")
	}
}

func TestCompareErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		body string
		err  error
		code int
	}{
		{"blank query", `{"query":"   "}`, nil, http.StatusBadRequest},
		{"bad json", `{"query":`, nil, http.StatusBadRequest},
		{"empty query from pipeline", `{"query":"x"}`, core.ErrEmptyQuery, http.StatusBadRequest},
		{"synthesis failed", `{"query":"a vs b"}`, fmt.Errorf("%w: both providers down", core.ErrSynthesisFailed), http.StatusBadGateway},
		{"busy run id", `{"query":"a vs b","run_id":"busy"}`, fmt.Errorf("%w: busy", core.ErrRunInFlight), http.StatusConflict},
		{"deadline", `{"query":"a vs b"}`, context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", `{"query":"a vs b"}`, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, _ := newTestServer(t, &fakeComparer{err: tc.err})
			rec := do(e, http.MethodPost, "/api/compare", tc.body)
			if rec.Code != tc.code {
				t.Fatalf("expected %d got %d: %s", tc.code, rec.Code, rec.Body.String())
			}
			if errorMessage(t, rec) == "" {
				t.Fatalf("error body missing message: %s", rec.Body.String())
			}
		})
	}
}

// gatedProvider holds every call until release is closed.
type gatedProvider struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *gatedProvider) Name() string    { return "gated" }
func (p *gatedProvider) Available() bool { return true }

func (p *gatedProvider) Complete(ctx context.Context, _ core.Prompt) (core.Completion, error) {
	p.once.Do(func() { close(p.entered) })
	select {
	case <-p.release:
		return core.Completion{}, errors.New("released")
	case <-ctx.Done():
		return core.Completion{}, ctx.Err()
	}
}

func TestCompareRejectsBusyRunID(t *testing.T) {
	gp := &gatedProvider{entered: make(chan struct{}), release: make(chan struct{})}
	gw := core.NewGateway(map[string]core.Provider{"gated": gp}, map[string]string{core.PurposeContext: "gated"}, nil, nil)
	e, _ := newTestServer(t, core.NewPipeline(gw))

	first := make(chan int, 1)
	go func() {
		first <- do(e, http.MethodPost, "/api/compare", `{"query":"Go vs Rust","run_id":"busy"}`).Code
	}()
	select {
	case <-gp.entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("first run never reached the provider")
	}

	rec := do(e, http.MethodPost, "/api/compare", `{"query":"Go vs Rust","run_id":"busy"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d: %s", rec.Code, rec.Body.String())
	}

	close(gp.release)
	if code := <-first; code != http.StatusOK {
		t.Fatalf("first run should finish, got %d", code)
	}
}

func TestRunStatus(t *testing.T) {
	cmp := &fakeComparer{inFlight: map[string]core.ProcessingStatus{"r1": {RunID: "r1", Phase: core.PhaseSynthesize, Progress: 0.8}}}
	e, _ := newTestServer(t, cmp)

	rec := do(e, http.MethodGet, "/api/runs/r1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var st core.ProcessingStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Phase != core.PhaseSynthesize {
		t.Fatalf("unexpected status %+v", st)
	}
	if rec := do(e, http.MethodGet, "/api/runs/missing/status", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestCatalogAndHealth(t *testing.T) {
	e := New(Options{})
	rec := do(e, http.MethodGet, "/api/catalog", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var body struct {
		Categories []core.CategoryInfo `json:"categories"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Categories) == 0 {
		t.Fatalf("catalog is empty")
	}
	if rec := do(e, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodGet, "/api/openapi.yaml", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/api/compare") {
		t.Fatalf("openapi doc not served: %d", rec.Code)
	}
}

func TestHistoryRoutes(t *testing.T) {
	e, _ := newTestServer(t, &fakeComparer{})

	rec := do(e, http.MethodPost, "/api/history", `{"query":"Postgres vs MongoDB","left":"Postgres","right":"MongoDB","winner":"Postgres","metrics":{"money_saved":120},"evidence":["schema drift"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var saved store.Decision
	if err := json.Unmarshal(rec.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if saved.ID == "" || saved.Timestamp == 0 || saved.Confidence != "medium" {
		t.Fatalf("decision not normalized: %+v", saved)
	}

	rec = do(e, http.MethodGet, "/api/history", "")
	var list struct {
		Items []store.Decision `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list.Items) != 1 {
		t.Fatalf("list: %v %+v", err, list)
	}

	rec = do(e, http.MethodGet, "/api/history/search?q=mongodb", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list.Items) != 1 || list.Items[0].ID != saved.ID {
		t.Fatalf("search: %v %s", err, rec.Body.String())
	}
	if rec := do(e, http.MethodGet, "/api/history/search", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("search without q should be 400, got %d", rec.Code)
	}

	if rec := do(e, http.MethodGet, "/api/history/"+saved.ID, ""); rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	if rec := do(e, http.MethodDelete, "/api/history/"+saved.ID, ""); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	rec = do(e, http.MethodGet, "/api/history/"+saved.ID, "")
	if rec.Code != http.StatusNotFound || errorMessage(t, rec) != "decision not found" {
		t.Fatalf("get after delete: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodDelete, "/api/history/"+saved.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d", rec.Code)
	}
}

func TestShareRoutes(t *testing.T) {
	e, _ := newTestServer(t, &fakeComparer{})

	if rec := do(e, http.MethodPost, "/api/share", `{"query":"a vs b"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("share without brief should be 400, got %d", rec.Code)
	}

	ids := make([]string, 0, 3)
	for _, q := range []string{"Go vs Rust", "Vue vs React", "Redis vs Memcached"} {
		rec := do(e, http.MethodPost, "/api/share", fmt.Sprintf(`{"query":%q,"brief":"brief","winner":"x"}`, q))
		if rec.Code != http.StatusCreated {
			t.Fatalf("share: %d %s", rec.Code, rec.Body.String())
		}
		var body struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.ID) != 8 || body.URL != "/share/"+body.ID {
			t.Fatalf("unexpected share body %+v", body)
		}
		ids = append(ids, body.ID)
	}

	for i := 0; i < 2; i++ {
		if rec := do(e, http.MethodGet, "/api/share/"+ids[0], ""); rec.Code != http.StatusOK {
			t.Fatalf("get share: %d", rec.Code)
		}
	}
	if rec := do(e, http.MethodGet, "/api/share/nothere", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing share should be 404, got %d", rec.Code)
	}

	rec := do(e, http.MethodGet, "/api/share/stats", "")
	var stats struct {
		TotalComparisons int `json:"total_comparisons"`
		TotalViews       int `json:"total_views"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.TotalComparisons != 3 || stats.TotalViews != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	rec = do(e, http.MethodGet, "/api/share/recent", "")
	var recent struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &recent); err != nil || len(recent.Items) != 2 {
		t.Fatalf("recent should honour the configured limit: %v %s", err, rec.Body.String())
	}
	rec = do(e, http.MethodGet, "/api/share/recent?limit=3", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &recent); err != nil || len(recent.Items) != 3 {
		t.Fatalf("recent?limit=3: %v %s", err, rec.Body.String())
	}
	if rec := do(e, http.MethodGet, "/api/share/recent?limit=-1", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("negative limit should be 400, got %d", rec.Code)
	}
}

func TestOpsUsage(t *testing.T) {
	cmp := &fakeComparer{inFlight: map[string]core.ProcessingStatus{"r1": {RunID: "r1"}}}
	e, _ := newTestServer(t, cmp)
	rec := do(e, http.MethodGet, "/api/ops/usage", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("usage: %d", rec.Code)
	}
	var body usagePayload
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.InFlight) != 1 || body.Budget.MaxCost != nil {
		t.Fatalf("unexpected usage %+v", body)
	}
	rec = do(e, http.MethodGet, "/api/ops/dashboard", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Operations Dashboard") {
		t.Fatalf("dashboard: %d", rec.Code)
	}
}

// An offline pipeline runs end to end over HTTP and lands in history.
func TestCompareOfflineRecordsHistory(t *testing.T) {
	history := newHistory(t)
	p := core.NewPipeline(core.NewGateway(nil, nil, nil, nil), core.WithRecorder(store.Recorder{Store: history}))
	e := New(Options{Comparer: p, History: history})

	rec := do(e, http.MethodPost, "/api/compare", `{"query":"Go vs Rust"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("compare: %d %s", rec.Code, rec.Body.String())
	}
	var resp compareResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Winner != "Rust" || resp.Brief == "" || len(resp.SliderData.UserLevels) != 3 {
		t.Fatalf("unexpected offline response %+v", resp)
	}

	rec = do(e, http.MethodGet, "/api/history/"+resp.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("recorded decision missing: %d", rec.Code)
	}
	var d store.Decision
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Winner != "Rust" || d.Left != "Go" || d.Right != "Rust" {
		t.Fatalf("unexpected decision %+v", d)
	}
}
