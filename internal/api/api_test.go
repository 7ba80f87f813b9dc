package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ampli-network/ampli/internal/app/orchestrator"
	"github.com/ampli-network/ampli/internal/collab"
	"github.com/ampli-network/ampli/internal/domain"
	"github.com/ampli-network/ampli/internal/infra/breaker"
	"github.com/ampli-network/ampli/internal/infra/evolution"
	"github.com/ampli-network/ampli/internal/infra/finops"
	"github.com/ampli-network/ampli/internal/infra/idempotency"
	"github.com/ampli-network/ampli/internal/infra/queue"
	"github.com/ampli-network/ampli/internal/infra/rollout"
	"github.com/ampli-network/ampli/internal/infra/slo"
)

type stubCollab struct{ name string }

func (s stubCollab) Name() string { return s.name }
func (s stubCollab) Call(_ context.Context, _ collab.Input) (collab.Output, error) {
	return collab.Output{Signal: 0.5}, nil
}

type serverOpts struct {
	finopsCfg finops.Config
	budgetCfg slo.Config
	rollouts  map[string]int
}

func newTestServer(t *testing.T, opts serverOpts) (*Server, *slo.Tracker) {
	t.Helper()
	if opts.rollouts == nil {
		opts.rollouts = map[string]int{
			rollout.FeatureTasksV2:     100,
			rollout.FeatureSelfCompete: 100,
		}
	}
	estimator := finops.NewEstimator(opts.finopsCfg, nil)
	t.Cleanup(estimator.Close)
	gate := rollout.NewGate(opts.rollouts)
	pipeline := evolution.NewPipeline(evolution.Config{}, gate, nil)
	t.Cleanup(pipeline.Close)
	budget := slo.NewTracker(opts.budgetCfg)

	orch := orchestrator.New(orchestrator.Config{}, orchestrator.Deps{
		Idempotency:  idempotency.NewStore(idempotency.Config{}),
		Estimator:    estimator,
		Budget:       budget,
		Gate:         gate,
		Evolution:    pipeline,
		News:         stubCollab{"news"},
		Share:        stubCollab{"share"},
		NewsBreaker:  breaker.New("news", breaker.Config{}),
		ShareBreaker: breaker.New("share", breaker.Config{}),
		TaskQueue:    queue.New[*domain.Task](queue.Config{}),
		CompQueue:    queue.New[*domain.Competition](queue.Config{}),
	})
	return NewServer(orch), budget
}

func postJSON(t *testing.T, h http.Handler, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return m
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	m := decode(t, rec)
	errObj, ok := m["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error envelope in %q", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

func taskBody() map[string]any {
	return map[string]any{
		"type":        "post",
		"priority":    "medium",
		"description": "launch announcement",
		"platforms":   []string{"twitter"},
	}
}

func TestSubmitTaskAccepted(t *testing.T) {
	s, _ := newTestServer(t, serverOpts{})
	h := s.Handler()

	rec := postJSON(t, h, "/tasks", taskBody(), map[string]string{"Tenant-ID": "acme"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body %s", rec.Code, rec.Body.String())
	}
	m := decode(t, rec)
	if m["status"] != "accepted" {
		t.Errorf("status field = %v, want accepted", m["status"])
	}
	if id, _ := m["id"].(string); id == "" {
		t.Error("no task id in accept response")
	}
}

func TestSubmitTaskMissingTenant(t *testing.T) {
	s, _ := newTestServer(t, serverOpts{})
	rec := postJSON(t, s.Handler(), "/tasks", taskBody(), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if code := errorCode(t, rec); code != "validation_error" {
		t.Errorf("code = %q, want validation_error", code)
	}
}

func TestSubmitTaskMalformedBody(t *testing.T) {
	s, _ := newTestServer(t, serverOpts{})
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSubmitTaskIdempotencyHeader(t *testing.T) {
	s, _ := newTestServer(t, serverOpts{})
	h := s.Handler()
	headers := map[string]string{"Tenant-ID": "acme", "Idempotency-Key": "req-7"}

	first := decode(t, postJSON(t, h, "/tasks", taskBody(), headers))
	second := postJSON(t, h, "/tasks", taskBody(), headers)
	if second.Code != http.StatusAccepted {
		t.Fatalf("replay status = %d, want 202", second.Code)
	}
	replay := decode(t, second)
	if replay["id"] != first["id"] {
		t.Errorf("replay id = %v, want %v", replay["id"], first["id"])
	}
	if replay["idempotent"] != true {
		t.Error("replay not flagged idempotent")
	}
}

func TestSubmitTaskMarginGuardrail(t *testing.T) {
	s, _ := newTestServer(t, serverOpts{
		finopsCfg: finops.Config{MarginMicro: map[string]int64{"acme": 1}},
	})
	rec := postJSON(t, s.Handler(), "/tasks", taskBody(), map[string]string{"Tenant-ID": "acme"})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
	if code := errorCode(t, rec); code != "margin_guardrail" {
		t.Errorf("code = %q, want margin_guardrail", code)
	}
}

func TestSubmitTaskBudgetExhausted(t *testing.T) {
	s, budget := newTestServer(t, serverOpts{budgetCfg: slo.Config{AllottedBudget: 1}})
	budget.RecordOutcome(true)

	rec := postJSON(t, s.Handler(), "/tasks", taskBody(), map[string]string{"Tenant-ID": "acme"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if code := errorCode(t, rec); code != "budget_exhausted" {
		t.Errorf("code = %q, want budget_exhausted", code)
	}
}

func TestSubmitTaskFeatureUnavailable(t *testing.T) {
	s, _ := newTestServer(t, serverOpts{rollouts: map[string]int{
		rollout.FeatureTasksV2: 0,
	}})
	rec := postJSON(t, s.Handler(), "/tasks", taskBody(), map[string]string{"Tenant-ID": "acme"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if code := errorCode(t, rec); code != "feature_unavailable" {
		t.Errorf("code = %q, want feature_unavailable", code)
	}
}

func TestSubmitCompetitionAndFetch(t *testing.T) {
	s, _ := newTestServer(t, serverOpts{})
	h := s.Handler()

	rec := postJSON(t, h, "/self-compete", map[string]any{
		"content":   "launch announcement",
		"platforms": []string{"twitter"},
		"priority":  "high",
	}, map[string]string{"Tenant-ID": "acme"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body %s", rec.Code, rec.Body.String())
	}
	id, _ := decode(t, rec)["id"].(string)
	if id == "" {
		t.Fatal("no competition id")
	}

	get := httptest.NewRequest(http.MethodGet, "/self-compete/"+id, nil)
	getRec := httptest.NewRecorder()
	h.ServeHTTP(getRec, get)
	if getRec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", getRec.Code)
	}
	m := decode(t, getRec)
	comp, ok := m["competition"].(map[string]any)
	if !ok {
		t.Fatalf("no competition in %q", getRec.Body.String())
	}
	if comp["status"] != string(domain.CompetitionQueued) {
		t.Errorf("status = %v, want QUEUED before workers run", comp["status"])
	}
}

func TestGetCompetitionNotFound(t *testing.T) {
	s, _ := newTestServer(t, serverOpts{})
	req := httptest.NewRequest(http.MethodGet, "/self-compete/comp-missing", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if code := errorCode(t, rec); code != "not_found" {
		t.Errorf("code = %q, want not_found", code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	s, _ := newTestServer(t, serverOpts{})
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	m := decode(t, rec)
	if _, ok := m["slo"]; !ok {
		t.Errorf("status payload missing slo section: %q", rec.Body.String())
	}
	if _, ok := m["cost"]; !ok {
		t.Errorf("status payload missing cost section: %q", rec.Body.String())
	}
}

func TestHealthWithoutChecker(t *testing.T) {
	s, _ := newTestServer(t, serverOpts{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMetricsEndpointGated(t *testing.T) {
	s, _ := newTestServer(t, serverOpts{})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("disabled metrics status = %d, want 404", rec.Code)
	}

	s.EnableMetrics()
	rec2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec2.Code != http.StatusOK {
		t.Fatalf("enabled metrics status = %d, want 200", rec2.Code)
	}
}
