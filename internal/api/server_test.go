package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bledden/tinker-voice/internal/domain"
	"github.com/bledden/tinker-voice/internal/orchestrator"
	"github.com/bledden/tinker-voice/internal/tinker"
)

type memStore struct {
	runs     []domain.TrainingRun
	activeID string
}

func (s *memStore) Load() ([]domain.TrainingRun, string, error) { return s.runs, s.activeID, nil }
func (s *memStore) Save(runs []domain.TrainingRun, activeID string) error {
	s.runs, s.activeID = runs, activeID
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *tinker.Mock) {
	t.Helper()
	mock := tinker.NewMock()
	orch, err := orchestrator.New(orchestrator.Config{PollInterval: 10 * time.Millisecond}, mock, &memStore{}, zap.NewNop())
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	t.Cleanup(orch.Close)

	srv := NewServer(orch, mock, zap.NewNop())
	srv.EnableMetrics()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, mock
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func createRunBody() map[string]interface{} {
	return map[string]interface{}{
		"name":         "voice-tune",
		"dataset_id":   "ds-1",
		"dataset_size": 250,
		"config": map[string]interface{}{
			"base_model":    "qwen2.5-3b",
			"learning_rate": 2e-5,
			"epochs":        3,
			"batch_size":    4,
			"tier":          "lightweight-adapter",
		},
	}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	var body map[string]string
	decode(t, resp, &body)
	if body["status"] != "ok" || body["provider"] != "ok" {
		t.Fatalf("health = %v", body)
	}
}

func TestCreateAndGetRun(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/runs", createRunBody())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var run domain.TrainingRun
	decode(t, resp, &run)
	if run.Status != domain.StatusPending {
		t.Fatalf("status = %s, want pending", run.Status)
	}
	// dataset_size in the request annotates the config with estimates.
	if run.Config.EstimatedCost == 0 || run.Config.EstimatedDuration == "" {
		t.Fatal("create did not annotate cost/duration estimates")
	}

	resp, err := http.Get(ts.URL + "/v1/runs/" + run.ID)
	if err != nil {
		t.Fatalf("GET run: %v", err)
	}
	var got domain.TrainingRun
	decode(t, resp, &got)
	if got.ID != run.ID {
		t.Fatalf("got run %s, want %s", got.ID, run.ID)
	}
}

func TestCreateRunRejectsIncompleteConfig(t *testing.T) {
	ts, _ := newTestServer(t)

	body := createRunBody()
	body["dataset_id"] = ""
	resp := postJSON(t, ts.URL+"/v1/runs", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetRunNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/runs/nope")
	if err != nil {
		t.Fatalf("GET run: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStartAndCancelRun(t *testing.T) {
	ts, _ := newTestServer(t)

	var run domain.TrainingRun
	decode(t, postJSON(t, ts.URL+"/v1/runs", createRunBody()), &run)

	resp := postJSON(t, ts.URL+"/v1/runs/"+run.ID+"/start", nil)
	var started domain.TrainingRun
	decode(t, resp, &started)
	if started.Status != domain.StatusRunning {
		t.Fatalf("status = %s, want running", started.Status)
	}

	resp = postJSON(t, ts.URL+"/v1/runs/"+run.ID+"/cancel", nil)
	var cancelled domain.TrainingRun
	decode(t, resp, &cancelled)
	if cancelled.Status != domain.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}

	// Cancelling a terminal run is a conflict.
	resp = postJSON(t, ts.URL+"/v1/runs/"+run.ID+"/cancel", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second cancel status = %d, want 409", resp.StatusCode)
	}
}

func TestActiveRunRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t)

	var run domain.TrainingRun
	decode(t, postJSON(t, ts.URL+"/v1/runs", createRunBody()), &run)

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/v1/runs/active",
		strings.NewReader(fmt.Sprintf(`{"id":%q}`, run.ID)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT active: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT active status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/v1/runs/active")
	if err != nil {
		t.Fatalf("GET active: %v", err)
	}
	var body struct {
		Run *domain.TrainingRun `json:"run"`
	}
	decode(t, resp, &body)
	if body.Run == nil || body.Run.ID != run.ID {
		t.Fatalf("active run = %v, want %s", body.Run, run.ID)
	}
}

func TestRefreshRuns(t *testing.T) {
	ts, mock := newTestServer(t)

	var run domain.TrainingRun
	decode(t, postJSON(t, ts.URL+"/v1/runs", createRunBody()), &run)
	mock.SetJobStatus(run.ID, "succeeded", "", "ft-model-x")

	resp := postJSON(t, ts.URL+"/v1/runs/refresh", nil)
	var body struct {
		Runs []domain.TrainingRun `json:"runs"`
	}
	decode(t, resp, &body)
	if len(body.Runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(body.Runs))
	}
	if body.Runs[0].Status != domain.StatusCompleted || body.Runs[0].ArtifactID != "ft-model-x" {
		t.Fatalf("refreshed run = %+v", body.Runs[0])
	}
}

func TestEstimate(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/estimate", map[string]interface{}{
		"dataset_size": 250,
		"epochs":       3,
		"tier":         "lightweight-adapter",
	})
	var sum struct {
		Cost     float64 `json:"cost"`
		Duration string  `json:"duration"`
	}
	decode(t, resp, &sum)
	// 250 examples x 200 tokens x 3 epochs = 150k tokens at $0.0005/1k.
	if sum.Cost != 0.075 {
		t.Fatalf("cost = %v, want 0.075", sum.Cost)
	}
	if sum.Duration == "" {
		t.Fatal("missing human-readable duration")
	}

	resp = postJSON(t, ts.URL+"/v1/estimate", map[string]interface{}{
		"dataset_size": -1, "epochs": 3, "tier": "full",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestEventsStreamDeliversRunEvents(t *testing.T) {
	ts, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /v1/events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	decode(t, postJSON(t, ts.URL+"/v1/runs", createRunBody()), &domain.TrainingRun{})

	buf := make([]byte, 4096)
	deadline := time.Now().Add(5 * time.Second)
	var got string
	for time.Now().Before(deadline) {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			got += string(buf[:n])
			if strings.Contains(got, "event: run.created") && strings.Contains(got, "data: ") {
				return
			}
		}
		if err != nil {
			break
		}
	}
	t.Fatalf("no run.created event on stream, got %q", got)
}
