package tinker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bledden/tinker-voice/internal/domain"
)

func testConfig() domain.TrainingConfig {
	return domain.TrainingConfig{
		ID:           "cfg-1",
		BaseModel:    "llama-3.1-8b",
		LearningRate: 2e-5,
		Epochs:       3,
		BatchSize:    4,
		WarmupSteps:  10,
		Tier:         domain.TierLightweightAdapter,
	}
}

func TestHTTPClient_CreateJob(t *testing.T) {
	var gotAuth string
	var gotBody createJobRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/training/runs" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(Job{ID: "ftrun-abc", Status: "validating"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "tk-test")
	job, err := c.CreateJob(context.Background(), testConfig(), "my run", "ds-1")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if job.ID != "ftrun-abc" {
		t.Errorf("job.ID = %q, want ftrun-abc", job.ID)
	}
	if gotAuth != "Bearer tk-test" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotBody.TrainingType != "lora" {
		t.Errorf("training_type = %q, want lora for lightweight-adapter tier", gotBody.TrainingType)
	}
	if gotBody.Hyperparameters.NumEpochs != 3 {
		t.Errorf("num_epochs = %d, want 3", gotBody.Hyperparameters.NumEpochs)
	}
	if gotBody.DatasetID != "ds-1" {
		t.Errorf("dataset_id = %q, want ds-1", gotBody.DatasetID)
	}
}

func TestHTTPClient_FetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/training/runs/ftrun-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		loss := 1.25
		json.NewEncoder(w).Encode(Job{
			ID:     "ftrun-1",
			Status: "running",
			Progress: &JobProgress{
				CurrentStep: 42,
				TotalSteps:  100,
				Loss:        &loss,
			},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "tk-test")
	job, err := c.FetchStatus(context.Background(), "ftrun-1")
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if job.Status != "running" || job.Progress.CurrentStep != 42 {
		t.Errorf("job = %+v, want running at step 42", job)
	}
}

func TestHTTPClient_CancelJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/training/runs/ftrun-1/cancel" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(Job{ID: "ftrun-1", Status: "cancelled"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "tk-test")
	job, err := c.CancelJob(context.Background(), "ftrun-1")
	if err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	if job.Status != "cancelled" {
		t.Errorf("status = %q, want cancelled", job.Status)
	}
}

func TestHTTPClient_ListJobs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(listJobsResponse{
			Runs: []Job{
				{ID: "ftrun-1", Status: "succeeded", ArtifactID: "ft-model-1"},
				{ID: "ftrun-2", Status: "running"},
			},
			Total: 2,
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "tk-test")
	jobs, err := c.ListJobs(context.Background())
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("len(jobs) = %d, want 2", len(jobs))
	}
}

func TestHTTPClient_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "tk-bad")
	_, err := c.FetchStatus(context.Background(), "ftrun-1")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestHTTPClient_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "tk-test")
	_, err := c.FetchStatus(context.Background(), "nope")
	if !errors.Is(err, domain.ErrRunNotFound) {
		t.Errorf("err = %v, want ErrRunNotFound", err)
	}
}

func TestHTTPClient_ProviderErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(apiError{Message: "dataset too small"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "tk-test")
	_, err := c.CreateJob(context.Background(), testConfig(), "", "ds-1")
	if err == nil || !strings.Contains(err.Error(), "dataset too small") {
		t.Errorf("err = %v, want provider message surfaced verbatim", err)
	}
}

func TestHTTPClient_NoAPIKey(t *testing.T) {
	c := NewHTTPClient("http://localhost:0", "")
	_, err := c.FetchStatus(context.Background(), "ftrun-1")
	if !errors.Is(err, domain.ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}
