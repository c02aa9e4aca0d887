package tinker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bledden/tinker-voice/internal/domain"
)

// DefaultBaseURL is the hosted Tinker API.
const DefaultBaseURL = "https://api.thinkingmachines.ai"

// callTimeout bounds every provider round-trip. The polling loop must never
// hang on a single stuck call.
const callTimeout = 30 * time.Second

// HTTPClient implements Client against the Tinker training API.
// The provider auto-starts jobs on creation, so StartJob is a status fetch.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPClient creates a provider client. baseURL may be empty to use the
// hosted endpoint; tests point it at a local server.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: callTimeout},
	}
}

// ─── Wire Request Shapes ────────────────────────────────────────────────────

type createJobRequest struct {
	Name            string             `json:"name,omitempty"`
	Model           string             `json:"model"`
	TrainingType    string             `json:"training_type"`
	DatasetID       string             `json:"dataset_id"`
	Hyperparameters hyperparameters    `json:"hyperparameters"`
	LoRA            *domain.LoRAConfig `json:"lora_config,omitempty"`
}

type hyperparameters struct {
	LearningRate   float64 `json:"learning_rate"`
	BatchSize      int     `json:"batch_size"`
	NumEpochs      int     `json:"num_epochs"`
	MaxSteps       int     `json:"max_steps,omitempty"`
	WarmupSteps    int     `json:"warmup_steps,omitempty"`
	WeightDecay    float64 `json:"weight_decay,omitempty"`
	GradAccumSteps int     `json:"gradient_accumulation_steps,omitempty"`
}

type listJobsResponse struct {
	Runs    []Job `json:"runs"`
	Total   int   `json:"total"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// trainingType maps a local tier onto the provider's method vocabulary.
func trainingType(tier domain.Tier) string {
	if tier == domain.TierFull {
		return "full"
	}
	return "lora"
}

// ─── Client Implementation ──────────────────────────────────────────────────

func (c *HTTPClient) CreateJob(ctx context.Context, cfg domain.TrainingConfig, name, datasetID string) (*Job, error) {
	req := createJobRequest{
		Name:         name,
		Model:        cfg.BaseModel,
		TrainingType: trainingType(cfg.Tier),
		DatasetID:    datasetID,
		Hyperparameters: hyperparameters{
			LearningRate:   cfg.LearningRate,
			BatchSize:      cfg.BatchSize,
			NumEpochs:      cfg.Epochs,
			MaxSteps:       cfg.MaxSteps,
			WarmupSteps:    cfg.WarmupSteps,
			WeightDecay:    cfg.WeightDecay,
			GradAccumSteps: cfg.GradAccumSteps,
		},
		LoRA: cfg.LoRA,
	}

	var job Job
	if err := c.do(ctx, http.MethodPost, "/v1/training/runs", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// StartJob is a status fetch: the Tinker provider begins training on its own
// once the job is created and validated.
func (c *HTTPClient) StartJob(ctx context.Context, id string) (*Job, error) {
	return c.FetchStatus(ctx, id)
}

func (c *HTTPClient) FetchStatus(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodGet, "/v1/training/runs/"+id, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *HTTPClient) CancelJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodPost, "/v1/training/runs/"+id+"/cancel", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *HTTPClient) ListJobs(ctx context.Context) ([]Job, error) {
	var out listJobsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/training/runs?page=1&per_page=100", nil, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

func (c *HTTPClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/health", nil, nil)
}

// do issues one authenticated request and decodes the JSON response into out
// (when out is non-nil). Provider error bodies are surfaced verbatim.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	if c.apiKey == "" {
		return domain.ErrNoAPIKey
	}

	var reqBody *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", domain.ErrRunNotFound, method, path)
	case resp.StatusCode >= 400:
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = "unknown error"
		}
		return fmt.Errorf("provider error (%d): %s", resp.StatusCode, apiErr.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
