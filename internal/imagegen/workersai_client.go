package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultWorkersAIBaseURL = "https://api.cloudflare.com/client/v4"
	DefaultWorkersAIModel   = "@cf/black-forest-labs/flux-1-schnell"
)

type WorkersAIOptions struct {
	BaseURL    string
	AccountID  string
	APIToken   string
	Model      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// WorkersAIClient runs text-to-image models on the Workers AI REST API.
type WorkersAIClient struct {
	httpClient *http.Client
	baseURL    string
	accountID  string
	token      string
	model      string
}

func NewWorkersAIClient(opts WorkersAIOptions) *WorkersAIClient {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultWorkersAIBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultWorkersAIModel
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 90 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &WorkersAIClient{
		httpClient: client,
		baseURL:    base,
		accountID:  strings.TrimSpace(opts.AccountID),
		token:      strings.TrimSpace(opts.APIToken),
		model:      model,
	}
}

func (c *WorkersAIClient) Model() string {
	return c.model
}

type workersAIRequest struct {
	Prompt string `json:"prompt"`
	Steps  int    `json:"steps"`
}

type workersAIMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type workersAIResponse struct {
	Result struct {
		Image string `json:"image"`
	} `json:"result"`
	Success *bool              `json:"success"`
	Errors  []workersAIMessage `json:"errors"`
}

// Generate runs one inference. JSON answers carry a base64 image and come
// back as EncodedText; binary answers are handed over as a Stream over the
// response body, which the caller must close (Payload.Normalize does).
func (c *WorkersAIClient) Generate(ctx context.Context, prompt string, steps int) (Payload, error) {
	if c == nil {
		return Payload{}, errors.New("workersai client not configured")
	}
	if c.token == "" || c.accountID == "" {
		return Payload{}, errors.New("workersai: account id and api token are required")
	}
	body, err := json.Marshal(workersAIRequest{Prompt: prompt, Steps: steps})
	if err != nil {
		return Payload{}, err
	}
	endpoint := fmt.Sprintf("%s/accounts/%s/ai/run/%s", c.baseURL, c.accountID, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Payload{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Payload{}, fmt.Errorf("workersai: %w", err)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if resp.StatusCode < http.StatusBadRequest && strings.HasPrefix(contentType, "image/") {
		return Stream(resp.Body), nil
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	var out workersAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return Payload{}, fmt.Errorf("workersai: http %d", resp.StatusCode)
		}
		return Payload{}, fmt.Errorf("workersai: decode response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest || (out.Success != nil && !*out.Success) {
		if len(out.Errors) > 0 {
			return Payload{}, fmt.Errorf("workersai error: %s (%d)", out.Errors[0].Message, out.Errors[0].Code)
		}
		return Payload{}, fmt.Errorf("workersai: http %d", resp.StatusCode)
	}
	if strings.TrimSpace(out.Result.Image) == "" {
		return Payload{}, ErrNoImageData
	}
	return EncodedText(out.Result.Image), nil
}

var _ Generator = (*WorkersAIClient)(nil)
