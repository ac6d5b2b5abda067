package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestWorkersAIClientJSONResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("unexpected auth header: %s", got)
		}
		if r.URL.Path != "/accounts/acc-1/ai/run/@cf/test/model" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var payload workersAIRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if payload.Prompt != "a red cube" || payload.Steps != 4 {
			t.Fatalf("unexpected payload: %+v", payload)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"result":  map[string]string{"image": base64.StdEncoding.EncodeToString(pngHeader)},
		})
	}))
	defer ts.Close()

	client := NewWorkersAIClient(WorkersAIOptions{BaseURL: ts.URL, AccountID: "acc-1", APIToken: "test-token", Model: "@cf/test/model"})
	payload, err := client.Generate(context.Background(), "a red cube", 4)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if payload.Kind != KindEncodedText {
		t.Fatalf("unexpected kind: %s", payload.Kind)
	}
	img, err := payload.Normalize(context.Background())
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if !bytes.Equal(img.Data, pngHeader) {
		t.Fatalf("image bytes mismatch")
	}
}

func TestWorkersAIClientBinaryResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngHeader)
	}))
	defer ts.Close()

	client := NewWorkersAIClient(WorkersAIOptions{BaseURL: ts.URL, AccountID: "acc", APIToken: "tok"})
	payload, err := client.Generate(context.Background(), "x", 1)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if payload.Kind != KindStream {
		t.Fatalf("unexpected kind: %s", payload.Kind)
	}
	img, err := payload.Normalize(context.Background())
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if !bytes.Equal(img.Data, pngHeader) {
		t.Fatalf("image bytes mismatch")
	}
}

func TestWorkersAIClientErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"errors":  []map[string]any{{"code": 5006, "message": "bad input"}},
		})
	}))
	defer ts.Close()

	client := NewWorkersAIClient(WorkersAIOptions{BaseURL: ts.URL, AccountID: "acc", APIToken: "tok"})
	if _, err := client.Generate(context.Background(), "x", 1); err == nil {
		t.Fatalf("expected error for failed response")
	}
}

func TestWorkersAIClientMissingImage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"result":{}}`))
	}))
	defer ts.Close()

	client := NewWorkersAIClient(WorkersAIOptions{BaseURL: ts.URL, AccountID: "acc", APIToken: "tok"})
	if _, err := client.Generate(context.Background(), "x", 1); err != ErrNoImageData {
		t.Fatalf("expected ErrNoImageData, got %v", err)
	}
}

func TestWorkersAIClientMissingCredentials(t *testing.T) {
	client := NewWorkersAIClient(WorkersAIOptions{})
	if _, err := client.Generate(context.Background(), "x", 1); err == nil {
		t.Fatalf("expected error when credentials missing")
	}
	if client.Model() != DefaultWorkersAIModel {
		t.Fatalf("unexpected default model: %s", client.Model())
	}
}
