package infra

import (
	"testing"
	"time"
)

func clearBackendEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "BLOB_BACKEND", "INDEX_BACKEND", "DATABASE_URL", "REDIS_URL",
		"S3_BUCKET", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY",
		"INFERENCE_ACCOUNT_ID", "INFERENCE_API_TOKEN", "GENERATION_PARALLELISM",
		"INFERENCE_ATTEMPT_TIMEOUT_SECONDS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearBackendEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port mismatch: got %q", cfg.Port)
	}
	if cfg.BlobBackend != BlobBackendFilesystem || cfg.IndexBackend != IndexBackendMemory {
		t.Fatalf("unexpected backends: blob=%q index=%q", cfg.BlobBackend, cfg.IndexBackend)
	}
	if cfg.GenerationParallelism != 1 {
		t.Fatalf("GenerationParallelism mismatch: got %d", cfg.GenerationParallelism)
	}
	if cfg.InferenceAttemptTimeout != 60*time.Second {
		t.Fatalf("InferenceAttemptTimeout mismatch: got %s", cfg.InferenceAttemptTimeout)
	}
	if !cfg.UseSyntheticInference() {
		t.Fatalf("expected synthetic inference without credentials")
	}
}

func TestLoadConfigClampsParallelism(t *testing.T) {
	clearBackendEnv(t)
	t.Setenv("GENERATION_PARALLELISM", "-3")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.GenerationParallelism != 1 {
		t.Fatalf("GenerationParallelism mismatch: got %d", cfg.GenerationParallelism)
	}
}

func TestLoadConfigRequiresS3Credentials(t *testing.T) {
	clearBackendEnv(t)
	t.Setenv("BLOB_BACKEND", "S3")
	t.Setenv("S3_BUCKET", "images")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for s3 backend without credentials")
	}

	t.Setenv("S3_ACCESS_KEY_ID", "key")
	t.Setenv("S3_SECRET_ACCESS_KEY", "secret")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.BlobBackend != BlobBackendS3 {
		t.Fatalf("BlobBackend mismatch: got %q", cfg.BlobBackend)
	}
}

func TestLoadConfigIndexBackends(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{name: "postgres without url", env: map[string]string{"INDEX_BACKEND": "postgres"}, wantErr: true},
		{name: "postgres", env: map[string]string{"INDEX_BACKEND": "postgres", "DATABASE_URL": "postgres://example"}},
		{name: "redis without url", env: map[string]string{"INDEX_BACKEND": "redis"}, wantErr: true},
		{name: "redis", env: map[string]string{"INDEX_BACKEND": "redis", "REDIS_URL": "redis://localhost:6379/0"}},
		{name: "unknown index", env: map[string]string{"INDEX_BACKEND": "etcd"}, wantErr: true},
		{name: "unknown blob", env: map[string]string{"BLOB_BACKEND": "gcs"}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearBackendEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestUseSyntheticInference(t *testing.T) {
	cfg := &Config{InferenceAccountID: "acct", InferenceAPIToken: "token"}
	if cfg.UseSyntheticInference() {
		t.Fatalf("expected real inference with credentials")
	}
	cfg.InferenceAPIToken = "  "
	if !cfg.UseSyntheticInference() {
		t.Fatalf("expected synthetic inference with blank token")
	}
}
