package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/subreconcile/internal/config"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr []string
	}{
		{
			name:    "invalid log level",
			yaml:    "log_level: verbose\n",
			wantErr: []string{"log_level"},
		},
		{
			name:    "negative log backups",
			yaml:    "log_file:\n  max_backups: -1\n",
			wantErr: []string{"log_file.max_backups"},
		},
		{
			name:    "invalid backend",
			yaml:    "storage:\n  backend: redis\n",
			wantErr: []string{"storage.backend"},
		},
		{
			name:    "postgres without dsn",
			yaml:    "storage:\n  backend: postgres\n",
			wantErr: []string{"storage.postgres_dsn"},
		},
		{
			name:    "postgres with dsn",
			yaml:    "storage:\n  backend: postgres\n  postgres_dsn: postgres://localhost/subs\n",
			wantErr: nil,
		},
		{
			name:    "key with separator",
			yaml:    "storage:\n  key: ../escape\n",
			wantErr: []string{"storage.key"},
		},
		{
			name:    "negative breaker timeout",
			yaml:    "storage:\n  breaker:\n    reset_timeout: -1s\n",
			wantErr: []string{"storage.breaker.reset_timeout"},
		},
		{
			name:    "negative concurrency",
			yaml:    "review:\n  concurrency: -1\n",
			wantErr: []string{"review.concurrency"},
		},
		{
			name:    "negative max runes",
			yaml:    "review:\n  max_runes: -5\n",
			wantErr: []string{"review.max_runes"},
		},
		{
			name:    "thresholds out of range",
			yaml:    "learn:\n  phonetic_threshold: 1.5\n  fuzzy_threshold: -0.1\n",
			wantErr: []string{"learn.phonetic_threshold", "learn.fuzzy_threshold"},
		},
		{
			name:    "memory backend",
			yaml:    "storage:\n  backend: memory\n",
			wantErr: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if len(tc.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error mentioning %v, got nil", tc.wantErr)
			}
			for _, want := range tc.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error should mention %q, got: %v", want, err)
				}
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.LogLevel = "loud"
	cfg.Storage.Backend = "tape"
	cfg.Review.Concurrency = -2

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{"log_level", "storage.backend", "review.concurrency"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}
