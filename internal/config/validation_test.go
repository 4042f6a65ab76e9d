package config

import (
	"errors"
	"testing"
)

// validConfig returns a config that passes Validate when GEMINI_API_KEY is set.
func validConfig() *Config {
	return &Config{
		ModelName:        "gemini-2.5-flash",
		EmbedderModel:    DefaultEmbedderModel,
		Temperature:      0.8,
		MaxTurns:         5,
		RetrievalTopK:    4,
		ChunkMinChars:    1000,
		ChunkMaxChars:    2000,
		ChunkOverlap:     100,
		MaxUploadBytes:   20 << 20,
		PostgresHost:     "localhost",
		PostgresPort:     5432,
		PostgresUser:     "skibot",
		PostgresPassword: "long_enough_password",
		PostgresDBName:   "skibot",
		PostgresSSLMode:  "disable",
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty model name",
			mutate:  func(c *Config) { c.ModelName = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "temperature too high",
			mutate:  func(c *Config) { c.Temperature = 2.5 },
			wantErr: ErrInvalidTemperature,
		},
		{
			name:    "negative temperature",
			mutate:  func(c *Config) { c.Temperature = -0.1 },
			wantErr: ErrInvalidTemperature,
		},
		{
			name:    "zero max turns",
			mutate:  func(c *Config) { c.MaxTurns = 0 },
			wantErr: ErrInvalidMaxTurns,
		},
		{
			name:    "empty embedder model",
			mutate:  func(c *Config) { c.EmbedderModel = "" },
			wantErr: ErrInvalidEmbedderModel,
		},
		{
			name:    "retrieval top k out of range",
			mutate:  func(c *Config) { c.RetrievalTopK = 0 },
			wantErr: ErrInvalidRetrievalTopK,
		},
		{
			name:    "chunk max below min",
			mutate:  func(c *Config) { c.ChunkMaxChars = 500 },
			wantErr: ErrInvalidChunkWindow,
		},
		{
			name:    "overlap not below min",
			mutate:  func(c *Config) { c.ChunkOverlap = 1000 },
			wantErr: ErrInvalidChunkWindow,
		},
		{
			name:    "empty postgres host",
			mutate:  func(c *Config) { c.PostgresHost = "" },
			wantErr: ErrInvalidPostgresHost,
		},
		{
			name:    "postgres port out of range",
			mutate:  func(c *Config) { c.PostgresPort = 70000 },
			wantErr: ErrInvalidPostgresPort,
		},
		{
			name:    "empty postgres db name",
			mutate:  func(c *Config) { c.PostgresDBName = "" },
			wantErr: ErrInvalidPostgresDBName,
		},
		{
			name:    "short postgres password",
			mutate:  func(c *Config) { c.PostgresPassword = "short" },
			wantErr: ErrInvalidPostgresPassword,
		},
		{
			name:    "deprecated ssl mode",
			mutate:  func(c *Config) { c.PostgresSSLMode = "prefer" },
			wantErr: ErrInvalidPostgresSSLMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NilConfig(t *testing.T) {
	var cfg *Config
	if !errors.Is(cfg.Validate(), ErrConfigNil) {
		t.Fatal("expected ErrConfigNil for nil config")
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg := validConfig()
	if !errors.Is(cfg.Validate(), ErrMissingAPIKey) {
		t.Fatal("expected ErrMissingAPIKey when GEMINI_API_KEY is unset")
	}
}
