package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		shouldSet    bool
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			shouldSet:    true,
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "TEST_VAR_MISSING",
			defaultValue: "default",
			shouldSet:    false,
			want:         "default",
		},
		{
			name:         "returns default when environment variable is empty string",
			key:          "TEST_VAR_EMPTY",
			defaultValue: "default",
			envValue:     "",
			shouldSet:    true,
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	t.Setenv("TEST_INT", "200")
	assert.Equal(t, 200, getEnvAsInt("TEST_INT", 100))

	t.Setenv("TEST_INT_BAD", "not-a-number")
	assert.Equal(t, 100, getEnvAsInt("TEST_INT_BAD", 100))

	assert.Equal(t, 100, getEnvAsInt("TEST_INT_MISSING", 100))
}

func TestGetEnvAsFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.75")
	assert.InDelta(t, 0.75, getEnvAsFloat("TEST_FLOAT", 1.2), 1e-9)

	t.Setenv("TEST_FLOAT_BAD", "???")
	assert.InDelta(t, 1.2, getEnvAsFloat("TEST_FLOAT_BAD", 1.2), 1e-9)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ProviderOllama, cfg.Provider)
	assert.Equal(t, 3, cfg.TopK)
	assert.InDelta(t, 1.2, cfg.ScoreThreshold, 1e-9)
	assert.Equal(t, filepath.Join("./data", "qa_index"), cfg.IndexDir)
	assert.Equal(t, filepath.Join("./data", "collected_qa.json"), cfg.CollectedPath)
	assert.Equal(t, filepath.Join("./data", "rebuild.log"), cfg.RebuildLogPath)
}

func TestLoadDerivesPathsFromDataDir(t *testing.T) {
	t.Setenv("DATA_DIR", "/datadrive/askbot")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/datadrive/askbot", "qa_index"), cfg.IndexDir)
	assert.Equal(t, filepath.Join("/datadrive/askbot", "chat_logs.db"), cfg.ChatDBPath)
	assert.Equal(t, filepath.Join("/datadrive/askbot", "qa_source.json"), cfg.SourcePath)
}

func TestLoadValidation(t *testing.T) {
	t.Run("openai provider requires api key", func(t *testing.T) {
		t.Setenv("PROVIDER", "openai")
		t.Setenv("OPENAI_API_KEY", "")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unsupported provider rejected", func(t *testing.T) {
		t.Setenv("PROVIDER", "bedrock")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("non-positive top k rejected", func(t *testing.T) {
		t.Setenv("TOP_K", "0")

		_, err := Load()
		assert.Error(t, err)
	})
}
