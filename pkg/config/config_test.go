package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T) *Config {
	t.Helper()

	viper.Reset()
	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := load(t)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	require.Equal(t, "gpt-4o", cfg.LLM.JudgeModel)
	require.Equal(t, 10, cfg.Agent.MaxToolRounds)
	require.Equal(t, "sales", cfg.Dataset.RelationName)
	require.Equal(t, "python3", cfg.Eval.PythonPath)
	require.False(t, cfg.Redis.Enabled)
}

func TestLoad_APIKeyFromServiceEnv(t *testing.T) {
	t.Setenv("SALES_AGENT_LLM_APIKEY", "sk-service")

	cfg := load(t)
	require.Equal(t, "sk-service", cfg.LLM.APIKey)
}

func TestLoad_APIKeyFromOpenAIEnv(t *testing.T) {
	t.Setenv("SALES_AGENT_LLM_APIKEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg := load(t)
	require.Equal(t, "sk-openai", cfg.LLM.APIKey)
}

func TestLoad_ServiceEnvWinsOverOpenAIEnv(t *testing.T) {
	t.Setenv("SALES_AGENT_LLM_APIKEY", "sk-service")
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg := load(t)
	require.Equal(t, "sk-service", cfg.LLM.APIKey)
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	t.Setenv("SALES_AGENT_LLM_MODEL", "gpt-4o")
	t.Setenv("SALES_AGENT_AGENT_MAXTOOLROUNDS", "5")

	cfg := load(t)
	require.Equal(t, "gpt-4o", cfg.LLM.Model)
	require.Equal(t, 5, cfg.Agent.MaxToolRounds)
}
