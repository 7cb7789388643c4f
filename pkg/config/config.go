package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Dataset   DatasetConfig
	LLM       LLMConfig
	Agent     AgentConfig
	Guardrail GuardrailConfig
	Trace     TraceConfig
	Eval      EvalConfig
	Redis     RedisConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type DatasetConfig struct {
	Path         string
	RelationName string
}

type LLMConfig struct {
	APIKey      string
	Model       string
	JudgeModel  string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type AgentConfig struct {
	MaxToolRounds int
	PreviewRows   int
	PreviewRunes  int
}

type GuardrailConfig struct {
	MinQuestionLength int
	MaxQuestionLength int
	CacheVerdicts     bool
}

type TraceConfig struct {
	StorePath         string
	CollectorEndpoint string
	ProjectName       string
	ExportBufferSize  int
}

type EvalConfig struct {
	PythonPath string
	TimeoutSec int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/sales-agent")

	viper.SetEnvPrefix("SALES_AGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// The API key has no default, so it must be bound explicitly for
	// Unmarshal to see it. The conventional OPENAI_API_KEY works too.
	viper.BindEnv("llm.apiKey", "SALES_AGENT_LLM_APIKEY", "OPENAI_API_KEY")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 120)
	viper.SetDefault("server.writeTimeout", 120)
	viper.SetDefault("server.bodyLimit", 1048576)

	viper.SetDefault("dataset.path", "./data/store_sales.csv")
	viper.SetDefault("dataset.relationName", "sales")

	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.judgeModel", "gpt-4o")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 2048)
	viper.SetDefault("llm.timeoutSec", 60)

	viper.SetDefault("agent.maxToolRounds", 10)
	viper.SetDefault("agent.previewRows", 50)
	viper.SetDefault("agent.previewRunes", 4000)

	viper.SetDefault("guardrail.minQuestionLength", 3)
	viper.SetDefault("guardrail.maxQuestionLength", 1000)
	viper.SetDefault("guardrail.cacheVerdicts", true)

	viper.SetDefault("trace.storePath", "./data/traces.db")
	viper.SetDefault("trace.collectorEndpoint", "http://localhost:6006/v1/traces")
	viper.SetDefault("trace.projectName", "sales-agent")
	viper.SetDefault("trace.exportBufferSize", 256)

	viper.SetDefault("eval.pythonPath", "python3")
	viper.SetDefault("eval.timeoutSec", 15)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", 3600)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
