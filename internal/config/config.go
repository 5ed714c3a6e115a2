package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds every environment-driven tunable for the service.
type Config struct {
	HTTPAddr       string
	LogLevel       string
	RequestTimeout time.Duration
	CORSOrigins    []string

	DataDir   string
	DBPath    string
	LogDir    string
	LogLLM    bool
	LLMLogDir string

	ModelURL            string
	NPredict            int
	ReasoningFormat     string
	ReasoningInContent  bool
	StopSequences       []string
	FallbackStreamDelay time.Duration

	Tools ToolsConfig
}

// ToolsConfig configures the sandboxed tool runtime.
type ToolsConfig struct {
	Roots             []string
	AllowNetwork      bool
	CommandAllowlist  string
	MaxOutputBytes    int
	CommandTimeoutSec int
}

func Load() (Config, error) {
	var cfg Config

	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8000")
	cfg.LogLevel = getEnv("MYGPT_LOG_LEVEL", "info")

	reqTimeout, err := parseDuration(getEnv("HTTP_CLIENT_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse HTTP_CLIENT_TIMEOUT: %w", err)
	}
	cfg.RequestTimeout = reqTimeout

	cfg.CORSOrigins = splitNonEmpty(getEnv("MYGPT_CORS_ORIGINS", "http://localhost:1420"), ",")

	cfg.DataDir = getEnv("MYGPT_DATA_DIR", "./data")
	cfg.DBPath = getEnv("MYGPT_DB_PATH", filepath.Join(cfg.DataDir, "chat.db"))
	cfg.LogDir = getEnv("MYGPT_LOG_DIR", filepath.Join(cfg.DataDir, "logs"))
	cfg.LogLLM = getEnv("MYGPT_LOG_LLM", "0") == "1"
	cfg.LLMLogDir = getEnv("MYGPT_LLM_LOG_DIR", filepath.Join(cfg.DataDir, "llm_logs"))

	cfg.ModelURL = strings.TrimRight(getEnv("MYGPT_MODEL_URL", "http://127.0.0.1:8080"), "/")

	nPredict, err := strconv.Atoi(getEnv("MYGPT_N_PREDICT", "256"))
	if err != nil {
		return Config{}, fmt.Errorf("parse MYGPT_N_PREDICT: %w", err)
	}
	cfg.NPredict = nPredict

	cfg.ReasoningFormat = strings.TrimSpace(getEnv("MYGPT_REASONING_FORMAT", "none"))
	if cfg.ReasoningFormat == "" {
		cfg.ReasoningFormat = "none"
	}

	reasoningInContent, err := parseBoolDefault(strings.ToLower(strings.TrimSpace(getEnv("MYGPT_REASONING_IN_CONTENT", "false"))), false)
	if err != nil {
		return Config{}, fmt.Errorf("parse MYGPT_REASONING_IN_CONTENT: %w", err)
	}
	cfg.ReasoningInContent = reasoningInContent

	cfg.StopSequences = parseStopSequences(os.Getenv("MYGPT_STOP_SEQS"))

	fallbackDelaySec := getEnv("MYGPT_FALLBACK_STREAM_DELAY_S", "0.05")
	delaySeconds, err := strconv.ParseFloat(fallbackDelaySec, 64)
	if err != nil {
		return Config{}, fmt.Errorf("parse MYGPT_FALLBACK_STREAM_DELAY_S: %w", err)
	}
	cfg.FallbackStreamDelay = time.Duration(delaySeconds * float64(time.Second))

	repoRoot, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("determine working directory: %w", err)
	}
	cfg.Tools = ToolsConfig{
		Roots:             splitNonEmpty(getEnv("MYGPT_TOOL_ROOTS", repoRoot), string(os.PathListSeparator)),
		AllowNetwork:      getEnv("MYGPT_ALLOW_NETWORK_TOOLS", "0") == "1",
		CommandAllowlist:  getEnv("MYGPT_TOOL_COMMAND_ALLOWLIST", ""),
		MaxOutputBytes:    atoiDefault(getEnv("MYGPT_TOOL_MAX_OUTPUT_BYTES", "200000"), 200000),
		CommandTimeoutSec: atoiDefault(getEnv("MYGPT_TOOL_COMMAND_TIMEOUT", "10"), 10),
	}

	return cfg, nil
}

// parseStopSequences accepts MYGPT_STOP_SEQS as either a JSON list or a
// newline-separated list; empty input returns nil and the gateway's built-in
// defaults apply.
func parseStopSequences(raw string) []string {
	if raw == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err == nil && len(list) > 0 {
		return list
	}
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, fmt.Errorf("duration is empty")
	}
	return time.ParseDuration(value)
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

// parseBoolDefault parses optional boolean with default value.
func parseBoolDefault(value string, def bool) (bool, error) {
	if value == "" {
		return def, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, err
	}
	return parsed, nil
}

func atoiDefault(value string, def int) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func splitNonEmpty(value, sep string) []string {
	var out []string
	for _, part := range strings.Split(value, sep) {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
