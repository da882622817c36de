package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type StorageConfig struct {
	Path     string `yaml:"path"`
	AudioDir string `yaml:"audio_dir"`
}

type ASRConfig struct {
	Mode              string `yaml:"mode"` // mock, exec
	Command           string `yaml:"command"`
	ModelPath         string `yaml:"model_path"`
	SampleRate        int    `yaml:"sample_rate"`
	WindowSeconds     int    `yaml:"window_seconds"`
	PartialIntervalMS int    `yaml:"partial_interval_ms"`
	MinAudioMS        int    `yaml:"min_audio_ms"`
	StopGraceMS       int    `yaml:"stop_grace_ms"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Storage     StorageConfig   `yaml:"storage"`
	ASR         ASRConfig       `yaml:"asr"`
}

func Default() Config {
	return Config{
		RuntimeName: "noteinsight-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Storage: StorageConfig{
			Path:     "./data/noteinsight.db",
			AudioDir: "./data/audio",
		},
		ASR: ASRConfig{
			Mode:              "mock",
			SampleRate:        16000,
			WindowSeconds:     6,
			PartialIntervalMS: 900,
			MinAudioMS:        1000,
			StopGraceMS:       5000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "NOTEINSIGHT_RUNTIME_NAME")
	overrideString(&cfg.Environment, "NOTEINSIGHT_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "NOTEINSIGHT_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "NOTEINSIGHT_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "NOTEINSIGHT_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "NOTEINSIGHT_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "NOTEINSIGHT_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "NOTEINSIGHT_TELEMETRY_PROMETHEUS_BIND")
	overrideString(&cfg.Storage.Path, "NOTEINSIGHT_STORAGE_PATH")
	overrideString(&cfg.Storage.AudioDir, "NOTEINSIGHT_STORAGE_AUDIO_DIR")
	overrideString(&cfg.ASR.Mode, "NOTEINSIGHT_ASR_MODE")
	overrideString(&cfg.ASR.Command, "NOTEINSIGHT_ASR_COMMAND")
	overrideString(&cfg.ASR.ModelPath, "NOTEINSIGHT_ASR_MODEL_PATH")
	overrideInt(&cfg.ASR.SampleRate, "NOTEINSIGHT_ASR_SAMPLE_RATE")
	overrideInt(&cfg.ASR.WindowSeconds, "NOTEINSIGHT_ASR_WINDOW_SECONDS")
	overrideInt(&cfg.ASR.PartialIntervalMS, "NOTEINSIGHT_ASR_PARTIAL_INTERVAL_MS")
	overrideInt(&cfg.ASR.MinAudioMS, "NOTEINSIGHT_ASR_MIN_AUDIO_MS")
	overrideInt(&cfg.ASR.StopGraceMS, "NOTEINSIGHT_ASR_STOP_GRACE_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Storage.Path == "" {
		return errors.New("storage.path must not be empty")
	}
	if cfg.Storage.AudioDir == "" {
		return errors.New("storage.audio_dir must not be empty")
	}
	switch cfg.ASR.Mode {
	case "mock", "exec":
	default:
		return errors.New("asr.mode must be one of mock|exec")
	}
	if cfg.ASR.Mode == "exec" && cfg.ASR.Command == "" {
		return errors.New("asr.command must be set when mode=exec")
	}
	if cfg.ASR.SampleRate <= 0 {
		return errors.New("asr.sample_rate must be positive")
	}
	if cfg.ASR.WindowSeconds <= 0 {
		return errors.New("asr.window_seconds must be positive")
	}
	if cfg.ASR.PartialIntervalMS <= 0 {
		return errors.New("asr.partial_interval_ms must be positive")
	}
	if cfg.ASR.MinAudioMS < 0 {
		return errors.New("asr.min_audio_ms must be >= 0")
	}
	if cfg.ASR.StopGraceMS < 0 {
		return errors.New("asr.stop_grace_ms must be >= 0")
	}
	return nil
}
