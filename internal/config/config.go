// Package config loads pipeline configuration from built-in defaults, an
// optional YAML file and MEDIATE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	providerconfig "github.com/tiger/mediation-pipeline/internal/runtime/provider/config"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MEDIATE"

const (
	ProviderNone       = "none"
	ProviderHume       = "hume"
	ProviderGemini     = "gemini"
	ProviderAnthropic  = "anthropic"
	ProviderElevenLabs = "elevenlabs"
	ProviderPolly      = "polly"
)

type Pipeline struct {
	Name      string `mapstructure:"name" yaml:"name"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

type Expression struct {
	Provider  string `mapstructure:"provider" yaml:"provider"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	APIKeyRef string `mapstructure:"api_key_ref" yaml:"api_key_ref"`
}

type Reasoning struct {
	Provider  string `mapstructure:"provider" yaml:"provider"`
	Model     string `mapstructure:"model" yaml:"model"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	APIKeyRef string `mapstructure:"api_key_ref" yaml:"api_key_ref"`
}

type Speech struct {
	Provider        string  `mapstructure:"provider" yaml:"provider"`
	VoiceID         string  `mapstructure:"voice_id" yaml:"voice_id"`
	ModelID         string  `mapstructure:"model_id" yaml:"model_id"`
	Endpoint        string  `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	APIKeyRef       string  `mapstructure:"api_key_ref" yaml:"api_key_ref"`
	Region          string  `mapstructure:"region" yaml:"region"`
	Stream          bool    `mapstructure:"stream" yaml:"stream"`
	Stability       float64 `mapstructure:"stability" yaml:"stability"`
	SimilarityBoost float64 `mapstructure:"similarity_boost" yaml:"similarity_boost"`
	Style           float64 `mapstructure:"style" yaml:"style"`
	SpeakerBoost    bool    `mapstructure:"speaker_boost" yaml:"speaker_boost"`
}

type Timeouts struct {
	PollInterval  time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	TextMaxPolls  int           `mapstructure:"text_max_polls" yaml:"text_max_polls"`
	AudioMaxPolls int           `mapstructure:"audio_max_polls" yaml:"audio_max_polls"`
	Request       time.Duration `mapstructure:"request" yaml:"request"`
	Voice         time.Duration `mapstructure:"voice" yaml:"voice"`
}

type Analysis struct {
	HistoryWindow         int  `mapstructure:"history_window" yaml:"history_window"`
	StreamSentenceTrigger int  `mapstructure:"stream_sentence_trigger" yaml:"stream_sentence_trigger"`
	StreamBufferLimit     int  `mapstructure:"stream_buffer_limit" yaml:"stream_buffer_limit"`
	MaxRecommendations    int  `mapstructure:"max_recommendations" yaml:"max_recommendations"`
	ParallelDocuments     bool `mapstructure:"parallel_documents" yaml:"parallel_documents"`
}

type Journal struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// Config is the effective configuration.
type Config struct {
	Pipeline   Pipeline   `mapstructure:"pipeline" yaml:"pipeline"`
	Expression Expression `mapstructure:"expression" yaml:"expression"`
	Reasoning  Reasoning  `mapstructure:"reasoning" yaml:"reasoning"`
	Speech     Speech     `mapstructure:"speech" yaml:"speech"`
	Timeouts   Timeouts   `mapstructure:"timeouts" yaml:"timeouts"`
	Analysis   Analysis   `mapstructure:"analysis" yaml:"analysis"`
	Journal    Journal    `mapstructure:"journal" yaml:"journal"`
}

var defaults = map[string]any{
	"pipeline.name":                    "mediation-pipeline",
	"pipeline.log_level":               "info",
	"pipeline.log_format":              "console",
	"expression.provider":              ProviderHume,
	"expression.endpoint":              "https://api.hume.ai",
	"expression.api_key":               "",
	"expression.api_key_ref":           "",
	"reasoning.provider":               ProviderGemini,
	"reasoning.model":                  "",
	"reasoning.endpoint":               "",
	"reasoning.api_key":                "",
	"reasoning.api_key_ref":            "",
	"speech.provider":                  ProviderElevenLabs,
	"speech.voice_id":                  "",
	"speech.model_id":                  "",
	"speech.endpoint":                  "",
	"speech.api_key":                   "",
	"speech.api_key_ref":               "",
	"speech.region":                    "us-east-1",
	"speech.stream":                    false,
	"speech.stability":                 0.6,
	"speech.similarity_boost":          0.75,
	"speech.style":                     0.2,
	"speech.speaker_boost":             true,
	"timeouts.poll_interval":           time.Second,
	"timeouts.text_max_polls":          30,
	"timeouts.audio_max_polls":         60,
	"timeouts.request":                 15 * time.Second,
	"timeouts.voice":                   15 * time.Second,
	"analysis.history_window":          5,
	"analysis.stream_sentence_trigger": 2,
	"analysis.stream_buffer_limit":     4096,
	"analysis.max_recommendations":     5,
	"analysis.parallel_documents":      false,
	"journal.path":                     "",
}

// Load reads path when set, otherwise config/<CONFIG_ENV>/config.yaml if it
// exists, then applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = defaultPath()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the built-in configuration with no file or env applied.
func Default() Config {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func defaultPath() string {
	env := providerconfig.EnvOrDefault("CONFIG_ENV", "dev")
	candidate := filepath.Join("config", env, "config.yaml")
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

// Validate rejects unknown providers and non-positive limits.
func (c Config) Validate() error {
	var errs []error
	check := func(field string, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unsupported value %q (want one of %s)", field, value, strings.Join(allowed, ", ")))
	}
	check("expression.provider", c.Expression.Provider, ProviderHume, ProviderNone)
	check("reasoning.provider", c.Reasoning.Provider, ProviderGemini, ProviderAnthropic, ProviderNone)
	check("speech.provider", c.Speech.Provider, ProviderElevenLabs, ProviderPolly, ProviderNone)
	check("pipeline.log_level", c.Pipeline.LogLevel, "debug", "info", "warn", "error")
	check("pipeline.log_format", c.Pipeline.LogFormat, "json", "console")

	for _, d := range []struct {
		field string
		value time.Duration
	}{
		{"timeouts.poll_interval", c.Timeouts.PollInterval},
		{"timeouts.request", c.Timeouts.Request},
		{"timeouts.voice", c.Timeouts.Voice},
	} {
		if d.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", d.field))
		}
	}
	positiveInts := []struct {
		field string
		value int
	}{
		{"timeouts.text_max_polls", c.Timeouts.TextMaxPolls},
		{"timeouts.audio_max_polls", c.Timeouts.AudioMaxPolls},
		{"analysis.history_window", c.Analysis.HistoryWindow},
		{"analysis.stream_sentence_trigger", c.Analysis.StreamSentenceTrigger},
		{"analysis.stream_buffer_limit", c.Analysis.StreamBufferLimit},
		{"analysis.max_recommendations", c.Analysis.MaxRecommendations},
	}
	for _, p := range positiveInts {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", p.field))
		}
	}
	for _, unit := range []struct {
		field string
		value float64
	}{
		{"speech.stability", c.Speech.Stability},
		{"speech.similarity_boost", c.Speech.SimilarityBoost},
		{"speech.style", c.Speech.Style},
	} {
		if unit.value < 0 || unit.value > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1]", unit.field))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ExpressionCredential returns the expression provider secret.
func (c Config) ExpressionCredential() providerconfig.Credential {
	return providerconfig.Credential{Literal: c.Expression.APIKey, Ref: c.Expression.APIKeyRef}
}

// ReasoningCredential returns the reasoning provider secret.
func (c Config) ReasoningCredential() providerconfig.Credential {
	return providerconfig.Credential{Literal: c.Reasoning.APIKey, Ref: c.Reasoning.APIKeyRef}
}

// SpeechCredential returns the speech provider secret.
func (c Config) SpeechCredential() providerconfig.Credential {
	return providerconfig.Credential{Literal: c.Speech.APIKey, Ref: c.Speech.APIKeyRef}
}

// Redacted replaces literal secrets with a marker. Secret references are kept.
func (c Config) Redacted() Config {
	c.Expression.APIKey = providerconfig.RedactSecret(c.Expression.APIKey)
	c.Reasoning.APIKey = providerconfig.RedactSecret(c.Reasoning.APIKey)
	c.Speech.APIKey = providerconfig.RedactSecret(c.Speech.APIKey)
	return c
}

// DumpYAML renders the redacted configuration.
func (c Config) DumpYAML() ([]byte, error) {
	out, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return nil, fmt.Errorf("config dump: %w", err)
	}
	return out, nil
}
