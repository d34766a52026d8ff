package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port      string
		LogLevel  string
		LogFile   string
		TraceFile string
	}
	Content struct {
		// Mode selects the generator: "llm" calls the model directly,
		// "grpc" calls a remote content service at Addr.
		Mode     string
		Addr     string
		Timeout  time.Duration
		CacheTTL time.Duration
	}
	LLM struct {
		Endpoint   string
		APIKey     string
		Deployment string
		APIVersion string
	}
	Eleven struct {
		APIKey  string
		VoiceID string
	}
	Deepgram struct {
		APIKey   string
		Model    string
		Language string
		WSURL    string
	}
	Capture struct {
		TokenSecret   string
		TokenSkewSecs int
		TokenTTLMin   int
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("content.mode", "llm")
	v.SetDefault("content.addr", ":9092")
	v.SetDefault("content.timeout_seconds", 20)
	v.SetDefault("content.cache_ttl_seconds", 600)

	v.SetDefault("llm.api_version", "2024-02-15-preview")

	v.SetDefault("deepgram.model", "nova-2")
	v.SetDefault("deepgram.language", "en-US")
	v.SetDefault("deepgram.ws_url", "wss://api.deepgram.com/v1/listen")

	v.SetDefault("capture.token_skew_secs", 30)
	v.SetDefault("capture.token_ttl_min", 60)

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")
	v.BindEnv("server.log_file", "LOG_FILE")
	v.BindEnv("server.trace_file", "TRACE_FILE")

	v.BindEnv("content.mode", "CONTENT_MODE")
	v.BindEnv("content.addr", "CONTENT_ADDR")
	v.BindEnv("content.timeout_seconds", "CONTENT_TIMEOUT_SECONDS")
	v.BindEnv("content.cache_ttl_seconds", "CONTENT_CACHE_TTL_SECONDS")

	v.BindEnv("llm.endpoint", "LLM_ENDPOINT", "AZURE_OPENAI_ENDPOINT")
	v.BindEnv("llm.api_key", "LLM_API_KEY", "AZURE_OPENAI_API_KEY")
	v.BindEnv("llm.deployment", "LLM_DEPLOYMENT", "AZURE_OPENAI_DEPLOYMENT")
	v.BindEnv("llm.api_version", "LLM_API_VERSION", "AZURE_OPENAI_API_VERSION")

	v.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
	v.BindEnv("elevenlabs.voice_id", "ELEVENLABS_VOICE_ID")

	v.BindEnv("deepgram.api_key", "DEEPGRAM_API_KEY")
	v.BindEnv("deepgram.model", "DEEPGRAM_MODEL")
	v.BindEnv("deepgram.language", "DEEPGRAM_LANGUAGE")
	v.BindEnv("deepgram.ws_url", "DEEPGRAM_WS_URL")

	v.BindEnv("capture.token_secret", "CAPTURE_TOKEN_SECRET")
	v.BindEnv("capture.token_skew_secs", "CAPTURE_TOKEN_SKEW_SECS")
	v.BindEnv("capture.token_ttl_min", "CAPTURE_TOKEN_TTL_MIN")

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.LogLevel = v.GetString("server.log_level")
	c.Server.LogFile = v.GetString("server.log_file")
	c.Server.TraceFile = v.GetString("server.trace_file")

	c.Content.Mode = strings.ToLower(v.GetString("content.mode"))
	c.Content.Addr = v.GetString("content.addr")
	c.Content.Timeout = time.Duration(v.GetInt("content.timeout_seconds")) * time.Second
	c.Content.CacheTTL = time.Duration(v.GetInt("content.cache_ttl_seconds")) * time.Second

	c.LLM.Endpoint = v.GetString("llm.endpoint")
	c.LLM.APIKey = v.GetString("llm.api_key")
	c.LLM.Deployment = v.GetString("llm.deployment")
	c.LLM.APIVersion = v.GetString("llm.api_version")

	c.Eleven.APIKey = v.GetString("elevenlabs.api_key")
	c.Eleven.VoiceID = v.GetString("elevenlabs.voice_id")

	c.Deepgram.APIKey = v.GetString("deepgram.api_key")
	c.Deepgram.Model = v.GetString("deepgram.model")
	c.Deepgram.Language = v.GetString("deepgram.language")
	c.Deepgram.WSURL = v.GetString("deepgram.ws_url")

	c.Capture.TokenSecret = v.GetString("capture.token_secret")
	c.Capture.TokenSkewSecs = v.GetInt("capture.token_skew_secs")
	c.Capture.TokenTTLMin = v.GetInt("capture.token_ttl_min")

	log.Printf("config loaded: port=%s content_mode=%s", c.Server.Port, c.Content.Mode)
	return c
}

func toString(v any) string { return fmt.Sprint(v) }
