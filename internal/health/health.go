// Package health checks the upstream providers a deployment depends on.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"debatecoach/agent/internal/config"
)

type CheckResult struct {
	Name      string        `json:"name"`
	OK        bool          `json:"ok"`
	Required  bool          `json:"required"`
	Latency   time.Duration `json:"-"`
	LatencyMS int64         `json:"latency_ms"`
	Error     string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	s := fmt.Sprintf("Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if !c.Required {
			s += " [optional]"
		}
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

// Pinger is the remote content service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Endpoints are the provider URLs probed by CheckAll.
type Endpoints struct {
	ElevenLabs string
	Deepgram   string
}

var DefaultEndpoints = Endpoints{
	ElevenLabs: "https://api.elevenlabs.io",
	Deepgram:   "https://api.deepgram.com",
}

// CheckAll runs all health checks. Content generation is required; speech
// providers are optional since fragments can arrive as text.
func CheckAll(ctx context.Context, cfg config.Config, content Pinger, ep Endpoints) HealthStatus {
	var checks []CheckResult
	if cfg.Content.Mode == "grpc" {
		checks = append(checks, checkContent(ctx, content))
	} else {
		checks = append(checks, checkLLM(cfg))
	}
	checks = append(checks, checkElevenLabs(ctx, cfg, ep.ElevenLabs), checkDeepgram(ctx, cfg, ep.Deepgram))

	allOK := true
	for _, c := range checks {
		if c.Required && !c.OK {
			allOK = false
		}
	}
	return HealthStatus{OK: allOK, Checks: checks, CheckedAt: time.Now().UTC()}
}

func checkLLM(cfg config.Config) CheckResult {
	result := CheckResult{Name: "llm", Required: true}
	var missing []string
	if cfg.LLM.Endpoint == "" {
		missing = append(missing, "LLM_ENDPOINT")
	}
	if cfg.LLM.APIKey == "" {
		missing = append(missing, "LLM_API_KEY")
	}
	if cfg.LLM.Deployment == "" {
		missing = append(missing, "LLM_DEPLOYMENT")
	}
	if len(missing) > 0 {
		result.Error = strings.Join(missing, ", ") + " not set"
		return result
	}
	result.OK = true
	return result
}

func checkContent(ctx context.Context, p Pinger) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "content_rpc", Required: true}
	if p == nil {
		result.Error = "content client not configured"
		return result
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	err := p.Ping(ctx)
	result.Latency = time.Since(start)
	result.LatencyMS = result.Latency.Milliseconds()
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.OK = true
	return result
}

func checkElevenLabs(ctx context.Context, cfg config.Config, base string) CheckResult {
	result := CheckResult{Name: "elevenlabs"}
	if cfg.Eleven.APIKey == "" {
		result.Error = "ELEVENLABS_API_KEY not set"
		return result
	}
	if cfg.Eleven.VoiceID == "" {
		result.Error = "ELEVENLABS_VOICE_ID not set"
		return result
	}
	// Works with TTS-only keys that lack user_read.
	url := fmt.Sprintf("%s/v1/voices/%s", base, cfg.Eleven.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = fmt.Sprintf("request build failed: %v", err)
		return result
	}
	req.Header.Set("xi-api-key", cfg.Eleven.APIKey)
	probe(req, &result, func(code int) string {
		if code == http.StatusNotFound {
			return fmt.Sprintf("voice ID %q not found", cfg.Eleven.VoiceID)
		}
		return ""
	})
	return result
}

func checkDeepgram(ctx context.Context, cfg config.Config, base string) CheckResult {
	result := CheckResult{Name: "deepgram"}
	if cfg.Deepgram.APIKey == "" {
		result.Error = "DEEPGRAM_API_KEY not set"
		return result
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/v1/projects", nil)
	if err != nil {
		result.Error = fmt.Sprintf("request build failed: %v", err)
		return result
	}
	req.Header.Set("Authorization", "Token "+cfg.Deepgram.APIKey)
	probe(req, &result, nil)
	return result
}

// probe issues req and fills result. explain may name a provider-specific
// failure for a status code.
func probe(req *http.Request, result *CheckResult, explain func(code int) string) {
	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.Latency = time.Since(start)
		result.LatencyMS = result.Latency.Milliseconds()
		return
	}
	defer resp.Body.Close()
	result.Latency = time.Since(start)
	result.LatencyMS = result.Latency.Milliseconds()

	if resp.StatusCode == http.StatusUnauthorized {
		result.Error = "invalid API key (401)"
		return
	}
	if explain != nil {
		if msg := explain(resp.StatusCode); msg != "" {
			result.Error = msg
			return
		}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		result.Error = fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body))
		return
	}
	io.Copy(io.Discard, resp.Body)
	result.OK = true
}
