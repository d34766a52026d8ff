package content

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"debatecoach/agent/internal/types"
)

const defaultAPIVersion = "2024-02-15-preview"

// LLMConfig points at an Azure OpenAI chat deployment.
type LLMConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
}

// LLM generates content with streamed chat completions.
type LLM struct {
	cfg   LLMConfig
	httpc *http.Client
}

func NewLLM(cfg LLMConfig) *LLM {
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	return &LLM{cfg: cfg, httpc: &http.Client{Timeout: 0}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

var levelGuidance = map[types.SkillLevel]string{
	types.SkillBeginner:     "The speaker is a beginner. Keep language simple and points concrete.",
	types.SkillIntermediate: "The speaker is an intermediate debater. Expect clear structure and some weighing.",
	types.SkillAdvanced:     "The speaker is an advanced debater. Be incisive and hold them to competition standard.",
}

func guidance(l types.SkillLevel) string {
	if g, ok := levelGuidance[l]; ok {
		return g
	}
	return levelGuidance[types.SkillIntermediate]
}

func (l *LLM) StructureNotes(ctx context.Context, motion string, role types.Role, notes string) (string, error) {
	var out string
	err := Instrument(ctx, "llm", "structure_notes", func(ctx context.Context) error {
		var err error
		out, err = l.complete(ctx, []chatMessage{
			{Role: "system", Content: "You are a British Parliamentary debate coach. Turn rough preparation notes into a clear case outline with numbered arguments, mechanisms and impacts. Do not invent arguments the notes do not support."},
			{Role: "user", Content: fmt.Sprintf("Motion: %s\nSeat: %s (%s)\nNotes:\n%s", motion, role.Title(), role.Team().Side(), notes)},
		}, 700, 0.4)
		return err
	})
	return out, err
}

func (l *LLM) GeneratePOI(ctx context.Context, req POIRequest) (string, error) {
	var out string
	err := Instrument(ctx, "llm", "generate_poi", func(ctx context.Context) error {
		var err error
		out, err = l.complete(ctx, []chatMessage{
			{Role: "system", Content: "You are an opposing debater offering a Point of Information. Reply with one short, pointed question of at most 25 words, or NONE if there is nothing worth asking. " + guidance(req.SkillLevel)},
			{Role: "user", Content: fmt.Sprintf("Motion: %s\nSpeaker: %s\nSeconds into speech: %d\nTranscript so far:\n%s", req.Motion, req.Role.Title(), req.Elapsed, req.Transcript)},
		}, 80, 0.8)
		return err
	})
	if err != nil {
		return "", err
	}
	if strings.EqualFold(strings.Trim(out, " .\n"), "none") {
		return "", nil
	}
	return out, nil
}

func (l *LLM) GenerateSpeech(ctx context.Context, req SpeechRequest) (string, error) {
	var prior strings.Builder
	for _, sp := range req.Previous {
		fmt.Fprintf(&prior, "[%s] %s\n", sp.Role, sp.Content)
	}
	var out string
	err := Instrument(ctx, "llm", "generate_speech", func(ctx context.Context) error {
		var err error
		out, err = l.complete(ctx, []chatMessage{
			{Role: "system", Content: fmt.Sprintf("You are the %s in a British Parliamentary debate, speaking for %s. Deliver a complete speech as plain prose. %s", req.Role.Title(), req.Role.Team().Side(), guidance(req.SkillLevel))},
			{Role: "user", Content: fmt.Sprintf("Motion: %s\nSpeeches so far:\n%s", req.Motion, prior.String())},
		}, 1200, 0.7)
		return err
	})
	return out, err
}

const gradingPrompt = `You are a British Parliamentary adjudicator. Grade the round and reply with JSON only:
{"performanceMetrics":{"averageArgumentQuality":0,"clashEngagement":0,"structuralCoherence":0,"evidenceUsage":0,"rhetoricalEffectiveness":0,"strategicAwareness":0},"overallScore":0,"ranking":1,"improvements":["..."]}
Every score is between 0 and 10. ranking is the user's team position from 1 (best) to 4.`

func (l *LLM) GradeRound(ctx context.Context, speeches []types.Speech, motion string, level types.SkillLevel) (types.Report, error) {
	var log strings.Builder
	for _, sp := range speeches {
		who := "USER"
		if sp.IsAI {
			who = "AI"
		}
		fmt.Fprintf(&log, "[%s %s, %ds] %s\n", who, sp.Role, sp.TimeSpoken, sp.Content)
	}
	var rep types.Report
	err := Instrument(ctx, "llm", "grade_round", func(ctx context.Context) error {
		out, err := l.complete(ctx, []chatMessage{
			{Role: "system", Content: gradingPrompt + "\n" + guidance(level)},
			{Role: "user", Content: fmt.Sprintf("Motion: %s\nSpeeches:\n%s", motion, log.String())},
		}, 800, 0.2)
		if err != nil {
			return err
		}
		rep, err = ParseReport(out)
		return err
	})
	return rep, err
}

// ParseReport extracts the JSON object from a grading reply.
func ParseReport(s string) (types.Report, error) {
	var rep types.Report
	i, j := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if i < 0 || j <= i {
		return rep, fmt.Errorf("grading reply has no JSON object")
	}
	if err := json.Unmarshal([]byte(s[i:j+1]), &rep); err != nil {
		return rep, fmt.Errorf("decode grading reply: %w", err)
	}
	return rep, nil
}

// complete runs one streamed chat completion and returns the joined text.
func (l *LLM) complete(ctx context.Context, msgs []chatMessage, maxTokens int, temperature float64) (string, error) {
	if l.cfg.Endpoint == "" || l.cfg.APIKey == "" {
		return "", Unavailable("llm", errors.New("missing llm endpoint or api key"))
	}
	body := map[string]any{
		"stream":      true,
		"messages":    msgs,
		"max_tokens":  maxTokens,
		"temperature": temperature,
	}
	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(l.cfg.Endpoint, "/"), l.cfg.Deployment, l.cfg.APIVersion)
	reqBytes, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("api-key", l.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := l.httpc.Do(req)
	if err != nil {
		return "", Unavailable("llm", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", Unavailable("llm", fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b)))
	}

	var buf strings.Builder
	decoder := newSSEDecoder(bufio.NewReader(resp.Body))
	for {
		if ctx.Err() != nil {
			return "", Unavailable("llm", ctx.Err())
		}
		_, data, err := decoder.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", Unavailable("llm", err)
		}
		if string(data) == "[DONE]" {
			break
		}
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(data, &chunk); err != nil || len(chunk.Choices) == 0 {
			continue
		}
		buf.WriteString(chunk.Choices[0].Delta.Content)
	}
	return strings.TrimSpace(buf.String()), nil
}

type sseDecoder struct {
	r *bufio.Reader
}

func newSSEDecoder(r *bufio.Reader) *sseDecoder { return &sseDecoder{r: r} }

// Next returns (event, data, error). Azure leaves event empty; data lines
// begin with "data: ".
func (d *sseDecoder) Next() (string, []byte, error) {
	var event string
	var data []byte
	for {
		line, err := d.r.ReadBytes('\n')
		if err != nil {
			if err == io.EOF && len(data) > 0 {
				return event, data, nil
			}
			return "", nil, err
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if len(data) == 0 {
				continue
			}
			return event, data, nil
		}
		if bytes.HasPrefix(line, []byte("event:")) {
			event = strings.TrimSpace(string(line[len("event:"):]))
		} else if bytes.HasPrefix(line, []byte("data:")) {
			data = append(data, bytes.TrimSpace(line[len("data:"):])...)
		}
	}
}
