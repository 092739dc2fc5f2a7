package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel    = "gemini-1.5-flash"
)

// instruction and examples prime the model to answer with {"data": "<word>"}.
const instruction = "Suggest only a single word (no need for any explanation; give only a single creative word) that best describes the content of the URL, emphasizing on its focused theme or content."

var examples = [][2]string{
	{"https://www.datacamp.com/podcast/data-storytelling-and-visualization-with-lea-pica-from-present-beyond-measure", "DataViz"},
	{"https://medium.com/mlearning-ai/5000x-generative-ai-intro-overview-models-prompts-technology-tools-comparisons-the-best-a4af95874e94", "GenAI"},
	{"https://medium.com/@sahintalha1/high-level-system-architecture-of-booking-com-06c199003d94", "BookingArch"},
	{"https://oreilly.medium.com/generative-ai-in-the-enterprise-c43d57f0f20c", "GenAI4Enterprise"},
	{"https://ldeplano.medium.com/10-rules-i-learned-that-helped-me-outperform-90-of-hedge-funds-over-the-last-6-years-e7eef446a536", "HedgeFundRules"},
	{"https://uxdesign.cc/can-i-keep-my-story-open-and-accessible-to-everyone-to-read-on-medium-ebb91751987", "OpenMediumStories"},
	{"https://www.uottawa.ca/library/copyright/instructors/using-publicly-accessible-websites-digital-media", "PublicDigitalMedia"},
	{"https://www.hostinger.com/tutorials/blog-seo", "BlogSEO"},
}

// GeminiConfig selects the endpoint, model and credentials of a Gemini adapter.
// When APIKey is empty the HTTP client is expected to authenticate itself,
// see NewHTTPClient.
type GeminiConfig struct {
	Endpoint string
	Model    string
	APIKey   string
}

// Gemini implements Oracle against the Generative Language generateContent API.
type Gemini struct {
	httpClient *http.Client
	endpoint   string
	model      string
	apiKey     string
}

// NewGemini creates a Gemini adapter. Timeouts come from the caller's context.
func NewGemini(httpClient *http.Client, cfg GeminiConfig) *Gemini {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = DefaultGeminiEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{
		httpClient: httpClient,
		endpoint:   endpoint,
		model:      model,
		apiKey:     cfg.APIKey,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature      float64 `json:"temperature"`
		TopP             float64 `json:"topP"`
		TopK             int     `json:"topK"`
		MaxOutputTokens  int     `json:"maxOutputTokens"`
		ResponseMimeType string  `json:"responseMimeType"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Describe asks the model for one word describing content.
func (g *Gemini) Describe(ctx context.Context, content string) (string, error) {
	body, err := json.Marshal(g.buildRequest(content))
	if err != nil {
		return "", fmt.Errorf("oracle/gemini: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("oracle/gemini: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("x-goog-api-key", g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle/gemini: sending request: %w", errors.Join(ErrUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("oracle/gemini: HTTP %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(msg)), ErrUnavailable)
	}

	var wire geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return "", fmt.Errorf("oracle/gemini: decoding response: %w", errors.Join(ErrUnavailable, err))
	}
	if len(wire.Candidates) == 0 || len(wire.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("oracle/gemini: empty candidate list: %w", ErrUnavailable)
	}

	word := extractWord(wire.Candidates[0].Content.Parts[0].Text)
	if word == "" {
		return "", fmt.Errorf("oracle/gemini: blank answer: %w", ErrUnavailable)
	}
	return word, nil
}

func (g *Gemini) url() string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.endpoint, g.model)
}

func (g *Gemini) buildRequest(content string) geminiRequest {
	var prompt strings.Builder
	prompt.WriteString(instruction)
	prompt.WriteByte('\n')
	for _, ex := range examples {
		fmt.Fprintf(&prompt, "input: %q\noutput: {\"data\": %q}\n", ex[0], ex[1])
	}
	fmt.Fprintf(&prompt, "input: %q\noutput: ", content)

	var req geminiRequest
	req.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt.String()}}}}
	req.GenerationConfig.Temperature = 0.9
	req.GenerationConfig.TopP = 1
	req.GenerationConfig.TopK = 1
	req.GenerationConfig.MaxOutputTokens = 64
	req.GenerationConfig.ResponseMimeType = "application/json"
	return req
}

// extractWord accepts either the requested {"data": "..."} object or,
// when the model ignored the format, the first whitespace-separated token.
func extractWord(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var payload struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err == nil {
		return strings.TrimSpace(payload.Data)
	}
	if fields := strings.Fields(text); len(fields) > 0 {
		return strings.Trim(fields[0], `"'`)
	}
	return ""
}
