package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"google.golang.org/genai"

	"github.com/mohammad-safakhou/techbrief/config"
	"github.com/mohammad-safakhou/techbrief/internal/agent/telemetry"
)

// Prompt is one chat completion request.
type Prompt struct {
	System      string
	User        string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Completion is a provider's reply plus usage accounting.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
	Cost         float64
}

// Provider is a single LLM backend.
type Provider interface {
	Name() string
	// Available reports whether credentials are present. Complete on an
	// unavailable provider returns ErrProviderUnavailable.
	Available() bool
	Complete(ctx context.Context, p Prompt) (Completion, error)
}

var errEmptyCompletion = errors.New("provider returned no text")

// NewProvider builds the backend for one configured provider.
func NewProvider(name string, cfg config.LLMProvider) (Provider, error) {
	switch cfg.Type {
	case "openai", "groq", "deepseek":
		return NewOpenAICompatProvider(name, cfg), nil
	case "anthropic":
		return NewAnthropicProvider(name, cfg), nil
	case "gemini":
		return NewGeminiProvider(name, cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider type: %s", cfg.Type)
	}
}

// NewProviders builds every configured provider keyed by name.
func NewProviders(cfg config.LLMConfig) (map[string]Provider, error) {
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make(map[string]Provider, len(names))
	for _, name := range names {
		p, err := NewProvider(name, cfg.Providers[name])
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		out[name] = p
	}
	return out, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// OpenAICompatProvider talks to any chat/completions endpoint that follows
// the OpenAI wire format (OpenAI, Groq, DeepSeek).
type OpenAICompatProvider struct {
	name string
	cfg  config.LLMProvider
	http *HTTPClient
}

func NewOpenAICompatProvider(name string, cfg config.LLMProvider) *OpenAICompatProvider {
	return &OpenAICompatProvider{
		name: name,
		cfg:  cfg,
		http: NewHTTPClient(cfg.Timeout, cfg.MaxRetries, 500*time.Millisecond),
	}
}

func (p *OpenAICompatProvider) Name() string    { return p.name }
func (p *OpenAICompatProvider) Available() bool { return strings.TrimSpace(p.cfg.APIKey) != "" }

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatReq struct {
	Model       string    `json:"model"`
	Messages    []chatMsg `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResp struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *OpenAICompatProvider) Complete(ctx context.Context, pr Prompt) (Completion, error) {
	if !p.Available() {
		return Completion{}, ErrProviderUnavailable
	}
	model := orDefault(pr.Model, p.cfg.Model)
	msgs := make([]chatMsg, 0, 2)
	if pr.System != "" {
		msgs = append(msgs, chatMsg{Role: "system", Content: pr.System})
	}
	msgs = append(msgs, chatMsg{Role: "user", Content: pr.User})

	var out chatResp
	headers := map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}
	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"
	if err := p.http.DoJSON(ctx, "POST", url, headers, chatReq{
		Model:       model,
		Messages:    msgs,
		Temperature: pr.Temperature,
		MaxTokens:   pr.MaxTokens,
	}, &out); err != nil {
		return Completion{}, fmt.Errorf("%s: %w", p.name, err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return Completion{}, fmt.Errorf("%s: %w", p.name, errEmptyCompletion)
	}
	return Completion{
		Text:         out.Choices[0].Message.Content,
		Model:        orDefault(out.Model, model),
		InputTokens:  out.Usage.PromptTokens,
		OutputTokens: out.Usage.CompletionTokens,
		Cost:         telemetry.CalculateCost(out.Usage.PromptTokens, out.Usage.CompletionTokens, p.cfg.CostPer1K, p.cfg.CostPer1KOutput),
	}, nil
}

// AnthropicProvider uses the Messages API.
type AnthropicProvider struct {
	name   string
	cfg    config.LLMProvider
	client anthropic.Client
}

func NewAnthropicProvider(name string, cfg config.LLMProvider) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicProvider{name: name, cfg: cfg, client: anthropic.NewClient(opts...)}
}

func (p *AnthropicProvider) Name() string    { return p.name }
func (p *AnthropicProvider) Available() bool { return strings.TrimSpace(p.cfg.APIKey) != "" }

func (p *AnthropicProvider) Complete(ctx context.Context, pr Prompt) (Completion, error) {
	if !p.Available() {
		return Completion{}, ErrProviderUnavailable
	}
	model := orDefault(pr.Model, p.cfg.Model)
	maxTokens := int64(pr.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   maxTokens,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(pr.User))},
		Temperature: anthropic.Float(pr.Temperature),
	}
	if pr.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: pr.System}}
	}
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return Completion{}, fmt.Errorf("%s: %w", p.name, err)
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return Completion{}, fmt.Errorf("%s: %w", p.name, errEmptyCompletion)
	}
	in, out := msg.Usage.InputTokens, msg.Usage.OutputTokens
	return Completion{
		Text:         sb.String(),
		Model:        string(msg.Model),
		InputTokens:  in,
		OutputTokens: out,
		Cost:         telemetry.CalculateCost(in, out, p.cfg.CostPer1K, p.cfg.CostPer1KOutput),
	}, nil
}

// GeminiProvider uses the Gemini API backend of the genai SDK. The client
// is created lazily on first use so a missing key never dials out.
type GeminiProvider struct {
	name string
	cfg  config.LLMProvider

	mu     sync.Mutex
	client *genai.Client
}

func NewGeminiProvider(name string, cfg config.LLMProvider) *GeminiProvider {
	return &GeminiProvider{name: name, cfg: cfg}
}

func (p *GeminiProvider) Name() string    { return p.name }
func (p *GeminiProvider) Available() bool { return strings.TrimSpace(p.cfg.APIKey) != "" }

func (p *GeminiProvider) sdk(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: p.cfg.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	p.client = c
	return c, nil
}

func (p *GeminiProvider) Complete(ctx context.Context, pr Prompt) (Completion, error) {
	if !p.Available() {
		return Completion{}, ErrProviderUnavailable
	}
	client, err := p.sdk(ctx)
	if err != nil {
		return Completion{}, fmt.Errorf("%s: %w", p.name, err)
	}
	model := orDefault(pr.Model, p.cfg.Model)
	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(pr.Temperature)),
	}
	if pr.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(pr.MaxTokens)
	}
	if pr.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(pr.System, genai.RoleUser)
	}
	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(pr.User), gc)
	if err != nil {
		return Completion{}, fmt.Errorf("%s: %w", p.name, err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return Completion{}, fmt.Errorf("%s: %w", p.name, errEmptyCompletion)
	}
	var in, out int64
	if resp.UsageMetadata != nil {
		in = int64(resp.UsageMetadata.PromptTokenCount)
		out = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return Completion{
		Text:         text,
		Model:        model,
		InputTokens:  in,
		OutputTokens: out,
		Cost:         telemetry.CalculateCost(in, out, p.cfg.CostPer1K, p.cfg.CostPer1KOutput),
	}, nil
}
