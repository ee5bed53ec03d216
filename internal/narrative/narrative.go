// Package narrative asks an OpenAI-compatible chat endpoint for written
// commentary on a finished report.
package narrative

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"stock-analyzer/internal/config"
	apperrors "stock-analyzer/internal/errors"
	"stock-analyzer/internal/logging"
	"stock-analyzer/internal/report"
)

const systemPrompt = `You are a professional financial analyst. You are given a quantitative
analysis report for a single stock. Write a concise commentary in Markdown with these sections:
Executive summary, Technical analysis, Risk assessment, Outlook. Base every statement on the
numbers in the report, do not invent data, and keep the tone neutral. Do not repeat the
disclaimer.`

// chatClient is the subset of *openai.Client the narrator needs.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options configures a Narrator.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// OptionsFromConfig reads narrator options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		APIKey:      cfg.LLMAPIKey(),
		BaseURL:     cfg.LLMBaseURL(),
		Model:       cfg.LLM.Model,
		Temperature: float32(cfg.LLM.Temperature),
		MaxTokens:   cfg.LLM.MaxTokens,
	}
}

// Narrator turns a report into prose with a single chat completion.
type Narrator struct {
	client chatClient
	opts   Options
	logger zerolog.Logger
}

// New creates a Narrator. An API key is required.
func New(opts Options, logger zerolog.Logger) (*Narrator, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("narrative: %w", apperrors.ErrNotAuthenticated)
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return newNarrator(openai.NewClientWithConfig(cfg), opts, logger), nil
}

func newNarrator(client chatClient, opts Options, logger zerolog.Logger) *Narrator {
	if opts.Model == "" {
		opts.Model = openai.GPT4oMini
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}
	return &Narrator{
		client: client,
		opts:   opts,
		logger: logger.With().Str("component", "narrative").Logger(),
	}
}

// Narrate returns Markdown commentary for r.
func (n *Narrator) Narrate(ctx context.Context, r *report.Report) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, n.opts.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := n.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       n.opts.Model,
		Temperature: n.opts.Temperature,
		MaxTokens:   n.opts.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: Prompt(r)},
		},
	})
	logging.LogAPICall(n.logger, "llm", "chat_completion", time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("llm completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from llm")
	}

	text := stripOuterFence(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty response from llm")
	}
	return text, nil
}

// Prompt builds the user message for r. The rendered report is sent
// without commentary so a re-run never feeds old prose back in.
func Prompt(r *report.Report) string {
	cp := *r
	cp.Narrative = ""

	var b strings.Builder
	fmt.Fprintf(&b, "Ticker: %s\n", r.Ticker)
	if !r.AsOf.IsZero() {
		fmt.Fprintf(&b, "Data as of: %s\n", r.AsOf.Format("2006-01-02"))
	}
	if failed := r.Failed(); len(failed) > 0 {
		fmt.Fprintf(&b, "Stages without output: %s\n", strings.Join(failed, ", "))
	}
	b.WriteString("\n")
	b.WriteString(report.RenderMarkdown(&cp))
	return b.String()
}

// stripOuterFence removes a single ```markdown fence wrapping the whole reply.
func stripOuterFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	body := strings.TrimSuffix(s, "```")
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		return s
	}
	return strings.TrimSpace(body[nl+1:])
}
