// Package anthropic implements producer.TaskProducer and
// producer.TaskAnalyzer reference adapters backed by the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkoukk/tiktoken-go"

	"github.com/marktoda/astrotask/internal/applog"
)

// DefaultModel is used when ClientConfig.Model is left zero.
const DefaultModel = anthropic.ModelClaudeSonnet4_20250514

// DefaultMaxTokens bounds a single decomposition/analysis response.
const DefaultMaxTokens = 4096

// ClientConfig configures a Client.
type ClientConfig struct {
	// APIKey is the Anthropic API key. If empty, ANTHROPIC_API_KEY is used.
	APIKey string
	// Model overrides DefaultModel.
	Model anthropic.Model
	// PRDTokenBudget truncates PRD text fed to Produce and Analyze past this many
	// tokens (estimated with tiktoken-go's cl100k_base encoding, the
	// closest stand-in available for a Claude tokenizer). Zero disables
	// truncation.
	PRDTokenBudget int
	// Logger receives a warning whenever PRD text is truncated. Defaults
	// to applog.New("anthropic: ", applog.RotatingConfig{}) (stderr).
	Logger logPrinter
}

// logPrinter is the minimal surface Client needs from a *log.Logger,
// so callers can supply any compatible logger without importing log
// here.
type logPrinter interface {
	Printf(format string, args ...any)
}

// Client wraps the Anthropic SDK client plus the shared pieces (model,
// logger, token counter) the Producer and Analyzer both need.
type Client struct {
	inner  anthropic.Client
	model  anthropic.Model
	log    logPrinter
	enc    *tiktoken.Tiktoken
	budget int
}

// NewClient builds a Client. The API key comes from cfg or, when unset,
// from the ANTHROPIC_API_KEY environment variable.
func NewClient(cfg ClientConfig) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("astrotask/producer/anthropic: ANTHROPIC_API_KEY is not set")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	logger := cfg.Logger
	if logger == nil {
		logger = applog.New("anthropic: ", applog.RotatingConfig{})
	}

	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("astrotask/producer/anthropic: load tokenizer: %w", err)
	}

	return &Client{
		inner:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		log:    logger,
		enc:    enc,
		budget: cfg.PRDTokenBudget,
	}, nil
}

// truncateToBudget shortens text to at most the client's PRD token
// budget, logging a warning when it had to cut anything.
func (c *Client) truncateToBudget(text string) string {
	if c.budget <= 0 {
		return text
	}
	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) <= c.budget {
		return text
	}
	c.log.Printf("PRD text is %d tokens, truncating to budget %d", len(tokens), c.budget)
	truncated := c.enc.Decode(tokens[:c.budget])
	return truncated
}

// runText sends a single-turn, tool-free prompt and returns the
// response's concatenated text blocks.
func (c *Client) runText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: DefaultMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("astrotask/producer/anthropic: messages.new: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(text.Text)
		}
	}
	return out.String(), nil
}
