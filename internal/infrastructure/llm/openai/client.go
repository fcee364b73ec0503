package openai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/electroquote/cpq-backend/internal/core/domain"
	"github.com/electroquote/cpq-backend/internal/core/ports"
	"github.com/electroquote/cpq-backend/internal/infrastructure/resilience"
)

// Client speaks the OpenAI-compatible chat-completions protocol and turns
// cleaned datasheet text into a schema-complete ProductDraft.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	inputBudget int
	httpClient  *http.Client
	executor    *resilience.Executor
	quota       *UserQuota
}

type Options struct {
	Temperature      float64
	MaxTokens        int
	InputBudgetChars int
	Timeout          time.Duration
	Executor         *resilience.Executor
	Quota            *UserQuota
}

func New(baseURL, apiKey, model string, opts Options) *Client {
	if opts.Temperature <= 0 {
		opts.Temperature = 0.1
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2000
	}
	if opts.InputBudgetChars <= 0 {
		opts.InputBudgetChars = 50000
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		inputBudget: opts.InputBudgetChars,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		executor:    opts.Executor,
		quota:       opts.Quota,
	}
}

func (c *Client) ExtractProduct(ctx context.Context, req ports.ExtractionRequest) (*domain.ProductDraft, ports.ExtractionStats, error) {
	var stats ports.ExtractionStats

	if c.quota != nil && !c.quota.Allow(req.UserID) {
		return nil, stats, domain.WrapError(domain.ErrQuotaExceeded, "extract product", errQuota)
	}

	messages := buildExtractionMessages(req.DocumentName, truncateForBudget(req.Text, c.inputBudget), req.Hints)

	content, usage, err := c.chatComplete(ctx, messages)
	if err != nil {
		return nil, stats, mapProviderError("extract product", err)
	}
	stats.PromptTokens += usage.PromptTokens
	stats.CompletionTokens += usage.CompletionTokens

	draft, err := decodeDraft(content)
	if err == nil {
		return draft, stats, nil
	}
	if domain.IsKind(err, domain.ErrSchemaMismatch) {
		return nil, stats, err
	}

	// One repair attempt: feed the invalid payload back and demand bare JSON.
	stats.Retries++
	repaired, usage, repairErr := c.chatComplete(ctx, buildRepairMessages(content))
	if repairErr != nil {
		return nil, stats, mapProviderError("repair extraction json", repairErr)
	}
	stats.PromptTokens += usage.PromptTokens
	stats.CompletionTokens += usage.CompletionTokens

	draft, err = decodeDraft(repaired)
	if err != nil {
		return nil, stats, err
	}
	return draft, stats, nil
}

func (c *Client) chatComplete(ctx context.Context, messages []chatMessage) (string, chatUsage, error) {
	request := chatRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    c.temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
	}

	var response chatResponse
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/v1/chat/completions", request, &response, "chat")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "llm.chat", call, classifyProviderError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", chatUsage{}, err
	}
	if len(response.Choices) == 0 {
		return "", response.Usage, domain.WrapError(domain.ErrInvalidJSON, "chat", errNoChoices)
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), response.Usage, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage chatUsage `json:"usage"`
}
