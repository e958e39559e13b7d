package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

const donorSystemPrompt = "You are a helpful assistant for blood donors."

// ErrNotConfigured is returned by every call when no API key is set.
var ErrNotConfigured = errors.New("llm: assistant is not configured")

// Message is one chat turn; Role is system, user or assistant.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Assistant answers donor questions.
type Assistant interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	PreparationTips(ctx context.Context) (string, error)
	PostCareTips(ctx context.Context) (string, error)
}

// LLMHandler talks to any OpenAI-compatible chat completions endpoint.
type LLMHandler struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *logrus.Logger
}

// NewLLMHandler returns nil when apiKey is empty; callers treat that as
// "assistant unavailable".
func NewLLMHandler(apiKey, baseURL, model string, timeout time.Duration, logger *logrus.Logger) *LLMHandler {
	if apiKey == "" {
		return nil
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = "gpt-4.1-mini"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &LLMHandler{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// Chat forwards the conversation as given.
func (h *LLMHandler) Chat(ctx context.Context, messages []Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := m.Role
		if role == "" {
			role = openai.ChatMessageRoleUser
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	if len(msgs) == 0 {
		return "", errors.New("llm: no messages")
	}
	return h.complete(ctx, msgs, 0.8, 0)
}

func (h *LLMHandler) PreparationTips(ctx context.Context) (string, error) {
	return h.ask(ctx, "Give me preparation tips before donating blood.")
}

func (h *LLMHandler) PostCareTips(ctx context.Context) (string, error) {
	return h.ask(ctx, "Give me post-donation care tips for a blood donor.")
}

func (h *LLMHandler) ask(ctx context.Context, question string) (string, error) {
	return h.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: donorSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: question},
	}, 0.7, 150)
}

func (h *LLMHandler) complete(ctx context.Context, msgs []openai.ChatCompletionMessage, temperature float32, maxTokens int) (string, error) {
	if h == nil {
		return "", ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	resp, err := h.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       h.model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		h.logger.WithError(err).WithField("model", h.model).Error("chat completion failed")
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: empty response")
	}
	h.logger.WithFields(logrus.Fields{
		"model":    h.model,
		"tokens":   resp.Usage.TotalTokens,
		"duration": time.Since(start).String(),
	}).Debug("chat completion")
	return resp.Choices[0].Message.Content, nil
}
