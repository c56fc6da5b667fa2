package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/quizforge/quiz-service/internal/config"
	"github.com/quizforge/quiz-service/internal/grading"
)

// chatCompleter is the slice of the OpenAI client the grader uses. Tests
// substitute a fake here.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client grades descriptive answers through an OpenAI-compatible API.
// It implements grading.AIGrader, retrying failed calls with linear
// backoff before giving up with an AIGradingError.
type Client struct {
	api    chatCompleter
	model  string
	cfg    grading.Config
	logger *slog.Logger

	// backoffUnit is one step of backoff; tests shrink it.
	backoffUnit time.Duration
}

var _ grading.AIGrader = (*Client)(nil)

// NewClient builds a grading client. BaseURL may point at any
// OpenAI-compatible endpoint.
func NewClient(cfg config.OpenAIConfig, pipeline grading.Config, logger *slog.Logger) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:         openai.NewClientWithConfig(apiCfg),
		model:       model,
		cfg:         pipeline.WithDefaults(),
		logger:      logger,
		backoffUnit: time.Second,
	}
}

// GradeAnswer asks the model to grade one answer. Every failure mode is
// retryable: timeouts, transport errors, malformed JSON and schema
// violations all count against the same attempt budget. After the last
// attempt the final failure is wrapped in an AIGradingError for the
// caller to fall back on.
func (c *Client) GradeAnswer(ctx context.Context, q grading.Question, studentAnswer string) (*grading.AIResult, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		res, err := c.gradeOnce(ctx, q, studentAnswer)
		if err == nil {
			return res, nil
		}
		lastErr = err
		c.logger.Warn("ai grading attempt failed",
			"question_id", q.ID,
			"attempt", attempt,
			"max_retries", c.cfg.MaxRetries,
			"error", err)

		if attempt == c.cfg.MaxRetries {
			break
		}
		// Backoff grows with the attempt number: 1s, then 2s.
		wait := time.Duration(attempt) * c.backoffUnit
		select {
		case <-ctx.Done():
			return nil, &grading.AIGradingError{Attempts: attempt, Err: ctx.Err()}
		case <-time.After(wait):
		}
	}
	return nil, &grading.AIGradingError{Attempts: c.cfg.MaxRetries, Err: lastErr}
}

// gradeOnce performs a single bounded call.
func (c *Client) gradeOnce(ctx context.Context, q grading.Question, studentAnswer string) (*grading.AIResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(q, studentAnswer)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
		MaxTokens:   c.cfg.MaxResponseTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("grading API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("grading API returned no choices")
	}

	return parseGradeResponse(resp.Choices[0].Message.Content, q.MaxMarks())
}
