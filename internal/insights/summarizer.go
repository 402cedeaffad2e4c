package insights

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/worklog-bot/internal/report"
	"go.uber.org/zap"
)

// Summarizer turns report aggregates into a short prose commentary via
// the OpenAI chat API, with a deterministic plain-text fallback when the
// API is unavailable.
type Summarizer struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewSummarizer(apiKey string, model string, maxTokens int, temperature float64, logger *zap.Logger) *Summarizer {
	return &Summarizer{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

func (s *Summarizer) Summarize(ctx context.Context, summary report.Summary, averages report.DailyAverages, days int) string {
	prompt := fmt.Sprintf(`Here are time tracking totals for the last %d days:
- worked %.1f hours across %d work days (%.1f hours per work day)
- commuted %.1f hours (%.1f per work day)
- lunch breaks %.1f hours (%.1f per work day)

Write a short, friendly 2-3 sentence summary of this period for the person who logged it.
Mention anything notable (long commutes, short lunches, uneven days). Plain text only.`,
		days,
		summary.WorkHours, summary.WorkDays, averages.AvgWorkHours,
		summary.CommuteHours, averages.AvgCommuteHours,
		summary.LunchHours, averages.AvgLunchHours)

	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: s.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   s.maxTokens,
			Temperature: float32(s.temperature),
		},
	)
	if err != nil {
		s.logger.Error("Failed to get insights response", zap.Error(err))
		return s.fallback(summary, averages)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return s.fallback(summary, averages)
	}
	return text
}

// Fallback to a plain rendering of the numbers if the API fails
func (s *Summarizer) fallback(summary report.Summary, averages report.DailyAverages) string {
	return fmt.Sprintf(
		"You worked %.1f hours over %d work days (avg %.1f/day), commuted %.1f hours and took %.1f hours of lunch.",
		summary.WorkHours, summary.WorkDays, averages.AvgWorkHours,
		summary.CommuteHours, summary.LunchHours)
}
