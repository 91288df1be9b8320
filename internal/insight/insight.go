// Package insight turns recent synced health data into a short
// natural-language report using a chat completion model.
package insight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hyperengineering/vitals/internal/store"
	"github.com/hyperengineering/vitals/internal/types"
)

const systemPrompt = "You are a concise health-data analyst. You receive a " +
	"plain-text digest of one person's recent daily health metrics and " +
	"workouts. Summarize the notable trends in at most three short " +
	"paragraphs. Mention sleep, activity load, and recovery signals when " +
	"the data supports it. Do not invent numbers."

// ChatService defines the interface for making chat completion API calls.
// This abstraction enables testing without calling the real OpenAI API.
type ChatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// InsightStore defines the store reads the reporter digests.
type InsightStore interface {
	DailyMetrics(ctx context.Context, userID int64, start, end time.Time) ([]store.DailyMetricRecord, error)
	Activities(ctx context.Context, userID int64, start, end time.Time) ([]types.Activity, error)
}

// Reporter generates insight reports from the synced store.
type Reporter struct {
	store InsightStore
	chat  ChatService
	model string
}

// NewReporter creates a reporter backed by the OpenAI API.
func NewReporter(s InsightStore, apiKey, model string) *Reporter {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Reporter{store: s, chat: client.Chat.Completions, model: model}
}

// Report digests the last `days` days for the user and asks the model for
// a trend summary.
func (r *Reporter) Report(ctx context.Context, userID int64, days int) (string, error) {
	if days < 1 {
		return "", fmt.Errorf("days must be positive, got %d", days)
	}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -(days - 1))

	digest, err := r.buildDigest(ctx, userID, start, end)
	if err != nil {
		return "", err
	}
	if digest == "" {
		return "", fmt.Errorf("no synced data between %s and %s", start.Format(types.DateFormat), end.Format(types.DateFormat))
	}

	resp, err := r.chat.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(digest),
		}),
		Model: openai.F(r.model),
	})
	if err != nil {
		return "", fmt.Errorf("insight generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("insight generation failed: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// buildDigest renders the window's daily rows and activities as compact
// plain text, one line per fact, skipping absent values.
func (r *Reporter) buildDigest(ctx context.Context, userID int64, start, end time.Time) (string, error) {
	daily, err := r.store.DailyMetrics(ctx, userID, start, end)
	if err != nil {
		return "", fmt.Errorf("read daily metrics: %w", err)
	}
	activities, err := r.store.Activities(ctx, userID, start, end)
	if err != nil {
		return "", fmt.Errorf("read activities: %w", err)
	}
	if len(daily) == 0 && len(activities) == 0 {
		return "", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Health data %s to %s\n\n", start.Format(types.DateFormat), end.Format(types.DateFormat))

	for _, d := range daily {
		fmt.Fprintf(&b, "%s:", d.MetricDate.Format(types.DateFormat))
		writeInt(&b, "steps", d.TotalSteps)
		writeInt(&b, "calories", d.TotalCalories)
		writeInt(&b, "resting_hr", d.RestingHeartRate)
		writeInt(&b, "avg_stress", d.AvgStressLevel)
		writeInt(&b, "body_battery_high", d.BodyBatteryHigh)
		writeFloat(&b, "sleep_h", d.SleepDurationHours)
		writeInt(&b, "sleep_score", d.SleepScore)
		writeInt(&b, "readiness", d.TrainingReadinessScore)
		writeFloat(&b, "hrv_night", d.HRVLastNightAvg)
		b.WriteString("\n")
	}

	if len(activities) > 0 {
		b.WriteString("\nWorkouts:\n")
		for _, a := range activities {
			fmt.Fprintf(&b, "%s %s", a.ActivityDate.Format(types.DateFormat), a.ActivityType)
			if a.DurationSeconds != nil {
				fmt.Fprintf(&b, " %dmin", *a.DurationSeconds/60)
			}
			if a.DistanceMeters != nil {
				fmt.Fprintf(&b, " %.1fkm", *a.DistanceMeters/1000)
			}
			if a.Calories != nil {
				fmt.Fprintf(&b, " %dkcal", *a.Calories)
			}
			b.WriteString("\n")
		}
	}

	return b.String(), nil
}

func writeInt(b *strings.Builder, label string, v *int64) {
	if v != nil {
		fmt.Fprintf(b, " %s=%d", label, *v)
	}
}

func writeFloat(b *strings.Builder, label string, v *float64) {
	if v != nil {
		fmt.Fprintf(b, " %s=%.1f", label, *v)
	}
}
