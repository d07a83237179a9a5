package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

var (
	// ErrNoImageData - 응답은 정상이지만 이미지가 없음 (재시도 안 함)
	ErrNoImageData = errors.New("no image data returned")
	// ErrRetriesExhausted - 모든 재시도 실패
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// ContentGenerator is the subset of *genai.Models used by the Invoker.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// RetryError carries the last transient error after every attempt failed.
type RetryError struct {
	Attempts int
	Last     error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("failed after %d retries, last error: %v", e.Attempts, e.Last)
}

func (e *RetryError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Last}
}

// AttemptEvent describes the outcome of a single call to the model.
type AttemptEvent struct {
	Model       string
	Attempt     int
	MaxAttempts int
	Err         error
	Backoff     time.Duration
	Success     bool
}

// Invoker calls an image model with bounded retries and linear backoff.
type Invoker struct {
	generator   ContentGenerator
	maxRetries  int
	backoffStep time.Duration

	// OnAttempt, when set, is called after every attempt.
	OnAttempt func(AttemptEvent)
	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewInvoker - maxRetries번 시도, 실패 시 backoffStep × attempt 대기
func NewInvoker(generator ContentGenerator, maxRetries int, backoffStep time.Duration) *Invoker {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Invoker{
		generator:   generator,
		maxRetries:  maxRetries,
		backoffStep: backoffStep,
		sleep:       sleepContext,
	}
}

// MaxRetries returns the configured attempt limit.
func (i *Invoker) MaxRetries() int {
	return i.maxRetries
}

// Generate sends contents to model and returns the first inline image payload.
//
// A call error is retried after backoffStep × attempt. A response without any
// inline data fails immediately with ErrNoImageData. When every attempt fails
// the result is a *RetryError wrapping the last error.
func (i *Invoker) Generate(ctx context.Context, model string, contents []*genai.Content) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= i.maxRetries; attempt++ {
		if attempt > 1 {
			log.Info().Str("model", model).Msgf("   🔄 Retry attempt %d/%d", attempt, i.maxRetries)
		}

		result, err := i.generator.GenerateContent(ctx, model, contents, nil)
		if err == nil {
			data := FirstInlineImage(result)
			if data == nil {
				log.Warn().Str("model", model).Int("attempt", attempt).Msg("⚠️  [Gemini] Response contained no image data")
				i.notify(AttemptEvent{Model: model, Attempt: attempt, MaxAttempts: i.maxRetries, Err: ErrNoImageData})
				return nil, ErrNoImageData
			}

			log.Info().Str("model", model).Int("bytes", len(data)).Msgf("✅ [Gemini] Success (attempt %d/%d)", attempt, i.maxRetries)
			i.notify(AttemptEvent{Model: model, Attempt: attempt, MaxAttempts: i.maxRetries, Success: true})
			return data, nil
		}

		lastErr = err
		backoff := i.backoffStep * time.Duration(attempt)
		log.Error().Err(err).Str("model", model).Msgf("❌ [Gemini] Attempt %d/%d failed", attempt, i.maxRetries)
		i.notify(AttemptEvent{Model: model, Attempt: attempt, MaxAttempts: i.maxRetries, Err: err, Backoff: backoff})

		log.Info().Msgf("   ⏳ Waiting %s before next attempt...", backoff)
		if err := i.sleep(ctx, backoff); err != nil {
			return nil, fmt.Errorf("generation cancelled after attempt %d: %w", attempt, err)
		}
	}

	return nil, &RetryError{Attempts: i.maxRetries, Last: lastErr}
}

func (i *Invoker) notify(ev AttemptEvent) {
	if i.OnAttempt != nil {
		i.OnAttempt(ev)
	}
}

// FirstInlineImage returns the data of the first part carrying inline binary
// content, scanning candidates and then parts in response order.
func FirstInlineImage(result *genai.GenerateContentResponse) []byte {
	if result == nil {
		return nil
	}
	for _, candidate := range result.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
