package studio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"skagen-studio-server/modules/common/config"
	"skagen-studio-server/modules/common/gemini"
	"skagen-studio-server/modules/common/storage"
	"skagen-studio-server/modules/common/utils"
	"skagen-studio-server/modules/events"
)

const defaultBaseName = "result"

// Service runs the generation pipeline: normalize, compose, assemble, invoke, store.
type Service struct {
	generator    gemini.ContentGenerator
	store        *storage.ResultStore
	publisher    events.Publisher
	normalize    utils.NormalizeOptions
	maxRetries   int
	backoffStep  time.Duration
	defaultModel string
	presets      map[string]string
	resolve      func(preset string) (string, error)
}

// NewService - 파이프라인 서비스 생성
func NewService(cfg *config.Config, generator gemini.ContentGenerator, store *storage.ResultStore, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		generator: generator,
		store:     store,
		publisher: publisher,
		normalize: utils.NormalizeOptions{
			MaxWidth:  cfg.MaxImageWidth,
			MaxHeight: cfg.MaxImageHeight,
			Quality:   cfg.JPEGQuality,
		},
		maxRetries:   cfg.MaxRetries,
		backoffStep:  cfg.BackoffStep,
		defaultModel: cfg.Model(),
		presets:      cfg.Presets(),
		resolve:      cfg.ModelFor,
	}
}

// ResolveModel maps a preset name to a model id, falling back to the
// configured default when preset is empty.
func (s *Service) ResolveModel(preset string) (string, error) {
	if preset == "" {
		return s.defaultModel, nil
	}
	model, err := s.resolve(preset)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return model, nil
}

// Generate runs one generation. The returned result always names the model
// used; on failure it carries the error description and err is non-nil.
func (s *Service) Generate(ctx context.Context, in *GenerateInput) (*GenerationResult, error) {
	model, err := s.ResolveModel(in.ModelPreset)
	if err != nil {
		return s.fail(in, s.defaultModel, err)
	}

	log.Info().
		Str("job_id", in.JobID).
		Str("model", model).
		Int("products", len(in.Products)).
		Bool("target", in.Target != nil).
		Bool("current_color", in.CurrentColor != nil).
		Int("interior_refs", len(in.InteriorRefs)).
		Int("human_refs", len(in.HumanRefs)).
		Str("preset", string(in.InteriorPreset)).
		Msg("🎨 Starting generation")

	// 네트워크 호출 전에 필수 입력 확인
	if len(in.Products) == 0 {
		return s.fail(in, model, fmt.Errorf("%w: no product images found", ErrValidation))
	}
	if in.Target == nil || len(in.Target.Data) == 0 {
		return s.fail(in, model, fmt.Errorf("%w: please choose a target color", ErrValidation))
	}

	s.publisher.Publish(events.Event{Type: events.TypeStarted, JobID: in.JobID, Model: model})

	products := make([]NormalizedImage, 0, len(in.Products))
	for _, asset := range in.Products {
		img, err := Normalize(asset, s.normalize)
		if err != nil {
			return s.fail(in, model, err)
		}
		products = append(products, img)
	}
	target, err := Normalize(*in.Target, s.normalize)
	if err != nil {
		return s.fail(in, model, err)
	}

	instr := ComposeInstruction(PromptOptions{
		HasInteriorReferences: len(in.InteriorRefs) > 0,
		InteriorPreset:        in.InteriorPreset,
		Addendum:              in.Prompt,
	})

	req, err := AssembleRequest(instr, products, &target)
	if err != nil {
		return s.fail(in, model, err)
	}

	inv := s.invoker(in.JobID)
	log.Info().
		Int("parts", len(req.Images)+1).
		Int("prompt_chars", len(instr.Text())).
		Int("max_retries", inv.MaxRetries()).
		Msg("📤 Sending request to Gemini")

	data, err := inv.Generate(ctx, model, req.Contents())
	if err != nil {
		return s.fail(in, model, err)
	}

	baseName := in.BaseName
	if baseName == "" {
		baseName = defaultBaseName
	}
	path, err := s.store.Save(data, baseName)
	if err != nil {
		return s.fail(in, model, err)
	}

	s.publisher.Publish(events.Event{Type: events.TypeSucceeded, JobID: in.JobID, Model: model, Path: path})
	log.Info().Str("job_id", in.JobID).Str("model", model).Str("path", path).Msg("✅ Generation completed")

	return &GenerationResult{Success: true, ModelUsed: model, Path: path, Image: data}, nil
}

// invoker builds a per-call invoker whose attempts are published with jobID.
func (s *Service) invoker(jobID string) *gemini.Invoker {
	inv := gemini.NewInvoker(s.generator, s.maxRetries, s.backoffStep)
	inv.OnAttempt = func(ev gemini.AttemptEvent) {
		out := events.Event{
			Type:        events.TypeAttempt,
			JobID:       jobID,
			Model:       ev.Model,
			Attempt:     ev.Attempt,
			MaxAttempts: ev.MaxAttempts,
		}
		if ev.Err != nil {
			out.Error = ev.Err.Error()
		}
		if ev.Backoff > 0 {
			out.Backoff = ev.Backoff.String()
		}
		s.publisher.Publish(out)
	}
	return inv
}

func (s *Service) fail(in *GenerateInput, model string, err error) (*GenerationResult, error) {
	ev := log.Error()
	if IsClientError(err) {
		ev = log.Warn()
	}
	ev.Err(err).Str("job_id", in.JobID).Str("model", model).Msg("❌ Generation failed")
	s.publisher.Publish(events.Event{Type: events.TypeFailed, JobID: in.JobID, Model: model, Error: err.Error()})
	return &GenerationResult{Success: false, ModelUsed: model, Error: err.Error()}, err
}

// IsClientError reports whether err was caused by the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrDecode)
}
