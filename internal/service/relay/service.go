package relay

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"noiserelay/internal/models"
)

// ModelClient is the subset of the generative-model provider the relay uses.
type ModelClient interface {
	Upload(ctx context.Context, path string) (models.Handle, error)
	Generate(ctx context.Context, model string, parts []models.Part) (string, error)
	Release(ctx context.Context, h models.Handle) error
}

// Prompts supplies the fixed instruction texts.
type Prompts interface {
	Describe(variant string) (string, error)
	SummaryPrefix() string
}

// Stager materialises uploads on disk for the duration of one request.
type Stager interface {
	Stage(data []byte) (*models.StagedFile, error)
	Release(file *models.StagedFile)
}

type Options struct {
	Model string
	// Timeout bounds the upstream calls of one request; zero disables it.
	Timeout       time.Duration
	DeleteUploads bool
}

// Service implements the audio-description and summary operations.
type Service struct {
	client  ModelClient
	prompts Prompts
	stager  Stager
	opts    Options
	log     zerolog.Logger
}

// NewService builds a relay service.
func NewService(client ModelClient, prompts Prompts, stager Stager, opts Options, log zerolog.Logger) *Service {
	return &Service{
		client:  client,
		prompts: prompts,
		stager:  stager,
		opts:    opts,
		log:     log.With().Str("component", "relay").Logger(),
	}
}

func (s *Service) upstreamContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.Timeout)
}

// Describe reads the whole upload, stages it, uploads it and asks the model
// to describe it using the named instruction variant ("" for the default).
// The staged file is removed before Describe returns.
func (s *Service) Describe(ctx context.Context, src io.Reader, variant string) Result {
	data, err := io.ReadAll(src)
	if err != nil {
		return s.fail("describe", ErrRead, err)
	}
	instruction, err := s.prompts.Describe(variant)
	if err != nil {
		return s.fail("describe", ErrPrompt, err)
	}

	staged, err := s.stager.Stage(data)
	if err != nil {
		return s.fail("describe", ErrStage, err)
	}
	defer s.stager.Release(staged)

	upCtx, cancel := s.upstreamContext(ctx)
	defer cancel()

	handle, err := s.client.Upload(upCtx, staged.Path)
	if err != nil {
		return s.fail("describe", ErrUpload, err)
	}
	if s.opts.DeleteUploads {
		defer s.releaseHandle(ctx, handle)
	}

	text, err := s.client.Generate(upCtx, s.opts.Model, []models.Part{
		models.TextPart(instruction),
		models.HandlePart(handle),
	})
	if err != nil {
		return s.fail("describe", ErrGenerate, err)
	}
	s.log.Debug().Int("bytes", len(data)).Str("handle", handle.Name).Msg("described audio")
	return Success(text)
}

// Summarize prefixes descriptions with the summary instruction and makes one generation call.
func (s *Service) Summarize(ctx context.Context, descriptions string) Result {
	prompt := s.prompts.SummaryPrefix() + descriptions

	upCtx, cancel := s.upstreamContext(ctx)
	defer cancel()

	text, err := s.client.Generate(upCtx, s.opts.Model, []models.Part{models.TextPart(prompt)})
	if err != nil {
		return s.fail("summarize", ErrGenerate, err)
	}
	s.log.Debug().Int("input_len", len(descriptions)).Msg("summarized descriptions")
	return Success(text)
}

// releaseHandle runs after the request context may already be done.
func (s *Service) releaseHandle(ctx context.Context, h models.Handle) {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.client.Release(relCtx, h); err != nil {
		s.log.Warn().Err(err).Str("handle", h.Name).Msg("release uploaded file failed")
	}
}

func (s *Service) fail(op string, kind, err error) Result {
	res := Fail(kind, err)
	s.log.Error().Err(res.Err).Str("op", op).Str("kind", KindName(res.Err)).Msg("relay failed")
	return res
}
