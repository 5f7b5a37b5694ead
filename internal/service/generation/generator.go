package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lernguide/internal/config"
	"lernguide/internal/logging"
	"lernguide/internal/models"
)

// Task selects what the generation service is asked to produce.
type Task string

const (
	TaskGuide      Task = "guide"
	TaskSolve      Task = "solve"
	TaskConcepts   Task = "concepts"
	TaskFlashcards Task = "flashcards"
	TaskGradeExam  Task = "gradeExam"
)

func (t Task) Valid() bool {
	switch t {
	case TaskGuide, TaskSolve, TaskConcepts, TaskFlashcards, TaskGradeExam:
		return true
	}
	return false
}

var (
	ErrRateLimited     = errors.New("generation rate limit exceeded, please retry in a minute")
	ErrEmptyResponse   = errors.New("generation service returned no content")
	ErrUnsupportedTask = errors.New("unsupported generation task")
	ErrNoDocuments     = errors.New("at least one script document is required")
)

// ExamAnswer is one answer submitted for grading.
type ExamAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type Options struct {
	DetailLevel   models.DetailLevel
	StrictContext bool
	Model         models.ModelChoice
}

// Request carries the documents and settings for one generation call.
type Request struct {
	Task      Task
	Documents []*models.Document
	Practice  *models.Document
	Options   Options
	Answers   []ExamAnswer
}

func (r *Request) validate() error {
	if r == nil {
		return errors.New("request cannot be nil")
	}
	if !r.Task.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedTask, r.Task)
	}
	if len(r.Documents) == 0 {
		return ErrNoDocuments
	}
	if (r.Task == TaskSolve || r.Task == TaskGradeExam) && r.Practice == nil {
		return fmt.Errorf("task %s needs a practice document", r.Task)
	}
	return nil
}

// Response holds the raw JSON text returned by the model.
type Response struct {
	Raw []byte
}

// Generator produces structured study content from documents.
type Generator interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// New builds the generator for the configured provider, wrapped with the
// per-minute rate limit and request timeout.
func New(ctx context.Context, cfg *config.Config, log *logging.Logger) (Generator, error) {
	if log == nil {
		log = logging.NewNop()
	}
	provider := cfg.Generation.Provider
	provCfg := cfg.Provider(provider)

	var (
		gen Generator
		err error
	)
	switch provider {
	case "gemini":
		gen, err = NewGemini(ctx, provCfg)
	case "openai", "claude":
		gen, err = NewEino(ctx, provider, provCfg)
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("start %s generator: %w", provider, err)
	}
	log.Info("generation service ready", zap.String("provider", provider))
	return &Limited{
		next:    gen,
		limiter: newRateLimiter(cfg.Generation.RateLimit, time.Minute),
		timeout: time.Duration(cfg.Generation.TimeoutSeconds) * time.Second,
	}, nil
}

// Limited guards a generator with a sliding-window limit per task.
type Limited struct {
	next    Generator
	limiter *rateLimiter
	timeout time.Duration
}

func NewLimited(next Generator, limit int, window, timeout time.Duration) *Limited {
	return &Limited{next: next, limiter: newRateLimiter(limit, window), timeout: timeout}
}

func (l *Limited) Generate(ctx context.Context, req *Request) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if !l.limiter.Allow(req.Task) {
		return nil, ErrRateLimited
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	resp, err := l.next.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Raw) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp, nil
}

// Unavailable stands in when no provider could be started; every call fails
// with the startup error.
type Unavailable struct {
	Err error
}

func (u Unavailable) Generate(ctx context.Context, req *Request) (*Response, error) {
	return nil, fmt.Errorf("generation service unavailable: %w", u.Err)
}
