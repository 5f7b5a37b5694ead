package study

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"lernguide/internal/logging"
	"lernguide/internal/metrics"
	"lernguide/internal/models"
	"lernguide/internal/notify"
	"lernguide/internal/service/generation"
	"lernguide/internal/session"
)

var (
	ErrNoScriptDocuments = errors.New("upload at least one lecture document first")
	ErrBusy              = errors.New("a generation request is already running")
	ErrNoAnswers         = errors.New("no exam answers submitted")
	ErrInvalidMode       = errors.New("screen cannot be entered directly")
	// ErrStale means the session changed underneath a running request and
	// its result was discarded.
	ErrStale = errors.New("session changed while generating")
)

type Options struct {
	Logger  *logging.Logger
	Metrics *metrics.Metrics
}

// Service runs generation requests against the live session.
type Service struct {
	ctl     *session.Controller
	gen     generation.Generator
	notes   *notify.Center
	log     *logging.Logger
	metrics *metrics.Metrics
	busy    atomic.Bool
}

func NewService(ctl *session.Controller, gen generation.Generator, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Service{
		ctl:     ctl,
		gen:     gen,
		notes:   ctl.Notifications(),
		log:     opts.Logger.Named("study"),
		metrics: opts.Metrics,
	}
}

// Generate runs action over the current documents. It waits for the
// prior-session check first so a restore can never overwrite its results.
func (s *Service) Generate(ctx context.Context, action models.Action) error {
	if !action.Valid() {
		return fmt.Errorf("unknown action %q", action)
	}
	if err := s.ctl.WaitReady(ctx); err != nil {
		return err
	}
	st := s.ctl.State()
	if len(st.ScriptDocuments) == 0 {
		return ErrNoScriptDocuments
	}

	if action == models.ActionExam {
		if st.PracticeDocument == nil {
			return session.ErrPracticeRequired
		}
		return s.ctl.Update(func(next *session.State) error {
			next.Action = action
			next.Screen = models.ScreenExam
			return nil
		})
	}

	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.busy.Store(false)

	task := taskFor(action, st.PracticeDocument != nil)
	if err := s.ctl.Update(func(next *session.State) error {
		next.Action = action
		next.Screen = models.ScreenLoading
		return nil
	}); err != nil {
		return err
	}

	resp, err := s.gen.Generate(ctx, &generation.Request{
		Task:      task,
		Documents: st.ScriptDocuments,
		Practice:  st.PracticeDocument,
		Options: generation.Options{
			DetailLevel:   st.DetailLevel,
			StrictContext: st.StrictContext,
			Model:         st.Model,
		},
	})
	var set func(*models.GeneratedContent)
	if err == nil {
		set, err = decodeResult(task, resp)
	}
	if err == nil {
		err = s.ctl.Update(func(next *session.State) error {
			if next.Screen != models.ScreenLoading {
				return ErrStale
			}
			set(&next.Generated)
			next.Screen = models.ScreenResultsDashboard
			return nil
		})
	}
	if err != nil {
		s.fail(task, err)
		return err
	}
	s.metrics.ObserveGeneration(string(task), "ok")
	s.log.Info("generation finished", zap.String("task", string(task)))
	return nil
}

func (s *Service) fail(task generation.Task, err error) {
	s.metrics.ObserveGeneration(string(task), "error")
	if errors.Is(err, ErrStale) || errors.Is(err, session.ErrSessionPending) {
		s.log.Info("generation result discarded", zap.String("task", string(task)), zap.Error(err))
		return
	}
	s.log.Error("generation failed", zap.String("task", string(task)), zap.Error(err))
	updateErr := s.ctl.Update(func(next *session.State) error {
		if next.Screen != models.ScreenLoading {
			return ErrStale
		}
		next.Screen = models.ScreenError
		return nil
	})
	if updateErr != nil && !errors.Is(updateErr, ErrStale) {
		s.log.Warn("show error screen failed", zap.String("task", string(task)), zap.Error(updateErr))
	}
	s.notes.Push(notify.LevelError, fmt.Sprintf("Generation failed: %v", err))
}

// GradeExam grades the answers against the practice sheet and stores the results.
func (s *Service) GradeExam(ctx context.Context, answers []generation.ExamAnswer) ([]models.ExamResult, error) {
	if len(answers) == 0 {
		return nil, ErrNoAnswers
	}
	if err := s.ctl.WaitReady(ctx); err != nil {
		return nil, err
	}
	st := s.ctl.State()
	if len(st.ScriptDocuments) == 0 {
		return nil, ErrNoScriptDocuments
	}
	if st.PracticeDocument == nil {
		return nil, session.ErrPracticeRequired
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.busy.Store(false)

	resp, err := s.gen.Generate(ctx, &generation.Request{
		Task:      generation.TaskGradeExam,
		Documents: st.ScriptDocuments,
		Practice:  st.PracticeDocument,
		Options: generation.Options{
			DetailLevel:   st.DetailLevel,
			StrictContext: st.StrictContext,
			Model:         st.Model,
		},
		Answers: answers,
	})
	var results []models.ExamResult
	if err == nil {
		results, err = generation.DecodeExamResults(resp)
	}
	if err == nil {
		err = s.ctl.Update(func(next *session.State) error {
			if next.PracticeDocument != st.PracticeDocument {
				return ErrStale
			}
			next.Generated.SetExamResults(results)
			return nil
		})
	}
	if err != nil {
		s.metrics.ObserveGeneration(string(generation.TaskGradeExam), "error")
		s.log.Error("exam grading failed", zap.Error(err))
		s.notes.Push(notify.LevelError, fmt.Sprintf("Exam grading failed: %v", err))
		return nil, err
	}
	s.metrics.ObserveGeneration(string(generation.TaskGradeExam), "ok")
	return results, nil
}

// EnterMode switches to a practice or results screen.
func (s *Service) EnterMode(ctx context.Context, screen models.ScreenState) error {
	switch screen {
	case models.ScreenGuided, models.ScreenSimulation, models.ScreenExam, models.ScreenResultsDashboard:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidMode, screen)
	}
	if err := s.ctl.WaitReady(ctx); err != nil {
		return err
	}
	return s.ctl.SetScreen(screen)
}

func taskFor(action models.Action, hasPractice bool) generation.Task {
	switch action {
	case models.ActionConcepts:
		return generation.TaskConcepts
	case models.ActionFlashcards:
		return generation.TaskFlashcards
	}
	if hasPractice {
		return generation.TaskSolve
	}
	return generation.TaskGuide
}

// decodeResult parses a response and returns the setter that stores it.
func decodeResult(task generation.Task, resp *generation.Response) (func(*models.GeneratedContent), error) {
	switch task {
	case generation.TaskGuide:
		steps, err := generation.DecodeGuide(resp)
		if err != nil {
			return nil, err
		}
		return func(gc *models.GeneratedContent) { gc.SetGuide(steps) }, nil
	case generation.TaskSolve:
		solved, err := generation.DecodeSolved(resp)
		if err != nil {
			return nil, err
		}
		return func(gc *models.GeneratedContent) { gc.SetSolvedQuestions(solved) }, nil
	case generation.TaskConcepts:
		concepts, err := generation.DecodeConcepts(resp)
		if err != nil {
			return nil, err
		}
		return func(gc *models.GeneratedContent) { gc.SetKeyConcepts(concepts) }, nil
	case generation.TaskFlashcards:
		cards, err := generation.DecodeFlashcards(resp)
		if err != nil {
			return nil, err
		}
		return func(gc *models.GeneratedContent) { gc.SetFlashcards(cards) }, nil
	}
	return nil, fmt.Errorf("%w: %s", generation.ErrUnsupportedTask, task)
}
