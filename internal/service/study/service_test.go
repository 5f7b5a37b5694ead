package study

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"lernguide/internal/logging"
	"lernguide/internal/medium"
	"lernguide/internal/models"
	"lernguide/internal/notify"
	"lernguide/internal/service/generation"
	"lernguide/internal/session"
	"lernguide/internal/store"
)

type fakeGenerator struct {
	mu    sync.Mutex
	raw   map[generation.Task]string
	err   error
	tasks []generation.Task
	last  *generation.Request
	hold  chan struct{}
}

func (f *fakeGenerator) Generate(ctx context.Context, req *generation.Request) (*generation.Response, error) {
	if f.hold != nil {
		<-f.hold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, req.Task)
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &generation.Response{Raw: []byte(f.raw[req.Task])}, nil
}

func newTestService(t *testing.T, gen generation.Generator) (*Service, *session.Controller, *store.Store) {
	t.Helper()
	st := store.New(medium.NewMemory(0), "", nil, nil)
	ctl := session.New(st, session.Options{})
	t.Cleanup(func() { _ = ctl.Close(context.Background()) })
	return NewService(ctl, gen, Options{}), ctl, st
}

func start(t *testing.T, ctl *session.Controller) {
	t.Helper()
	_, err := ctl.Start(context.Background())
	require.NoError(t, err)
}

func lecture() *models.Document {
	return &models.Document{Name: "lecture.pdf", MimeType: "application/pdf", LastModified: 1700000000000, Data: []byte("%PDF-1.4 intro")}
}

func sheet() *models.Document {
	return &models.Document{Name: "sheet.pdf", MimeType: "application/pdf", LastModified: 1700000000001, Data: []byte("%PDF-1.4 q1")}
}

func TestGenerateGuideIsPersisted(t *testing.T) {
	gen := &fakeGenerator{raw: map[generation.Task]string{
		generation.TaskGuide: `[{"title":"Intro","content":"Vectors and scalars"}]`,
	}}
	svc, ctl, st := newTestService(t, gen)
	ctx := context.Background()
	start(t, ctl)

	require.NoError(t, ctl.AddScriptDocuments(lecture()))
	require.NoError(t, svc.Generate(ctx, models.ActionGuide))

	state := ctl.State()
	assert.Equal(t, models.ScreenResultsDashboard, state.Screen)
	assert.Equal(t, []models.GuideStep{{Title: "Intro", Content: "Vectors and scalars"}}, state.Generated.Guide)
	assert.Equal(t, []generation.Task{generation.TaskGuide}, gen.tasks)

	require.NoError(t, ctl.Flush(ctx))
	snap := st.Load(ctx)
	require.NotNil(t, snap)
	assert.Equal(t, models.ScreenResultsDashboard, snap.ScreenState)
	require.Len(t, snap.GeneratedContent.Guide, 1)
	assert.Equal(t, "Intro", snap.GeneratedContent.Guide[0].Title)
	assert.Equal(t, models.ActionGuide, snap.SelectedAction)
}

func TestGenerateGuideWithPracticeSolvesQuestions(t *testing.T) {
	gen := &fakeGenerator{raw: map[generation.Task]string{
		generation.TaskGuide: `[{"title":"Intro","content":"x"}]`,
		generation.TaskSolve: "```json\n[{\"question\":\"Q1\",\"steps\":[\"a\"],\"answer\":\"42\"}]\n```",
	}}
	svc, ctl, _ := newTestService(t, gen)
	ctx := context.Background()
	start(t, ctl)

	require.NoError(t, ctl.AddScriptDocuments(lecture()))
	require.NoError(t, svc.Generate(ctx, models.ActionGuide))
	require.True(t, ctl.State().Generated.HasGuide())

	require.NoError(t, ctl.SetPracticeDocument(sheet()))
	require.NoError(t, svc.Generate(ctx, models.ActionGuide))

	state := ctl.State()
	assert.False(t, state.Generated.HasGuide())
	require.Len(t, state.Generated.SolvedQuestions, 1)
	assert.Equal(t, "42", state.Generated.SolvedQuestions[0].Answer)
	assert.Equal(t, "sheet.pdf", gen.last.Practice.Name)
}

func TestGenerateRequiresScriptDocuments(t *testing.T) {
	gen := &fakeGenerator{}
	svc, ctl, _ := newTestService(t, gen)
	start(t, ctl)

	err := svc.Generate(context.Background(), models.ActionConcepts)
	assert.ErrorIs(t, err, ErrNoScriptDocuments)
	assert.Empty(t, gen.tasks)
}

func TestGenerateWaitsForPriorSessionChoice(t *testing.T) {
	gen := &fakeGenerator{raw: map[generation.Task]string{
		generation.TaskConcepts: `[{"term":"Vector","definition":"magnitude and direction"}]`,
	}}
	st := store.New(medium.NewMemory(0), "", nil, nil)
	ctx := context.Background()

	seed := session.DefaultState()
	seed.Screen = models.ScreenResultsDashboard
	seed.ScriptDocuments = []*models.Document{lecture()}
	require.NoError(t, st.Save(ctx, seed.Snapshot()))

	ctl := session.New(st, session.Options{})
	t.Cleanup(func() { _ = ctl.Close(context.Background()) })
	svc := NewService(ctl, gen, Options{})
	prior, err := ctl.Start(ctx)
	require.NoError(t, err)
	require.NotNil(t, prior)

	done := make(chan error, 1)
	go func() { done <- svc.Generate(ctx, models.ActionConcepts) }()

	select {
	case err := <-done:
		t.Fatalf("generate returned before the choice was made: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, ctl.Continue(ctx))
	require.NoError(t, <-done)
	state := ctl.State()
	require.Len(t, state.Generated.KeyConcepts, 1)
	assert.Equal(t, "Vector", state.Generated.KeyConcepts[0].Term)
}

func TestGenerateFailureShowsErrorScreen(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("upstream down")}
	svc, ctl, _ := newTestService(t, gen)
	start(t, ctl)
	require.NoError(t, ctl.AddScriptDocuments(lecture()))

	err := svc.Generate(context.Background(), models.ActionFlashcards)
	require.Error(t, err)
	assert.Equal(t, models.ScreenError, ctl.State().Screen)

	var errorsSeen int
	for _, n := range ctl.Notifications().List() {
		if n.Level == notify.LevelError {
			errorsSeen++
		}
	}
	assert.Equal(t, 1, errorsSeen)
}

func TestGenerateMalformedResponse(t *testing.T) {
	gen := &fakeGenerator{raw: map[generation.Task]string{generation.TaskFlashcards: "sorry, no cards"}}
	svc, ctl, _ := newTestService(t, gen)
	start(t, ctl)
	require.NoError(t, ctl.AddScriptDocuments(lecture()))

	require.Error(t, svc.Generate(context.Background(), models.ActionFlashcards))
	state := ctl.State()
	assert.Equal(t, models.ScreenError, state.Screen)
	assert.False(t, state.Generated.HasFlashcards())
}

func TestResetDuringGenerationDiscardsResult(t *testing.T) {
	gen := &fakeGenerator{
		raw:  map[generation.Task]string{generation.TaskGuide: `[{"title":"Intro","content":"x"}]`},
		hold: make(chan struct{}),
	}
	svc, ctl, _ := newTestService(t, gen)
	ctx := context.Background()
	start(t, ctl)
	require.NoError(t, ctl.AddScriptDocuments(lecture()))

	done := make(chan error, 1)
	go func() { done <- svc.Generate(ctx, models.ActionGuide) }()
	require.Eventually(t, func() bool { return ctl.State().Screen == models.ScreenLoading }, time.Second, 5*time.Millisecond)

	ctl.Reset(ctx)
	close(gen.hold)

	assert.ErrorIs(t, <-done, ErrStale)
	state := ctl.State()
	assert.Equal(t, models.ScreenInitial, state.Screen)
	assert.True(t, state.Generated.IsEmpty())
	assert.Empty(t, state.ScriptDocuments)
}

func TestExamActionNeedsPracticeDocument(t *testing.T) {
	gen := &fakeGenerator{}
	svc, ctl, _ := newTestService(t, gen)
	ctx := context.Background()
	start(t, ctl)
	require.NoError(t, ctl.AddScriptDocuments(lecture()))

	assert.ErrorIs(t, svc.Generate(ctx, models.ActionExam), session.ErrPracticeRequired)

	require.NoError(t, ctl.SetPracticeDocument(sheet()))
	require.NoError(t, svc.Generate(ctx, models.ActionExam))
	state := ctl.State()
	assert.Equal(t, models.ScreenExam, state.Screen)
	assert.Equal(t, models.ActionExam, state.Action)
	assert.Empty(t, gen.tasks)
}

func TestGradeExamStoresResults(t *testing.T) {
	gen := &fakeGenerator{raw: map[generation.Task]string{
		generation.TaskGradeExam: `[{"question":"Q1","userAnswer":"41","feedback":"off by one","correct":false}]`,
	}}
	svc, ctl, _ := newTestService(t, gen)
	ctx := context.Background()
	start(t, ctl)
	require.NoError(t, ctl.AddScriptDocuments(lecture()))

	_, err := svc.GradeExam(ctx, nil)
	assert.ErrorIs(t, err, ErrNoAnswers)
	_, err = svc.GradeExam(ctx, []generation.ExamAnswer{{Question: "Q1", Answer: "41"}})
	assert.ErrorIs(t, err, session.ErrPracticeRequired)

	require.NoError(t, ctl.SetPracticeDocument(sheet()))
	require.NoError(t, svc.Generate(ctx, models.ActionExam))
	results, err := svc.GradeExam(ctx, []generation.ExamAnswer{{Question: "Q1", Answer: "41"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Correct)
	assert.Equal(t, results, ctl.State().Generated.ExamResults)
	assert.Equal(t, []generation.ExamAnswer{{Question: "Q1", Answer: "41"}}, gen.last.Answers)
}

func TestEnterMode(t *testing.T) {
	svc, ctl, _ := newTestService(t, &fakeGenerator{})
	ctx := context.Background()
	start(t, ctl)

	assert.ErrorIs(t, svc.EnterMode(ctx, models.ScreenLoading), ErrInvalidMode)
	assert.ErrorIs(t, svc.EnterMode(ctx, models.ScreenGuided), session.ErrPracticeRequired)

	require.NoError(t, ctl.SetPracticeDocument(sheet()))
	require.NoError(t, svc.EnterMode(ctx, models.ScreenSimulation))
	assert.Equal(t, models.ScreenSimulation, ctl.State().Screen)
}

func TestFailLogsScreenUpdateErrors(t *testing.T) {
	ctx := context.Background()
	st := store.New(medium.NewMemory(0), "", nil, nil)
	require.NoError(t, st.Save(ctx, &models.SessionSnapshot{
		ScreenState:     models.ScreenResultsDashboard,
		ScriptDocuments: []models.BinaryPayload{},
	}))
	ctl := session.New(st, session.Options{})
	t.Cleanup(func() { _ = ctl.Close(context.Background()) })
	prior, err := ctl.Start(ctx)
	require.NoError(t, err)
	require.NotNil(t, prior)

	core, logs := observer.New(zapcore.DebugLevel)
	svc := NewService(ctl, &fakeGenerator{}, Options{Logger: &logging.Logger{Logger: zap.New(core)}})

	svc.fail(generation.TaskGuide, errors.New("model offline"))

	warned := logs.FilterMessage("show error screen failed").All()
	require.Len(t, warned, 1)
	var logged error
	for _, f := range warned[0].Context {
		if f.Key == "error" {
			logged, _ = f.Interface.(error)
		}
	}
	assert.ErrorIs(t, logged, session.ErrSessionPending)
	assert.Len(t, ctl.Notifications().List(), 1)
}
