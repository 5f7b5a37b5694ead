package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lernguide/internal/medium"
	"lernguide/internal/models"
)

type faultyMedium struct {
	*medium.Memory
	setErr    error
	getErr    error
	setCalls  int
	removeErr error
}

func (f *faultyMedium) SetItem(ctx context.Context, key, value string) error {
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	return f.Memory.SetItem(ctx, key, value)
}

func (f *faultyMedium) GetItem(ctx context.Context, key string) (string, bool, error) {
	if f.getErr != nil {
		return "", false, f.getErr
	}
	return f.Memory.GetItem(ctx, key)
}

func (f *faultyMedium) RemoveItem(ctx context.Context, key string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	return f.Memory.RemoveItem(ctx, key)
}

func newFaulty() *faultyMedium {
	return &faultyMedium{Memory: medium.NewMemory(0)}
}

func sampleSnapshot() *models.SessionSnapshot {
	return &models.SessionSnapshot{
		ScreenState: models.ScreenResultsDashboard,
		ScriptDocuments: []models.BinaryPayload{
			{Name: "a.pdf", MimeType: "application/pdf", LastModifiedTimestamp: 1, Data: "AAEC"},
			{Name: "b.pdf", MimeType: "application/pdf", LastModifiedTimestamp: 2, Data: "AwQF"},
		},
		GeneratedContent: models.GeneratedContent{
			Guide: []models.GuideStep{{Title: "Intro", Content: "..."}},
		},
		DetailLevel:    models.DetailDetailed,
		SelectedModel:  models.ModelPro,
		SelectedAction: models.ActionGuide,
	}
}

func TestSaveTwiceLoadsEquivalent(t *testing.T) {
	ctx := context.Background()
	s := New(medium.NewMemory(0), "", nil, nil)
	snap := sampleSnapshot()

	require.NoError(t, s.Save(ctx, snap))
	require.NoError(t, s.Save(ctx, snap))

	got := s.Load(ctx)
	require.NotNil(t, got)
	assert.Equal(t, snap, got)
}

func TestLoadAbsent(t *testing.T) {
	s := New(medium.NewMemory(0), "", nil, nil)
	assert.Nil(t, s.Load(context.Background()))
}

func TestLoadCorruptValueClearsKey(t *testing.T) {
	ctx := context.Background()
	mem := medium.NewMemory(0)
	s := New(mem, "", nil, nil)

	for _, raw := range []string{"{not json", `{"scriptDocuments":[]}`, `[]`} {
		require.NoError(t, mem.SetItem(ctx, DefaultKey, raw))
		assert.Nil(t, s.Load(ctx))
		_, found, err := mem.GetItem(ctx, DefaultKey)
		require.NoError(t, err)
		assert.False(t, found, "corrupt value %q must be cleared", raw)
	}
}

func TestLoadReadErrorIsSwallowed(t *testing.T) {
	m := newFaulty()
	m.getErr = errors.New("disabled by host")
	s := New(m, "", nil, nil)
	assert.Nil(t, s.Load(context.Background()))
}

func TestSaveRefusesTransientScreens(t *testing.T) {
	m := newFaulty()
	s := New(m, "", nil, nil)
	for _, screen := range []models.ScreenState{models.ScreenInitial, models.ScreenLoading} {
		snap := sampleSnapshot()
		snap.ScreenState = screen
		assert.ErrorIs(t, s.Save(context.Background(), snap), ErrTransientState)
	}
	assert.Zero(t, m.setCalls)
}

func TestSaveErrorClassification(t *testing.T) {
	ctx := context.Background()

	m := newFaulty()
	m.setErr = medium.ErrQuotaExceeded
	err := New(m, "", nil, nil).Save(ctx, sampleSnapshot())
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.NotErrorIs(t, err, ErrStorageUnavailable)

	cause := errors.New("storage disabled")
	m.setErr = cause
	err = New(m, "", nil, nil).Save(ctx, sampleSnapshot())
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, cause)
}

func TestSaveQuotaFromRealCapacity(t *testing.T) {
	s := New(medium.NewMemory(64), "", nil, nil)
	assert.ErrorIs(t, s.Save(context.Background(), sampleSnapshot()), ErrQuotaExceeded)
}

func TestClearNeverFails(t *testing.T) {
	ctx := context.Background()
	m := newFaulty()
	s := New(m, "custom-key", nil, nil)
	require.NoError(t, s.Save(ctx, sampleSnapshot()))

	m.removeErr = errors.New("boom")
	s.Clear(ctx)
	assert.NotNil(t, s.Load(ctx))

	m.removeErr = nil
	s.Clear(ctx)
	assert.Nil(t, s.Load(ctx))
	s.Clear(ctx)
}
