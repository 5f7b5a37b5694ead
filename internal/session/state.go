package session

import (
	"errors"
	"fmt"

	"lernguide/internal/codec"
	"lernguide/internal/models"
)

var (
	ErrPracticeRequired = errors.New("this screen needs a practice document")
	ErrIndexOutOfRange  = errors.New("document index out of range")
)

// State is the live, in-memory session owned by the Controller.
// Documents are treated as immutable once added.
type State struct {
	Screen           models.ScreenState
	ScriptDocuments  []*models.Document
	PracticeDocument *models.Document
	Generated        models.GeneratedContent
	OpenPanelIndex   *int
	StrictContext    bool
	DetailLevel      models.DetailLevel
	Model            models.ModelChoice
	Action           models.Action

	// Version increases on every committed change.
	Version uint64
}

// DefaultState is the fresh-session state.
func DefaultState() State {
	return State{
		Screen:      models.ScreenInitial,
		DetailLevel: models.DetailStandard,
		Model:       models.ModelFlash,
		Action:      models.ActionGuide,
	}
}

func (s State) clone() State {
	out := s
	if s.ScriptDocuments != nil {
		out.ScriptDocuments = make([]*models.Document, len(s.ScriptDocuments))
		copy(out.ScriptDocuments, s.ScriptDocuments)
	}
	out.Generated = s.Generated.Clone()
	if s.OpenPanelIndex != nil {
		idx := *s.OpenPanelIndex
		out.OpenPanelIndex = &idx
	}
	return out
}

func (s *State) validate() error {
	if !s.Screen.Valid() {
		return fmt.Errorf("unknown screen %q", s.Screen)
	}
	if s.Screen.RequiresPractice() && s.PracticeDocument == nil {
		return ErrPracticeRequired
	}
	if !s.DetailLevel.Valid() {
		return fmt.Errorf("unknown detail level %q", s.DetailLevel)
	}
	if !s.Model.Valid() {
		return fmt.Errorf("unknown model %q", s.Model)
	}
	if !s.Action.Valid() {
		return fmt.Errorf("unknown action %q", s.Action)
	}
	if s.OpenPanelIndex != nil && *s.OpenPanelIndex < 0 {
		return fmt.Errorf("open panel index must not be negative")
	}
	return nil
}

// Snapshot encodes the state into its persisted form.
func (s State) Snapshot() *models.SessionSnapshot {
	snap := &models.SessionSnapshot{
		ScreenState:       s.Screen,
		ScriptDocuments:   make([]models.BinaryPayload, 0, len(s.ScriptDocuments)),
		GeneratedContent:  s.Generated.Clone(),
		StrictContextFlag: s.StrictContext,
		DetailLevel:       s.DetailLevel,
		SelectedModel:     s.Model,
		SelectedAction:    s.Action,
	}
	for _, doc := range s.ScriptDocuments {
		snap.ScriptDocuments = append(snap.ScriptDocuments, codec.EncodeDocument(doc))
	}
	if s.PracticeDocument != nil {
		p := codec.EncodeDocument(s.PracticeDocument)
		snap.PracticeDocument = &p
	}
	if s.OpenPanelIndex != nil {
		idx := *s.OpenPanelIndex
		snap.OpenPanelIndex = &idx
	}
	return snap
}

// restoreState rebuilds live state from a snapshot. Every payload is decoded
// before anything is returned, so a failure yields no partial state.
func restoreState(snap *models.SessionSnapshot) (State, error) {
	if err := snap.Validate(); err != nil {
		return State{}, err
	}
	st := DefaultState()
	st.Screen = snap.ScreenState
	st.ScriptDocuments = make([]*models.Document, 0, len(snap.ScriptDocuments))
	for _, p := range snap.ScriptDocuments {
		doc, err := codec.DecodePayload(p)
		if err != nil {
			return State{}, err
		}
		st.ScriptDocuments = append(st.ScriptDocuments, doc)
	}
	if snap.PracticeDocument != nil {
		doc, err := codec.DecodePayload(*snap.PracticeDocument)
		if err != nil {
			return State{}, err
		}
		st.PracticeDocument = doc
	}
	st.Generated = snap.GeneratedContent.Clone()
	if snap.OpenPanelIndex != nil {
		idx := *snap.OpenPanelIndex
		st.OpenPanelIndex = &idx
	}
	st.StrictContext = snap.StrictContextFlag
	if snap.DetailLevel != "" {
		st.DetailLevel = snap.DetailLevel
	}
	if snap.SelectedModel != "" {
		st.Model = snap.SelectedModel
	}
	if snap.SelectedAction != "" {
		st.Action = snap.SelectedAction
	}
	if err := st.validate(); err != nil {
		return State{}, err
	}
	return st, nil
}
