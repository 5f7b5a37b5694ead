package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
)

var (
	ErrMalformedSnapshot = errors.New("snapshot is not valid json")
	ErrInvalidSnapshot   = errors.New("snapshot failed validation")
)

// SessionSnapshot is the single persisted unit of resumable state.
type SessionSnapshot struct {
	ScreenState       ScreenState      `json:"screenState" validate:"required,oneof=initial loading resultsDashboard error guided exam simulation"`
	ScriptDocuments   []BinaryPayload  `json:"scriptDocuments" validate:"required,dive"`
	PracticeDocument  *BinaryPayload   `json:"practiceDocument,omitempty"`
	GeneratedContent  GeneratedContent `json:"generatedContent"`
	OpenPanelIndex    *int             `json:"openPanelIndex,omitempty" validate:"omitempty,min=0"`
	StrictContextFlag bool             `json:"strictContextFlag"`
	DetailLevel       DetailLevel      `json:"detailLevel,omitempty" validate:"omitempty,oneof=overview standard detailed eli5"`
	SelectedModel     ModelChoice      `json:"selectedModel,omitempty" validate:"omitempty,oneof=gemini-2.5-flash gemini-2.5-pro"`
	SelectedAction    Action           `json:"selectedAction,omitempty" validate:"omitempty,oneof=guide concepts flashcards exam"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(snapshotStructLevel, SessionSnapshot{})
	return v
}

func snapshotStructLevel(sl validator.StructLevel) {
	s := sl.Current().Interface().(SessionSnapshot)
	if s.ScreenState.RequiresPractice() && s.PracticeDocument == nil {
		sl.ReportError(s.PracticeDocument, "practiceDocument", "PracticeDocument", "required_for_screen", string(s.ScreenState))
	}
}

// Validate runs the structural checks applied to stored and imported snapshots.
func (s *SessionSnapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalidSnapshot)
	}
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return nil
}

// IsValidSnapshot reports whether candidate passes structural validation.
func IsValidSnapshot(candidate *SessionSnapshot) bool {
	return candidate.Validate() == nil
}

// ParseSnapshot decodes and validates a snapshot. Nothing is partially adopted:
// any failure returns a nil snapshot.
func ParseSnapshot(data []byte) (*SessionSnapshot, error) {
	var snap SessionSnapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Marshal encodes the snapshot as compact JSON.
func (s *SessionSnapshot) Marshal() ([]byte, error) {
	return sonic.Marshal(s.wire())
}

// MarshalIndent encodes the snapshot as two-space indented JSON.
func (s *SessionSnapshot) MarshalIndent() ([]byte, error) {
	return sonic.MarshalIndent(s.wire(), "", "  ")
}

// wire returns a shallow copy whose document list encodes as [] rather than null.
func (s *SessionSnapshot) wire() *SessionSnapshot {
	out := *s
	if out.ScriptDocuments == nil {
		out.ScriptDocuments = []BinaryPayload{}
	}
	return &out
}
