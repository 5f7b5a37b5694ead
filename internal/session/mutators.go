package session

import (
	"fmt"

	"lernguide/internal/models"
)

func (c *Controller) AddScriptDocuments(docs ...*models.Document) error {
	return c.Update(func(s *State) error {
		s.ScriptDocuments = append(s.ScriptDocuments, docs...)
		return nil
	})
}

func (c *Controller) RemoveScriptDocument(index int) error {
	return c.Update(func(s *State) error {
		if index < 0 || index >= len(s.ScriptDocuments) {
			return ErrIndexOutOfRange
		}
		s.ScriptDocuments = append(s.ScriptDocuments[:index], s.ScriptDocuments[index+1:]...)
		return nil
	})
}

// SetPracticeDocument replaces the practice document; nil removes it. Removing
// it while on a practice screen moves back to the dashboard or start screen.
func (c *Controller) SetPracticeDocument(doc *models.Document) error {
	return c.Update(func(s *State) error {
		s.PracticeDocument = doc
		if doc == nil && s.Screen.RequiresPractice() {
			if s.Generated.IsEmpty() {
				s.Screen = models.ScreenInitial
			} else {
				s.Screen = models.ScreenResultsDashboard
			}
		}
		return nil
	})
}

func (c *Controller) SetScreen(screen models.ScreenState) error {
	return c.Update(func(s *State) error {
		s.Screen = screen
		return nil
	})
}

func (c *Controller) SetOpenPanel(index *int) error {
	return c.Update(func(s *State) error {
		s.OpenPanelIndex = index
		return nil
	})
}

func (c *Controller) SetStrictContext(strict bool) error {
	return c.Update(func(s *State) error {
		s.StrictContext = strict
		return nil
	})
}

func (c *Controller) SetDetailLevel(level models.DetailLevel) error {
	return c.Update(func(s *State) error {
		s.DetailLevel = level
		return nil
	})
}

func (c *Controller) SetModel(model models.ModelChoice) error {
	return c.Update(func(s *State) error {
		s.Model = model
		return nil
	})
}

func (c *Controller) SetAction(action models.Action) error {
	return c.Update(func(s *State) error {
		s.Action = action
		return nil
	})
}

// UpdateGenerated edits the generated content in place.
func (c *Controller) UpdateGenerated(fn func(*models.GeneratedContent)) error {
	return c.Update(func(s *State) error {
		fn(&s.Generated)
		return nil
	})
}

// Settings is a partial update of the user's configuration; nil fields are kept.
type Settings struct {
	StrictContext  *bool               `json:"strictContextFlag,omitempty"`
	DetailLevel    *models.DetailLevel `json:"detailLevel,omitempty"`
	Model          *models.ModelChoice `json:"selectedModel,omitempty"`
	Action         *models.Action      `json:"selectedAction,omitempty"`
	OpenPanelIndex *int                `json:"openPanelIndex,omitempty"`
	ClosePanel     bool                `json:"closePanel,omitempty"`
}

// ApplySettings commits all fields of a settings update as one change.
func (c *Controller) ApplySettings(in Settings) error {
	return c.Update(func(s *State) error {
		if in.StrictContext != nil {
			s.StrictContext = *in.StrictContext
		}
		if in.DetailLevel != nil {
			s.DetailLevel = *in.DetailLevel
		}
		if in.Model != nil {
			s.Model = *in.Model
		}
		if in.Action != nil {
			s.Action = *in.Action
		}
		if in.ClosePanel {
			s.OpenPanelIndex = nil
		} else if in.OpenPanelIndex != nil {
			if *in.OpenPanelIndex < 0 {
				return fmt.Errorf("open panel index must not be negative")
			}
			idx := *in.OpenPanelIndex
			s.OpenPanelIndex = &idx
		}
		return nil
	})
}
