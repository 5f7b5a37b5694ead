package models

// ScreenState is the top-level screen the application resumes into.
type ScreenState string

const (
	ScreenInitial          ScreenState = "initial"
	ScreenLoading          ScreenState = "loading"
	ScreenResultsDashboard ScreenState = "resultsDashboard"
	ScreenError            ScreenState = "error"
	ScreenGuided           ScreenState = "guided"
	ScreenExam             ScreenState = "exam"
	ScreenSimulation       ScreenState = "simulation"
)

func (s ScreenState) Valid() bool {
	switch s {
	case ScreenInitial, ScreenLoading, ScreenResultsDashboard, ScreenError,
		ScreenGuided, ScreenExam, ScreenSimulation:
		return true
	}
	return false
}

// IsTransient reports bootstrap/in-progress screens that are never persisted.
func (s ScreenState) IsTransient() bool {
	return s == ScreenInitial || s == ScreenLoading
}

// RequiresPractice reports screens that cannot exist without a practice document.
func (s ScreenState) RequiresPractice() bool {
	return s == ScreenGuided || s == ScreenExam || s == ScreenSimulation
}

type DetailLevel string

const (
	DetailOverview DetailLevel = "overview"
	DetailStandard DetailLevel = "standard"
	DetailDetailed DetailLevel = "detailed"
	DetailELI5     DetailLevel = "eli5"
)

func (d DetailLevel) Valid() bool {
	switch d {
	case DetailOverview, DetailStandard, DetailDetailed, DetailELI5:
		return true
	}
	return false
}

// ModelChoice identifies the backend model variant.
type ModelChoice string

const (
	ModelFlash ModelChoice = "gemini-2.5-flash"
	ModelPro   ModelChoice = "gemini-2.5-pro"
)

func (m ModelChoice) Valid() bool {
	return m == ModelFlash || m == ModelPro
}

// Action is the last chosen generation action.
type Action string

const (
	ActionGuide      Action = "guide"
	ActionConcepts   Action = "concepts"
	ActionFlashcards Action = "flashcards"
	ActionExam       Action = "exam"
)

func (a Action) Valid() bool {
	switch a {
	case ActionGuide, ActionConcepts, ActionFlashcards, ActionExam:
		return true
	}
	return false
}
