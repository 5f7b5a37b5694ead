package models

type GuideStep struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type SolvedQuestion struct {
	Question string   `json:"question"`
	Steps    []string `json:"steps,omitempty"`
	Answer   string   `json:"answer"`
}

type KeyConcept struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

type ExamResult struct {
	Question   string `json:"question"`
	UserAnswer string `json:"userAnswer"`
	Feedback   string `json:"feedback"`
	Correct    bool   `json:"correct"`
}

// GeneratedContent holds every artifact produced so far. An artifact is present
// iff its slice is non-empty. Guide and SolvedQuestions are kept mutually
// exclusive by the setters; the decoder does not enforce it.
type GeneratedContent struct {
	Guide           []GuideStep      `json:"guide,omitempty" validate:"omitempty,dive"`
	SolvedQuestions []SolvedQuestion `json:"solvedQuestions,omitempty" validate:"omitempty,dive"`
	KeyConcepts     []KeyConcept     `json:"keyConcepts,omitempty" validate:"omitempty,dive"`
	Flashcards      []Flashcard      `json:"flashcards,omitempty" validate:"omitempty,dive"`
	ExamResults     []ExamResult     `json:"examResults,omitempty" validate:"omitempty,dive"`
}

func (g GeneratedContent) HasGuide() bool           { return len(g.Guide) > 0 }
func (g GeneratedContent) HasSolvedQuestions() bool { return len(g.SolvedQuestions) > 0 }
func (g GeneratedContent) HasKeyConcepts() bool     { return len(g.KeyConcepts) > 0 }
func (g GeneratedContent) HasFlashcards() bool      { return len(g.Flashcards) > 0 }
func (g GeneratedContent) HasExamResults() bool     { return len(g.ExamResults) > 0 }

// IsEmpty reports whether no artifact is present.
func (g GeneratedContent) IsEmpty() bool {
	return !g.HasGuide() && !g.HasSolvedQuestions() && !g.HasKeyConcepts() &&
		!g.HasFlashcards() && !g.HasExamResults()
}

// SetGuide stores guide steps and drops solved questions.
func (g *GeneratedContent) SetGuide(steps []GuideStep) {
	g.Guide = steps
	g.SolvedQuestions = nil
}

// SetSolvedQuestions stores solved questions and drops the guide.
func (g *GeneratedContent) SetSolvedQuestions(qs []SolvedQuestion) {
	g.SolvedQuestions = qs
	g.Guide = nil
}

func (g *GeneratedContent) SetKeyConcepts(cs []KeyConcept) { g.KeyConcepts = cs }
func (g *GeneratedContent) SetFlashcards(fs []Flashcard)   { g.Flashcards = fs }
func (g *GeneratedContent) SetExamResults(rs []ExamResult) { g.ExamResults = rs }

// Clone returns a copy that shares no slices with g.
func (g GeneratedContent) Clone() GeneratedContent {
	out := GeneratedContent{
		Guide:       cloneSlice(g.Guide),
		KeyConcepts: cloneSlice(g.KeyConcepts),
		Flashcards:  cloneSlice(g.Flashcards),
		ExamResults: cloneSlice(g.ExamResults),
	}
	if g.SolvedQuestions != nil {
		out.SolvedQuestions = make([]SolvedQuestion, len(g.SolvedQuestions))
		for i, q := range g.SolvedQuestions {
			q.Steps = cloneSlice(q.Steps)
			out.SolvedQuestions[i] = q
		}
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if len(in) == 0 {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
