package api

import (
	"lernguide/internal/models"
	"lernguide/internal/session"
)

// sessionView is the live session without document bytes.
type sessionView struct {
	Phase             session.Phase           `json:"phase"`
	Resolved          bool                    `json:"resolved"`
	QuotaExceeded     bool                    `json:"quotaExceeded"`
	ScreenState       models.ScreenState      `json:"screenState"`
	ScriptDocuments   []models.DocumentInfo   `json:"scriptDocuments"`
	PracticeDocument  *models.DocumentInfo    `json:"practiceDocument,omitempty"`
	GeneratedContent  models.GeneratedContent `json:"generatedContent"`
	OpenPanelIndex    *int                    `json:"openPanelIndex,omitempty"`
	StrictContextFlag bool                    `json:"strictContextFlag"`
	DetailLevel       models.DetailLevel      `json:"detailLevel"`
	SelectedModel     models.ModelChoice      `json:"selectedModel"`
	SelectedAction    models.Action           `json:"selectedAction"`
}

func (h *Handler) view() sessionView {
	st := h.session.State()
	v := sessionView{
		Phase:             h.session.Phase(),
		Resolved:          h.session.Resolved(),
		QuotaExceeded:     h.session.QuotaExceeded(),
		ScreenState:       st.Screen,
		ScriptDocuments:   make([]models.DocumentInfo, 0, len(st.ScriptDocuments)),
		GeneratedContent:  st.Generated,
		OpenPanelIndex:    st.OpenPanelIndex,
		StrictContextFlag: st.StrictContext,
		DetailLevel:       st.DetailLevel,
		SelectedModel:     st.Model,
		SelectedAction:    st.Action,
	}
	for _, doc := range st.ScriptDocuments {
		v.ScriptDocuments = append(v.ScriptDocuments, doc.Info())
	}
	if st.PracticeDocument != nil {
		info := st.PracticeDocument.Info()
		v.PracticeDocument = &info
	}
	return v
}

// priorView summarizes a stored session awaiting the continue/new choice.
type priorView struct {
	ScreenState      models.ScreenState      `json:"screenState"`
	ScriptDocuments  []string                `json:"scriptDocuments"`
	PracticeDocument string                  `json:"practiceDocument,omitempty"`
	GeneratedContent models.GeneratedContent `json:"generatedContent"`
}

func newPriorView(snap *models.SessionSnapshot) priorView {
	v := priorView{
		ScreenState:      snap.ScreenState,
		ScriptDocuments:  make([]string, 0, len(snap.ScriptDocuments)),
		GeneratedContent: snap.GeneratedContent,
	}
	for _, p := range snap.ScriptDocuments {
		v.ScriptDocuments = append(v.ScriptDocuments, p.Name)
	}
	if snap.PracticeDocument != nil {
		v.PracticeDocument = snap.PracticeDocument.Name
	}
	return v
}
