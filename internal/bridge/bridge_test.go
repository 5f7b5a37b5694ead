package bridge

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lernguide/internal/models"
)

func TestFileName(t *testing.T) {
	now := time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "lern-guide-session-2024-03-09.json", FileName(now))
}

func TestExportImportRoundTrip(t *testing.T) {
	panel := 0
	snap := &models.SessionSnapshot{
		ScreenState: models.ScreenExam,
		ScriptDocuments: []models.BinaryPayload{
			{Name: "a.pdf", MimeType: "application/pdf", LastModifiedTimestamp: 5, Data: "AAEC"},
		},
		PracticeDocument: &models.BinaryPayload{Name: "sheet.txt", MimeType: "text/plain", Data: "aGk="},
		GeneratedContent: models.GeneratedContent{
			Flashcards:  []models.Flashcard{{Front: "Q", Back: "A"}},
			ExamResults: []models.ExamResult{{Question: "1", UserAnswer: "2", Feedback: "ok", Correct: true}},
		},
		OpenPanelIndex:    &panel,
		StrictContextFlag: true,
		DetailLevel:       models.DetailELI5,
		SelectedModel:     models.ModelFlash,
		SelectedAction:    models.ActionExam,
	}

	data, err := Export(snap)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n  \""), "export should be indented: %s", data[:20])

	got, err := Import("lern-guide-session-2024-03-09.json", "application/json", data)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestImportRejectsNonJSONFilesBeforeParsing(t *testing.T) {
	valid := []byte(`{"screenState":"error","scriptDocuments":[]}`)
	cases := []struct {
		name, file, typ string
		content         []byte
	}{
		{"wrong extension", "notes.txt", "text/plain", valid},
		{"declared pdf", "session.json", "application/pdf", valid},
		{"binary content", "session.json", "", []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Import(tc.file, tc.typ, tc.content)
			var impErr *ImportError
			require.True(t, errors.As(err, &impErr))
			assert.ErrorIs(t, err, ErrNotJSONFile)
		})
	}
}

func TestImportRejectsInvalidContent(t *testing.T) {
	_, err := Import("s.json", "application/json", []byte(`{"scriptDocuments":[]}`))
	var impErr *ImportError
	require.True(t, errors.As(err, &impErr))
	assert.ErrorIs(t, err, models.ErrInvalidSnapshot)

	_, err = Import("s.json", "", []byte(`{not json`))
	require.True(t, errors.As(err, &impErr))
	assert.ErrorIs(t, err, models.ErrMalformedSnapshot)
}
