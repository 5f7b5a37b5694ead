package bridge

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"lernguide/internal/models"
)

const (
	FilePrefix  = "lern-guide-session-"
	ContentType = "application/json"
)

// ErrNotJSONFile rejects an import before its content is parsed.
var ErrNotJSONFile = errors.New("only .json session files can be imported")

// ImportError reports a rejected session file. Live state is never touched.
type ImportError struct {
	File string
	Err  error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %s: %v", e.File, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// FileName returns the download name for an export made at now.
func FileName(now time.Time) string {
	return FilePrefix + now.UTC().Format("2006-01-02") + ".json"
}

// Export encodes snap as two-space indented JSON.
func Export(snap *models.SessionSnapshot) ([]byte, error) {
	if snap == nil {
		return nil, errors.New("snapshot required")
	}
	data, err := snap.MarshalIndent()
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return data, nil
}

// Import checks that the file looks like JSON, then parses and validates it.
func Import(filename, declaredType string, content []byte) (*models.SessionSnapshot, error) {
	if err := checkJSONFile(filename, declaredType, content); err != nil {
		return nil, &ImportError{File: filename, Err: err}
	}
	snap, err := models.ParseSnapshot(content)
	if err != nil {
		return nil, &ImportError{File: filename, Err: err}
	}
	return snap, nil
}

func checkJSONFile(filename, declaredType string, content []byte) error {
	if !strings.EqualFold(filepath.Ext(filename), ".json") {
		return ErrNotJSONFile
	}
	if declaredType != "" {
		mediaType, _, err := mime.ParseMediaType(declaredType)
		if err != nil {
			return ErrNotJSONFile
		}
		switch mediaType {
		case "application/json", "text/json", "text/plain", "application/octet-stream":
		default:
			return ErrNotJSONFile
		}
	}
	if !isTextual(mimetype.Detect(content)) {
		return ErrNotJSONFile
	}
	return nil
}

func isTextual(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("application/json") || m.Is("text/plain") {
			return true
		}
	}
	return false
}
