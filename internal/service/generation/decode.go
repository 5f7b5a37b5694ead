package generation

import (
	"bytes"
	"fmt"

	"github.com/bytedance/sonic"

	"lernguide/internal/models"
)

// StripFences removes a surrounding markdown code fence from model output.
func StripFences(raw []byte) []byte {
	out := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(out, []byte("```")) {
		return out
	}
	if nl := bytes.IndexByte(out, '\n'); nl >= 0 {
		out = out[nl+1:]
	} else {
		out = out[3:]
	}
	out = bytes.TrimSpace(out)
	out = bytes.TrimSuffix(out, []byte("```"))
	return bytes.TrimSpace(out)
}

func decodeList[T any](task Task, resp *Response) ([]T, error) {
	if resp == nil {
		return nil, ErrEmptyResponse
	}
	body := StripFences(resp.Raw)
	if len(body) == 0 {
		return nil, ErrEmptyResponse
	}
	var out []T
	if err := sonic.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", task, err)
	}
	if len(out) == 0 {
		return nil, ErrEmptyResponse
	}
	return out, nil
}

func DecodeGuide(resp *Response) ([]models.GuideStep, error) {
	return decodeList[models.GuideStep](TaskGuide, resp)
}

func DecodeSolved(resp *Response) ([]models.SolvedQuestion, error) {
	return decodeList[models.SolvedQuestion](TaskSolve, resp)
}

func DecodeConcepts(resp *Response) ([]models.KeyConcept, error) {
	return decodeList[models.KeyConcept](TaskConcepts, resp)
}

func DecodeFlashcards(resp *Response) ([]models.Flashcard, error) {
	return decodeList[models.Flashcard](TaskFlashcards, resp)
}

func DecodeExamResults(resp *Response) ([]models.ExamResult, error) {
	return decodeList[models.ExamResult](TaskGradeExam, resp)
}
