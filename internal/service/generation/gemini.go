package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"lernguide/internal/config"
	"lernguide/internal/models"
)

// Gemini sends documents as inline byte parts so PDFs and images reach the
// model unchanged.
type Gemini struct {
	client  *genai.Client
	fixedID string
}

func NewGemini(ctx context.Context, provCfg config.ProviderConfig) (*Gemini, error) {
	if provCfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	cc := &genai.ClientConfig{APIKey: provCfg.APIKey, Backend: genai.BackendGeminiAPI}
	if provCfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: provCfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("new gemini client: %w", err)
	}
	return &Gemini{client: client, fixedID: provCfg.Model}, nil
}

func (g *Gemini) model(choice models.ModelChoice) string {
	if choice.Valid() {
		return string(choice)
	}
	if g.fixedID != "" {
		return g.fixedID
	}
	return string(models.ModelFlash)
}

func (g *Gemini) Generate(ctx context.Context, req *Request) (*Response, error) {
	contents, err := geminiContents(req)
	if err != nil {
		return nil, err
	}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt(req)}},
		},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model(req.Options.Model), contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate %s: %w", req.Task, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrEmptyResponse
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return &Response{Raw: []byte(b.String())}, nil
}

func geminiContents(req *Request) ([]*genai.Content, error) {
	text, err := userPrompt(req)
	if err != nil {
		return nil, err
	}
	parts := []*genai.Part{{Text: text}}
	for _, doc := range req.Documents {
		parts = append(parts, blobPart(doc))
	}
	if req.Practice != nil {
		parts = append(parts, &genai.Part{Text: "Practice sheet follows."}, blobPart(req.Practice))
	}
	return []*genai.Content{{Role: genai.RoleUser, Parts: parts}}, nil
}

func blobPart(doc *models.Document) *genai.Part {
	mimeType := doc.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: doc.Data}}
}
