package generation

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"lernguide/internal/config"
	"lernguide/internal/models"
)

// Eino drives a text-only chat model. Textual documents go through an
// extension-aware parser; binary documents are referenced by name.
type Eino struct {
	chat   model.BaseChatModel
	parser parser.Parser
}

func NewEino(ctx context.Context, provider string, provCfg config.ProviderConfig) (*Eino, error) {
	if provCfg.APIKey == "" {
		return nil, fmt.Errorf("%s api key is required", provider)
	}
	var (
		chatModel model.BaseChatModel
		err       error
	)
	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   provCfg.Model,
			APIKey:  provCfg.APIKey,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     provCfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 8000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, err
	}
	return NewEinoWithModel(chatModel), nil
}

func NewEinoWithModel(chat model.BaseChatModel) *Eino {
	var p parser.Parser = parser.TextParser{}
	if ext, err := parser.NewExtParser(context.Background(), &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	}); err == nil {
		p = ext
	}
	return &Eino{chat: chat, parser: p}
}

func (e *Eino) extractor(ctx context.Context) textExtractor {
	return func(doc *models.Document) (string, bool) {
		if !IsTextual(doc.MimeType) {
			return "", false
		}
		docs, err := e.parser.Parse(ctx, bytes.NewReader(doc.Data), parser.WithURI(doc.Name))
		if err != nil {
			return string(doc.Data), true
		}
		parts := make([]string, 0, len(docs))
		for _, d := range docs {
			if content := strings.TrimSpace(d.Content); content != "" {
				parts = append(parts, content)
			}
		}
		return strings.Join(parts, "\n\n"), true
	}
}

func (e *Eino) Generate(ctx context.Context, req *Request) (*Response, error) {
	msgs, err := buildMessages(req, e.extractor(ctx))
	if err != nil {
		return nil, err
	}
	out, err := e.chat.Generate(ctx, convertMessages(msgs))
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", req.Task, err)
	}
	if out == nil || out.Content == "" {
		return nil, ErrEmptyResponse
	}
	return &Response{Raw: []byte(out.Content)}, nil
}

func convertMessages(msgs []models.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, msg := range msgs {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		out = append(out, &schema.Message{Role: role, Content: msg.Content})
	}
	return out
}

var (
	_ Generator = (*Eino)(nil)
	_ Generator = (*Gemini)(nil)
)
