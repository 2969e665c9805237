// Package suggest produces short review suggestions for a code snippet.
package suggest

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/michaelbrown/pairpad/internal/config"
	"github.com/michaelbrown/pairpad/internal/llm"
)

// Suggester maps a snippet to a human-readable suggestion.
type Suggester interface {
	Suggest(ctx context.Context, language, code string) (string, error)
}

// Static returns a fixed placeholder suggestion.
type Static struct{}

func (Static) Suggest(_ context.Context, language, _ string) (string, error) {
	return staticText(language), nil
}

func staticText(language string) string {
	return fmt.Sprintf("Suggestion for code in %s:\nCheck indentation or syntax.", language)
}

const systemPrompt = `You review code snippets pasted into a shared editor.
Reply with at most three short lines pointing out syntax errors, likely bugs,
or style problems. Do not rewrite the whole program.`

// LLM asks a chat-completion model for a review. Provider errors fall back
// to the static suggestion so the caller always gets text.
type LLM struct {
	client llm.Client
	logger *zap.Logger
}

func NewLLM(client llm.Client, logger *zap.Logger) *LLM {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLM{client: client, logger: logger.Named("suggest")}
}

func (s *LLM) Suggest(ctx context.Context, language, code string) (string, error) {
	prompt := fmt.Sprintf("Language: %s\n\n```%s\n%s\n```", language, language, code)
	reply, err := s.client.Complete(ctx, []llm.Message{
		llm.SystemMessage(systemPrompt),
		llm.UserMessage(prompt),
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.logger.Warn("provider failed, using static suggestion", zap.Error(err))
		return staticText(language), nil
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return staticText(language), nil
	}
	return reply, nil
}

// New picks the LLM suggester when a provider is configured.
func New(cfg config.SuggestConfig, logger *zap.Logger) Suggester {
	if !cfg.HasProvider() {
		return Static{}
	}
	p := cfg.Provider
	return NewLLM(llm.NewClient(p.BaseURL, p.APIKey, p.Model), logger)
}
