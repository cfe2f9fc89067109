// Package assistant turns free-form meeting text into job suggestions
// using a chat-completion model. The output is advisory: suggestions are
// shown for confirmation, never written to the store directly, and any
// failure degrades to "no suggestions".
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"suretakip/internal/domain"
	"suretakip/internal/logger"
)

// Suggestion is one extracted job candidate.
type Suggestion struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Assignees   []string `json:"assignees"`
	Projects    []string `json:"projects"`
	DueDate     string   `json:"dueDate"`
	Priority    string   `json:"priority"`
}

// Extractor asks a model to pull actionable jobs out of text.
type Extractor struct {
	client *openai.Client
	model  string
	log    logger.Logger
	now    func() time.Time
}

// New builds an extractor; a missing API key returns nil, which the
// callers treat as "assistant disabled".
func New(apiKey, model string, log logger.Logger) *Extractor {
	if apiKey == "" {
		return nil
	}
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		log:    log,
		now:    time.Now,
	}
}

// Extract returns job suggestions found in text, or nil when the model
// yields nothing usable. Known project and user names are passed to the
// model so it maps mentions onto existing records instead of inventing
// new ones.
func (e *Extractor) Extract(ctx context.Context, text string, projects []string, users []domain.AppUser) []Suggestion {
	if e == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.F(e.model),
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(e.systemPrompt(projects, users)),
			openai.UserMessage(text),
		}),
	})
	if err != nil {
		e.log.Warn("assistant request failed", logger.Error(err))
		return nil
	}
	if len(resp.Choices) == 0 {
		return nil
	}
	suggestions, err := parseSuggestions(resp.Choices[0].Message.Content)
	if err != nil {
		e.log.Warn("assistant returned unparseable output", logger.Error(err))
		return nil
	}
	return suggestions
}

func (e *Extractor) systemPrompt(projects []string, users []domain.AppUser) string {
	var sb strings.Builder
	sb.WriteString("Toplantı notlarından veya mesajlardan yapılacak işleri çıkaran bir asistansın.\n")
	fmt.Fprintf(&sb, "Bugünün tarihi: %s.\n", e.now().Format("2006-01-02"))
	if len(projects) > 0 {
		fmt.Fprintf(&sb, "Bilinen projeler: %s.\n", strings.Join(projects, ", "))
	}
	if len(users) > 0 {
		names := make([]string, 0, len(users))
		for _, u := range users {
			if u.DisplayName != "" {
				names = append(names, u.DisplayName)
			} else {
				names = append(names, u.Email)
			}
		}
		fmt.Fprintf(&sb, "Ekip üyeleri: %s.\n", strings.Join(names, ", "))
	}
	sb.WriteString(`Her iş için şu alanlarla bir JSON dizisi döndür:
title, description, assignees (dizi), projects (dizi), dueDate (YYYY-MM-DD veya boş), priority (high, medium, low).
Proje ve kişi adlarını yalnızca yukarıdaki listelerden seç; listede yoksa boş bırak.
Göreli tarihleri (yarın, haftaya) bugünün tarihine göre çevir.
Yalnızca JSON döndür, başka açıklama yazma. İş bulunamazsa [] döndür.`)
	return sb.String()
}

// parseSuggestions tolerates the model wrapping its JSON in a markdown
// code fence.
func parseSuggestions(raw string) ([]Suggestion, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
		raw = strings.TrimSpace(raw)
	}
	var suggestions []Suggestion
	if err := json.Unmarshal([]byte(raw), &suggestions); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	for i := range suggestions {
		suggestions[i].Priority = normalizePriority(suggestions[i].Priority)
	}
	return suggestions, nil
}

func normalizePriority(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case domain.PriorityHigh, "yüksek":
		return domain.PriorityHigh
	case domain.PriorityLow, "düşük":
		return domain.PriorityLow
	default:
		return domain.PriorityMedium
	}
}
