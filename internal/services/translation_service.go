package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/tudoramariei/votemonitor/internal/forms"
)

// SuggestionConfig points at an OpenAI-compatible chat-completions endpoint. Suggestions are
// disabled while APIKey is empty.
type SuggestionConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type TranslationService struct {
	store  FormReader
	cfg    SuggestionConfig
	client *resty.Client
}

// Suggestion is a proposed text for one empty slot. It is never applied automatically.
type Suggestion struct {
	Path   string `json:"path"`
	Source string `json:"source"`
	Text   string `json:"text"`
}

func NewTranslationService(store FormReader, cfg SuggestionConfig, client *resty.Client) *TranslationService {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		client = resty.New().SetTimeout(timeout)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &TranslationService{store: store, cfg: cfg, client: client}
}

func (s *TranslationService) Enabled() bool { return strings.TrimSpace(s.cfg.APIKey) != "" }

// SuggestTranslations asks the model for every slot of lang that is empty while the default
// language has text. Suggestions come back in document order.
func (s *TranslationService) SuggestTranslations(ctx context.Context, ngoID, formID, lang string) ([]Suggestion, error) {
	if !s.Enabled() {
		return nil, NewInvalidError("translation suggestions are disabled")
	}
	f, err := loadForm(ctx, s.store, ngoID, formID)
	if err != nil {
		return nil, err
	}
	code, err := forms.NormalizeLanguageCode(lang)
	if err != nil {
		return nil, fromDomainError(err)
	}
	if !containsString(f.Languages, code) {
		return nil, fromDomainError(&forms.LanguageNotFoundError{Code: code})
	}
	if code == f.DefaultLanguage {
		return nil, NewInvalidError("cannot suggest translations for the default language")
	}

	pending := []Suggestion{}
	source := map[string]string{}
	for _, e := range f.Texts() {
		src := e.Text[f.DefaultLanguage]
		if strings.TrimSpace(e.Text[code]) != "" || strings.TrimSpace(src) == "" {
			continue
		}
		pending = append(pending, Suggestion{Path: e.Path, Source: src})
		source[e.Path] = src
	}
	if len(pending) == 0 {
		return pending, nil
	}

	translated, err := s.complete(ctx, f.DefaultLanguage, code, source)
	if err != nil {
		return nil, err
	}
	out := make([]Suggestion, 0, len(pending))
	for _, p := range pending {
		if t := strings.TrimSpace(translated[p.Path]); t != "" {
			p.Text = t
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *TranslationService) complete(ctx context.Context, from, to string, source map[string]string) (map[string]string, error) {
	body, err := json.Marshal(map[string]any{"source": from, "target": to, "texts": source})
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"model":       s.cfg.Model,
		"temperature": 0.2,
		"messages": []map[string]string{
			{"role": "system", "content": translationPrompt()},
			{"role": "user", "content": string(body)},
		},
		"response_format": map[string]string{"type": "json_object"},
	}
	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	resp, err := s.client.R().SetContext(ctx).
		SetHeader("Authorization", "Bearer "+s.cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(&cc).
		Post(normalizeOpenAIEndpoint(s.cfg.BaseURL))
	if err != nil {
		return nil, NewBadGatewayError(err.Error())
	}
	if resp.IsError() {
		return nil, NewBadGatewayError(fmt.Sprintf("translation provider: %s; body: %s", resp.Status(), abbreviate(resp.String(), 500)))
	}
	if len(cc.Choices) == 0 {
		return nil, NewBadGatewayError("no choices")
	}
	content := stripCodeFence(cc.Choices[0].Message.Content)
	var out struct {
		Texts map[string]string `json:"texts"`
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil || out.Texts == nil {
		return nil, NewBadGatewayError("invalid JSON from model")
	}
	return out.Texts, nil
}

func translationPrompt() string {
	return "You translate election observation questionnaires. The user sends JSON with source and target language codes and texts, a map of path to source text. Return ONLY a JSON object {\"texts\": {path: translation}} with the same paths. Keep placeholders, numbers and codes intact."
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := strings.TrimPrefix(s[i+3:], "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
	}
	return s
}

// abbreviate caps s at n bytes, cutting on a rune boundary.
func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func normalizeOpenAIEndpoint(base string) string {
	endpoint := strings.TrimRight(strings.TrimSpace(base), "/")
	if endpoint == "" {
		endpoint = "https://api.openai.com"
	}
	switch {
	case strings.HasSuffix(endpoint, "/chat/completions"):
		return endpoint
	case strings.HasSuffix(endpoint, "/v1"):
		return endpoint + "/chat/completions"
	default:
		return endpoint + "/v1/chat/completions"
	}
}
