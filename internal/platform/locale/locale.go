// Package locale selects between the English and Telugu rendering of a
// string. The selection lives only for the lifetime of a Manager; nothing
// is persisted.
package locale

import (
	"context"
	"errors"
	"strings"
	"sync"
)

type Language string

const (
	English Language = "english"
	Telugu  Language = "telugu"
)

var ErrUnsupportedLanguage = errors.New("unsupported language")

// Text is a string carried in both supported languages.
type Text struct {
	English string `json:"english"`
	Telugu  string `json:"telugu"`
}

type Manager struct {
	mu       sync.RWMutex
	language Language
}

// NewManager returns a Manager set to English.
func NewManager() *Manager {
	return &Manager{language: English}
}

func (m *Manager) Language() Language {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.language
}

func (m *Manager) SetLanguage(l Language) error {
	if l != English && l != Telugu {
		return ErrUnsupportedLanguage
	}
	m.mu.Lock()
	m.language = l
	m.mu.Unlock()
	return nil
}

// T returns english or telugu depending on the current language.
func (m *Manager) T(english, telugu string) string {
	if m.Language() == Telugu {
		return telugu
	}
	return english
}

func (m *Manager) Pick(t Text) string {
	return m.T(t.English, t.Telugu)
}

// SpeechTag is the BCP 47 tag handed to the device speech synthesizer.
func (m *Manager) SpeechTag() string {
	if m.Language() == Telugu {
		return "te-IN"
	}
	return "en-IN"
}

// Parse maps a language name or tag ("telugu", "te", "te-IN") to a Language.
func Parse(s string) (Language, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == string(English) || s == "en" || strings.HasPrefix(s, "en-"):
		return English, true
	case s == string(Telugu) || s == "te" || strings.HasPrefix(s, "te-"):
		return Telugu, true
	}
	return "", false
}

type contextKey struct{}

func WithManager(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, contextKey{}, m)
}

// FromContext returns the request's Manager, or an English one when none was set.
func FromContext(ctx context.Context) *Manager {
	if m, ok := ctx.Value(contextKey{}).(*Manager); ok {
		return m
	}
	return NewManager()
}
