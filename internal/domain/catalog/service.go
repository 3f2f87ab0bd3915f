package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/locale"
)

var ErrUnknownScreen = errors.New("unknown screen")

type Service struct {
	symptoms SymptomRepository
}

func NewService(symptoms SymptomRepository) *Service {
	return &Service{symptoms: symptoms}
}

func (s *Service) Symptoms(ctx context.Context) ([]*Symptom, error) {
	return s.symptoms.List(ctx)
}

func (s *Service) FindSymptomByID(ctx context.Context, id string) (*Symptom, error) {
	return s.symptoms.GetByID(ctx, id)
}

// ResolveSymptom maps a catalog id or a name in either language to its
// catalog entry. English names match case-insensitively.
func (s *Service) ResolveSymptom(ctx context.Context, label string) (*Symptom, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, ErrNotFound
	}
	if sym, err := s.symptoms.GetByID(ctx, label); err == nil {
		return sym, nil
	}
	all, err := s.symptoms.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, sym := range all {
		if strings.EqualFold(sym.Name.English, label) || sym.Name.Telugu == label {
			return sym, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, label)
}

func (s *Service) HealthTips() []HealthTip {
	out := make([]HealthTip, len(healthTips))
	copy(out, healthTips)
	return out
}

func (s *Service) EmergencyContacts() []EmergencyContact {
	out := make([]EmergencyContact, len(emergencyContacts))
	copy(out, emergencyContacts)
	return out
}

// SpeechPrompt renders the welcome text of screen in m's language, with
// {name} replaced by name.
func (s *Service) SpeechPrompt(screen Screen, name string, m *locale.Manager) (Utterance, error) {
	text, ok := speechPrompts[screen]
	if !ok {
		return Utterance{}, fmt.Errorf("%w: %s", ErrUnknownScreen, screen)
	}
	return Utterance{
		Screen:    screen,
		Text:      strings.ReplaceAll(m.Pick(text), "{name}", name),
		SpeechTag: m.SpeechTag(),
	}, nil
}
