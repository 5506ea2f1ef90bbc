package service

import (
	"sotto-note/internal/model"
	"sotto-note/pkg/apierror"
)

var breathingPatterns = []model.BreathingPattern{
	{
		ID:          "box",
		Name:        "Box breathing",
		Description: "Four equal sides: in, hold, out, hold.",
		Phases: []model.BreathingPhase{
			{Name: "inhale", Seconds: 4},
			{Name: "hold", Seconds: 4},
			{Name: "exhale", Seconds: 4},
			{Name: "hold", Seconds: 4},
		},
		Cycles: 4,
	},
	{
		ID:          "4-7-8",
		Name:        "4-7-8",
		Description: "A long exhale to settle before sleep.",
		Phases: []model.BreathingPhase{
			{Name: "inhale", Seconds: 4},
			{Name: "hold", Seconds: 7},
			{Name: "exhale", Seconds: 8},
		},
		Cycles: 4,
	},
	{
		ID:          "coherent",
		Name:        "Coherent breathing",
		Description: "Slow, even breaths at about six per minute.",
		Phases: []model.BreathingPhase{
			{Name: "inhale", Seconds: 5},
			{Name: "exhale", Seconds: 5},
		},
		Cycles: 6,
	},
	{
		ID:          "calm",
		Name:        "Calming breath",
		Description: "Exhale twice as long as you inhale.",
		Phases: []model.BreathingPhase{
			{Name: "inhale", Seconds: 3},
			{Name: "exhale", Seconds: 6},
		},
		Cycles: 8,
	},
}

// BreathingService serves the static exercise catalog.
type BreathingService struct{}

func NewBreathingService() *BreathingService {
	return &BreathingService{}
}

func (s *BreathingService) Patterns() []model.BreathingPattern {
	out := make([]model.BreathingPattern, len(breathingPatterns))
	copy(out, breathingPatterns)
	return out
}

func (s *BreathingService) Pattern(id string) (model.BreathingPattern, error) {
	for _, p := range breathingPatterns {
		if p.ID == id {
			return p, nil
		}
	}
	return model.BreathingPattern{}, apierror.NotFound("breathing pattern not found", id)
}
