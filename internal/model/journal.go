package model

import "time"

type Mood string

const (
	MoodJoyful  Mood = "joyful"
	MoodContent Mood = "content"
	MoodNeutral Mood = "neutral"
	MoodAnxious Mood = "anxious"
	MoodSad     Mood = "sad"
	MoodAngry   Mood = "angry"
)

var Moods = []Mood{MoodJoyful, MoodContent, MoodNeutral, MoodAnxious, MoodSad, MoodAngry}

func (m Mood) Valid() bool {
	for _, known := range Moods {
		if m == known {
			return true
		}
	}
	return false
}

type JournalEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Mood      Mood      `json:"mood"`
	AIReply   *string   `json:"ai_reply,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type EntryQuery struct {
	Mood  Mood
	Page  int
	Limit int
}

type BreathingPhase struct {
	Name    string `json:"name"`
	Seconds int    `json:"seconds"`
}

type BreathingPattern struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Phases      []BreathingPhase `json:"phases"`
	Cycles      int              `json:"cycles"`
}
