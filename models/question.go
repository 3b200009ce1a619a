package models

import "fmt"

// DefaultNumChoices applies when a question does not set numChoices.
const DefaultNumChoices = 4

// Question lives at rooms/{roomId}/questions/{questionId}.
// CorrectChoices keys are "choice1".."choiceN".
type Question struct {
	CreatedAt      int64           `json:"createdAt"`
	NumChoices     int             `json:"numChoices,omitempty"`
	CorrectChoices map[string]bool `json:"correctChoices,omitempty"`
}

// EffectiveNumChoices returns the accepted choice count, defaulting to 4.
func (q Question) EffectiveNumChoices() int {
	if q.NumChoices > 0 {
		return q.NumChoices
	}
	return DefaultNumChoices
}

// IsCorrect reports whether the given 1-based choice is marked correct.
func (q Question) IsCorrect(choice int) bool {
	return q.CorrectChoices[ChoiceKey(choice)]
}

// ChoiceKey maps a 1-based choice number to its correctChoices key.
func ChoiceKey(choice int) string {
	return fmt.Sprintf("choice%d", choice)
}
