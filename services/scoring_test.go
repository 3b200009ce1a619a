package services

import (
	"fmt"
	"testing"

	"ansr/models"

	"github.com/stretchr/testify/assert"
)

func TestCalculateQuestionScoreSpeedBonus(t *testing.T) {
	question := models.Question{
		NumChoices:     4,
		CorrectChoices: map[string]bool{"choice1": true},
	}
	answers := []models.AnswerEntry{
		{UserID: "userC", Choice: 2, CreatedAt: 3},
		{UserID: "userA", Choice: 1, CreatedAt: 1},
		{UserID: "userB", Choice: 1, CreatedAt: 2},
	}

	scores := CalculateQuestionScore(answers, question)

	assert.Equal(t, 100, scores["userA"])
	assert.Equal(t, 99, scores["userB"])
	assert.Equal(t, 0, scores["userC"])
}

func TestCalculateQuestionScoreIncorrectDoesNotDecrement(t *testing.T) {
	question := models.Question{
		CorrectChoices: map[string]bool{"choice2": true},
	}
	answers := []models.AnswerEntry{
		{UserID: "a", Choice: 1, CreatedAt: 1},
		{UserID: "b", Choice: 3, CreatedAt: 2},
		{UserID: "c", Choice: 2, CreatedAt: 3},
	}

	scores := CalculateQuestionScore(answers, question)

	// two wrong answers before c did not consume the counter
	assert.Equal(t, 100, scores["c"])
	assert.NotContains(t, scores, "a")
	assert.NotContains(t, scores, "b")
}

func TestCalculateQuestionScoreCounterFloorsAtZero(t *testing.T) {
	question := models.Question{
		CorrectChoices: map[string]bool{"choice1": true},
	}
	var answers []models.AnswerEntry
	for i := 0; i < 105; i++ {
		answers = append(answers, models.AnswerEntry{
			UserID:    userN(i),
			Choice:    1,
			CreatedAt: int64(i),
		})
	}

	scores := CalculateQuestionScore(answers, question)

	assert.Equal(t, 100, scores[userN(0)])
	assert.Equal(t, 1, scores[userN(99)])
	assert.Equal(t, 0, scores[userN(100)])
	assert.Equal(t, 0, scores[userN(104)])
}

func TestCalculateQuestionScoreNoCorrectChoices(t *testing.T) {
	question := models.Question{}
	answers := []models.AnswerEntry{
		{UserID: "a", Choice: 1, CreatedAt: 1},
	}

	assert.Empty(t, CalculateQuestionScore(answers, question))
}

func TestScoresToRanking(t *testing.T) {
	ranking := ScoresToRanking(map[string]int{
		"a": 99,
		"b": 100,
		"c": 0,
	})

	assert.Equal(t, "b", ranking[0].UserID)
	assert.Equal(t, 100, ranking[0].Score)
	assert.Equal(t, "a", ranking[1].UserID)
	assert.Equal(t, "c", ranking[2].UserID)
}

func TestMergeScores(t *testing.T) {
	total := map[string]int{"a": 100}
	MergeScores(total, map[string]int{"a": 99, "b": 50})

	assert.Equal(t, 199, total["a"])
	assert.Equal(t, 50, total["b"])
}

func userN(i int) string {
	return fmt.Sprintf("user%03d", i)
}
