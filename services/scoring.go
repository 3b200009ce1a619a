package services

import (
	"sort"

	"ansr/models"
)

// RankingEntry is one leaderboard row.
type RankingEntry struct {
	UserID string `json:"userId"`
	Score  int    `json:"score"`
}

// CalculateQuestionScore awards speed-bonus points for one question.
// Answers are walked in submission order; the first correct answer earns 100
// points, the next 99, and so on down to a floor of 0. Incorrect answers earn
// nothing and do not consume the counter.
func CalculateQuestionScore(answers []models.AnswerEntry, question models.Question) map[string]int {
	scores := map[string]int{}

	sorted := make([]models.AnswerEntry, len(answers))
	copy(sorted, answers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt < sorted[j].CreatedAt
	})

	pointsToAward := 100
	for _, answer := range sorted {
		if !question.IsCorrect(answer.Choice) {
			continue
		}
		scores[answer.UserID] += pointsToAward
		if pointsToAward > 0 {
			pointsToAward--
		}
	}
	return scores
}

// ScoresToRanking turns a score map into leaderboard rows sorted by
// descending score.
func ScoresToRanking(scores map[string]int) []RankingEntry {
	entries := make([]RankingEntry, 0, len(scores))
	for userID, score := range scores {
		entries = append(entries, RankingEntry{UserID: userID, Score: score})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return entries
}

// MergeScores sums per-question scores into an aggregate, used to build the
// room leaderboard across all questions.
func MergeScores(total map[string]int, question map[string]int) {
	for userID, score := range question {
		total[userID] += score
	}
}
