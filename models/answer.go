package models

// Answer lives at rooms/{roomId}/answers/{questionId}/{userId}.
// CreatedAt is milliseconds since epoch. First write wins; the conversation
// engine rejects re-submissions instead of overwriting.
type Answer struct {
	Choice    int   `json:"choice"`
	CreatedAt int64 `json:"createdAt"`
}

// AnswerEntry is an answer paired with the user who submitted it, as used by
// the scoring engine and the results API.
type AnswerEntry struct {
	UserID    string `json:"userId"`
	Choice    int    `json:"choice"`
	CreatedAt int64  `json:"createdAt"`
}
