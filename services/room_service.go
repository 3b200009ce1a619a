package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"ansr/models"
	"ansr/store"

	"github.com/google/uuid"
)

var (
	ErrQuestionNotFound = errors.New("question not found")

	// ErrQuestionActive rejects correctChoices edits on the active question.
	// The display layer already disables the control; this makes the rule
	// hold at the data layer too.
	ErrQuestionActive = errors.New("cannot edit correct answers while the question is active")
)

// UpdateQuestionRequest carries the editable question fields. Nil means
// "leave unchanged".
type UpdateQuestionRequest struct {
	NumChoices     *int             `json:"numChoices"`
	CorrectChoices *map[string]bool `json:"correctChoices"`
}

// LeaderboardEntry is one row of the room leaderboard.
type LeaderboardEntry struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

// QuestionResults is the answer breakdown for one question, shaped for the
// host UI's chart: Counts[i] is how many people answered choice i+1.
type QuestionResults struct {
	QuestionID string               `json:"questionId"`
	NumChoices int                  `json:"numChoices"`
	Counts     []int                `json:"counts"`
	Answers    []models.AnswerEntry `json:"answers"`
}

// RoomService implements the host-side operations: room and question
// management, results and the leaderboard. Everything reads and writes the
// same data store tree the conversation engine uses.
type RoomService struct {
	store  store.Store
	events EventPublisher

	now func() int64
}

func NewRoomService(st store.Store, events EventPublisher) *RoomService {
	return &RoomService{
		store:  st,
		events: events,
		now:    nowMillis,
	}
}

// CreateRoom creates an empty room owned by ownerID and indexes it under the
// owner's recent rooms.
func (s *RoomService) CreateRoom(ctx context.Context, ownerID string) (*models.RoomRef, error) {
	roomID := uuid.NewString()
	createdAt := s.now()

	if err := s.store.Put(ctx, fmt.Sprintf("rooms/%s/ownerId", roomID), ownerID); err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, fmt.Sprintf("rooms/%s/createdAt", roomID), createdAt); err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, fmt.Sprintf("users/%s/rooms/%s", ownerID, roomID), map[string]int64{
		"createdAt": createdAt,
	}); err != nil {
		return nil, err
	}

	return &models.RoomRef{ID: roomID, CreatedAt: createdAt}, nil
}

// ListRecentRooms returns the rooms a host created, newest first.
func (s *RoomService) ListRecentRooms(ctx context.Context, ownerID string) ([]models.RoomRef, error) {
	children, err := s.store.Children(ctx, fmt.Sprintf("users/%s/rooms", ownerID))
	if err != nil {
		return nil, err
	}

	rooms := make([]models.RoomRef, 0, len(children))
	for roomID, raw := range children {
		var entry struct {
			CreatedAt int64 `json:"createdAt"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("decode room index entry: %w", err)
		}
		rooms = append(rooms, models.RoomRef{ID: roomID, CreatedAt: entry.CreatedAt})
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt > rooms[j].CreatedAt })
	return rooms, nil
}

// GetRoom assembles the full room view for the host UI.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*models.RoomSummary, error) {
	ownerID, err := s.getString(ctx, fmt.Sprintf("rooms/%s/ownerId", roomID))
	if err != nil {
		return nil, err
	}
	if ownerID == "" {
		return nil, ErrRoomNotFound
	}

	summary := &models.RoomSummary{
		ID:        roomID,
		OwnerID:   ownerID,
		Users:     map[string]models.RoomUser{},
		Questions: map[string]models.Question{},
	}

	if raw, err := s.store.Get(ctx, fmt.Sprintf("rooms/%s/createdAt", roomID)); err != nil {
		return nil, err
	} else if raw != nil {
		if err := json.Unmarshal(raw, &summary.CreatedAt); err != nil {
			return nil, fmt.Errorf("decode room createdAt: %w", err)
		}
	}
	if summary.Pin, err = s.getString(ctx, fmt.Sprintf("rooms/%s/pin", roomID)); err != nil {
		return nil, err
	}
	if summary.ActiveQuestionID, err = s.getString(ctx, fmt.Sprintf("rooms/%s/activeQuestionId", roomID)); err != nil {
		return nil, err
	}

	users, err := s.store.Children(ctx, fmt.Sprintf("rooms/%s/users", roomID))
	if err != nil {
		return nil, err
	}
	for userID, raw := range users {
		var user models.RoomUser
		if err := json.Unmarshal(raw, &user); err != nil {
			return nil, fmt.Errorf("decode room user: %w", err)
		}
		summary.Users[userID] = user
	}

	questions, err := s.listQuestions(ctx, roomID)
	if err != nil {
		return nil, err
	}
	summary.Questions = questions

	return summary, nil
}

// CreateQuestion appends a new question to the room. Choice count and correct
// answers come later via UpdateQuestion, matching how hosts build questions
// incrementally.
func (s *RoomService) CreateQuestion(ctx context.Context, roomID string) (string, error) {
	if err := s.requireRoom(ctx, roomID); err != nil {
		return "", err
	}

	questionID := uuid.NewString()
	question := models.Question{CreatedAt: s.now()}
	if err := s.store.Put(ctx, fmt.Sprintf("rooms/%s/questions/%s", roomID, questionID), question); err != nil {
		return "", err
	}

	s.events.PublishRoomEvent(roomID, "question_created", map[string]string{"questionId": questionID})
	return questionID, nil
}

// UpdateQuestion edits numChoices and/or correctChoices. correctChoices edits
// are refused while the question is the room's active one.
func (s *RoomService) UpdateQuestion(ctx context.Context, roomID, questionID string, req UpdateQuestionRequest) (*models.Question, error) {
	if err := s.requireRoom(ctx, roomID); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("rooms/%s/questions/%s", roomID, questionID)
	raw, err := s.store.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrQuestionNotFound
	}
	var question models.Question
	if err := json.Unmarshal(raw, &question); err != nil {
		return nil, fmt.Errorf("decode question: %w", err)
	}

	if req.NumChoices != nil {
		if *req.NumChoices < 1 || *req.NumChoices > 10 {
			return nil, fmt.Errorf("numChoices must be between 1 and 10")
		}
		question.NumChoices = *req.NumChoices
	}

	if req.CorrectChoices != nil {
		activeQuestionID, err := s.getString(ctx, fmt.Sprintf("rooms/%s/activeQuestionId", roomID))
		if err != nil {
			return nil, err
		}
		if activeQuestionID == questionID {
			return nil, ErrQuestionActive
		}
		question.CorrectChoices = *req.CorrectChoices
	}

	if err := s.store.Put(ctx, path, question); err != nil {
		return nil, err
	}
	return &question, nil
}

// SetActiveQuestion activates a question for answering, or clears the active
// question when questionID is empty.
func (s *RoomService) SetActiveQuestion(ctx context.Context, roomID, questionID string) error {
	if err := s.requireRoom(ctx, roomID); err != nil {
		return err
	}

	if questionID == "" {
		if err := s.store.Put(ctx, fmt.Sprintf("rooms/%s/activeQuestionId", roomID), nil); err != nil {
			return err
		}
	} else {
		raw, err := s.store.Get(ctx, fmt.Sprintf("rooms/%s/questions/%s", roomID, questionID))
		if err != nil {
			return err
		}
		if raw == nil {
			return ErrQuestionNotFound
		}
		if err := s.store.Put(ctx, fmt.Sprintf("rooms/%s/activeQuestionId", roomID), questionID); err != nil {
			return err
		}
	}

	s.events.PublishRoomEvent(roomID, "active_question_changed", map[string]string{"questionId": questionID})
	return nil
}

// GetQuestionResults returns all recorded answers for a question plus the
// per-choice counts the chart renders. Out-of-range answers cannot appear
// here; the conversation engine rejects them at submission time.
func (s *RoomService) GetQuestionResults(ctx context.Context, roomID, questionID string) (*QuestionResults, error) {
	if err := s.requireRoom(ctx, roomID); err != nil {
		return nil, err
	}

	raw, err := s.store.Get(ctx, fmt.Sprintf("rooms/%s/questions/%s", roomID, questionID))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrQuestionNotFound
	}
	var question models.Question
	if err := json.Unmarshal(raw, &question); err != nil {
		return nil, fmt.Errorf("decode question: %w", err)
	}

	answers, err := s.listAnswers(ctx, roomID, questionID)
	if err != nil {
		return nil, err
	}

	numChoices := question.EffectiveNumChoices()
	counts := make([]int, numChoices)
	for _, answer := range answers {
		if answer.Choice >= 1 && answer.Choice <= numChoices {
			counts[answer.Choice-1]++
		}
	}

	return &QuestionResults{
		QuestionID: questionID,
		NumChoices: numChoices,
		Counts:     counts,
		Answers:    answers,
	}, nil
}

// GetLeaderboard sums the speed-bonus scores of every question in the room
// and resolves display names for the ranking table.
func (s *RoomService) GetLeaderboard(ctx context.Context, roomID string) ([]LeaderboardEntry, error) {
	if err := s.requireRoom(ctx, roomID); err != nil {
		return nil, err
	}

	questions, err := s.listQuestions(ctx, roomID)
	if err != nil {
		return nil, err
	}

	totals := map[string]int{}
	for questionID, question := range questions {
		answers, err := s.listAnswers(ctx, roomID, questionID)
		if err != nil {
			return nil, err
		}
		MergeScores(totals, CalculateQuestionScore(answers, question))
	}

	users, err := s.store.Children(ctx, fmt.Sprintf("rooms/%s/users", roomID))
	if err != nil {
		return nil, err
	}

	ranking := ScoresToRanking(totals)
	entries := make([]LeaderboardEntry, 0, len(ranking))
	for _, row := range ranking {
		entry := LeaderboardEntry{UserID: row.UserID, Score: row.Score}
		if raw, ok := users[row.UserID]; ok {
			var user models.RoomUser
			if json.Unmarshal(raw, &user) == nil {
				entry.DisplayName = user.DisplayName
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *RoomService) listQuestions(ctx context.Context, roomID string) (map[string]models.Question, error) {
	children, err := s.store.Children(ctx, fmt.Sprintf("rooms/%s/questions", roomID))
	if err != nil {
		return nil, err
	}
	questions := make(map[string]models.Question, len(children))
	for questionID, raw := range children {
		var question models.Question
		if err := json.Unmarshal(raw, &question); err != nil {
			return nil, fmt.Errorf("decode question %s: %w", questionID, err)
		}
		questions[questionID] = question
	}
	return questions, nil
}

func (s *RoomService) listAnswers(ctx context.Context, roomID, questionID string) ([]models.AnswerEntry, error) {
	children, err := s.store.Children(ctx, fmt.Sprintf("rooms/%s/answers/%s", roomID, questionID))
	if err != nil {
		return nil, err
	}
	answers := make([]models.AnswerEntry, 0, len(children))
	for userID, raw := range children {
		var answer models.Answer
		if err := json.Unmarshal(raw, &answer); err != nil {
			return nil, fmt.Errorf("decode answer of %s: %w", userID, err)
		}
		answers = append(answers, models.AnswerEntry{
			UserID:    userID,
			Choice:    answer.Choice,
			CreatedAt: answer.CreatedAt,
		})
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].CreatedAt < answers[j].CreatedAt })
	return answers, nil
}

func (s *RoomService) requireRoom(ctx context.Context, roomID string) error {
	ownerID, err := s.getString(ctx, fmt.Sprintf("rooms/%s/ownerId", roomID))
	if err != nil {
		return err
	}
	if ownerID == "" {
		return ErrRoomNotFound
	}
	return nil
}

func (s *RoomService) getString(ctx context.Context, path string) (string, error) {
	raw, err := s.store.Get(ctx, path)
	if err != nil || raw == nil {
		return "", err
	}
	var val string
	if err := json.Unmarshal(raw, &val); err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	return val, nil
}
