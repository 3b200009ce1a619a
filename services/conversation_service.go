package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ansr/models"
	"ansr/store"

	"go.uber.org/zap"
)

// joinPattern matches a message that is exactly a PIN entry: the letter R
// followed by 5-9 digits, case-insensitive.
var joinPattern = regexp.MustCompile(`(?i)^R(\d{5,9})$`)

const (
	commandRoomInfo = ".roominfo"
	commandLeave    = ".leave"
)

// Message is one inbound chat message after the platform adapter stripped it
// down to the engine's contract.
type Message struct {
	UserID string
	Text   string
	Time   int64 // platform delivery timestamp, milliseconds
}

// ConversationContext supplies the engine's external collaborators for a
// single message: profile lookup plus the lifecycle hooks the message adapter
// uses to attach or detach the participant UI.
type ConversationContext interface {
	ResolveDisplayName(ctx context.Context, userID string) (string, error)
	OnJoin(ctx context.Context) error
	OnLeave(ctx context.Context) error
}

// ContextFuncs adapts plain functions to ConversationContext. Nil hooks are
// no-ops, so callers only wire what they need.
type ContextFuncs struct {
	ResolveDisplayNameFunc func(ctx context.Context, userID string) (string, error)
	OnJoinFunc             func(ctx context.Context) error
	OnLeaveFunc            func(ctx context.Context) error
}

func (c ContextFuncs) ResolveDisplayName(ctx context.Context, userID string) (string, error) {
	if c.ResolveDisplayNameFunc == nil {
		return userID, nil
	}
	return c.ResolveDisplayNameFunc(ctx, userID)
}

func (c ContextFuncs) OnJoin(ctx context.Context) error {
	if c.OnJoinFunc == nil {
		return nil
	}
	return c.OnJoinFunc(ctx)
}

func (c ContextFuncs) OnLeave(ctx context.Context) error {
	if c.OnLeaveFunc == nil {
		return nil
	}
	return c.OnLeaveFunc(ctx)
}

// ConversationService is the per-message state machine behind the bot. It
// holds no session memory: the user's state is read from the data store at the
// start of every message, so any process can handle any message.
type ConversationService struct {
	store  store.Store
	pins   *PinService
	events EventPublisher
	logger *zap.Logger

	now func() int64
}

func NewConversationService(st store.Store, pins *PinService, events EventPublisher, logger *zap.Logger) *ConversationService {
	return &ConversationService{
		store:  st,
		pins:   pins,
		events: events,
		logger: logger,
		now:    nowMillis,
	}
}

// Handle interprets one inbound message and returns the reply text. Every
// logical outcome (unknown PIN, invalid choice, already answered, ...) is a
// normal reply string; only infrastructure failures come back as errors, in
// which case no reply should be sent.
func (s *ConversationService) Handle(ctx context.Context, msg Message, convCtx ConversationContext) (string, error) {
	text := strings.TrimSpace(msg.Text)

	state, err := s.getUserState(ctx, msg.UserID)
	if err != nil {
		return "", err
	}

	if state.CurrentRoomID != "" {
		return s.handleInRoom(ctx, msg.UserID, text, state, convCtx)
	}
	return s.handleNotInRoom(ctx, msg.UserID, text, convCtx)
}

func (s *ConversationService) handleInRoom(ctx context.Context, userID, text string, state models.UserState, convCtx ConversationContext) (string, error) {
	roomID := state.CurrentRoomID

	// Entering another room's PIN switches rooms
	if m := joinPattern.FindStringSubmatch(text); m != nil {
		return s.handleJoinRoom(ctx, userID, m[1], true, convCtx)
	}

	if text == commandRoomInfo {
		return s.roomInfo(ctx, state)
	}

	if text == commandLeave {
		if err := s.store.Put(ctx, fmt.Sprintf("users/%s/state", userID), nil); err != nil {
			return "", err
		}
		if err := convCtx.OnLeave(ctx); err != nil {
			return "", err
		}
		return "you left the room", nil
	}

	activeQuestionID, err := s.getString(ctx, fmt.Sprintf("rooms/%s/activeQuestionId", roomID))
	if err != nil {
		return "", err
	}
	if activeQuestionID == "" {
		return "no active question right now", nil
	}

	answerPath := fmt.Sprintf("rooms/%s/answers/%s/%s", roomID, activeQuestionID, userID)
	existing, err := s.getAnswer(ctx, answerPath)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return fmt.Sprintf("you have already answered this question (your answer: %d)", existing.Choice), nil
	}

	questionRaw, err := s.store.Get(ctx, fmt.Sprintf("rooms/%s/questions/%s", roomID, activeQuestionID))
	if err != nil {
		return "", err
	}
	if questionRaw == nil {
		// activeQuestionId points at a question that no longer exists
		return "no active question right now...", nil
	}
	var question models.Question
	if err := json.Unmarshal(questionRaw, &question); err != nil {
		return "", fmt.Errorf("decode question: %w", err)
	}

	numChoices := question.EffectiveNumChoices()
	choice, err := strconv.Atoi(text)
	if err != nil || choice < 1 || choice > numChoices {
		return invalidChoiceReply(numChoices), nil
	}

	answer := models.Answer{Choice: choice, CreatedAt: s.now()}
	ok, err := s.store.PutIfAbsent(ctx, answerPath, answer)
	if err != nil {
		return "", err
	}
	if !ok {
		// Lost a race against another delivery of the same message;
		// the stored answer stands.
		recorded, err := s.getAnswer(ctx, answerPath)
		if err != nil {
			return "", err
		}
		if recorded != nil {
			return fmt.Sprintf("you have already answered this question (your answer: %d)", recorded.Choice), nil
		}
	}
	s.events.PublishRoomEvent(roomID, "answer_recorded", models.AnswerEntry{
		UserID:    userID,
		Choice:    choice,
		CreatedAt: answer.CreatedAt,
	})
	return fmt.Sprintf("your answer (%d) has been recorded", choice), nil
}

func (s *ConversationService) handleNotInRoom(ctx context.Context, userID, text string, convCtx ConversationContext) (string, error) {
	if m := joinPattern.FindStringSubmatch(text); m != nil {
		return s.handleJoinRoom(ctx, userID, m[1], false, convCtx)
	}
	return "you are not currently in a room\nenter a room PIN to join a room", nil
}

// roomInfo reports the room's PIN only when the lease still points back at the
// room the user is in; a reassigned lease means the stored PIN is stale.
func (s *ConversationService) roomInfo(ctx context.Context, state models.UserState) (string, error) {
	if state.CurrentRoomPin != "" {
		lease, err := s.pins.ResolvePin(ctx, state.CurrentRoomPin)
		if err != nil {
			return "", err
		}
		if lease != nil && lease.RoomID == state.CurrentRoomID {
			return fmt.Sprintf("you are in a room (PIN: R%s)", state.CurrentRoomPin), nil
		}
	}
	return "you are in a room (no PIN)", nil
}

func (s *ConversationService) handleJoinRoom(ctx context.Context, userID, pin string, switching bool, convCtx ConversationContext) (string, error) {
	lease, err := s.pins.ResolvePin(ctx, pin)
	if err != nil {
		return "", err
	}
	if lease == nil || lease.RoomID == "" {
		return fmt.Sprintf("room with PIN R%s not found", pin), nil
	}
	if !lease.Live(s.now()) {
		return "room is not active", nil
	}
	roomID := lease.RoomID

	displayName, err := convCtx.ResolveDisplayName(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := s.store.Put(ctx, fmt.Sprintf("rooms/%s/users/%s", roomID, userID), models.RoomUser{
		DisplayName: displayName,
	}); err != nil {
		return "", err
	}

	if err := s.store.Put(ctx, fmt.Sprintf("users/%s/state", userID), models.UserState{
		CurrentRoomID:  roomID,
		CurrentRoomPin: pin,
	}); err != nil {
		return "", err
	}

	if err := convCtx.OnJoin(ctx); err != nil {
		return "", err
	}

	s.events.PublishRoomEvent(roomID, "user_joined", map[string]string{
		"userId":      userID,
		"displayName": displayName,
	})
	s.logger.Info("user joined room",
		zap.String("userId", userID),
		zap.String("roomId", roomID),
		zap.Bool("switching", switching))

	if switching {
		return "switched to a new room successfully! welcome!", nil
	}
	return "joined room successfully! welcome!", nil
}

func (s *ConversationService) getUserState(ctx context.Context, userID string) (models.UserState, error) {
	var state models.UserState
	raw, err := s.store.Get(ctx, fmt.Sprintf("users/%s/state", userID))
	if err != nil {
		return state, err
	}
	if raw == nil {
		return state, nil
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return state, fmt.Errorf("decode user state: %w", err)
	}
	return state, nil
}

func (s *ConversationService) getAnswer(ctx context.Context, path string) (*models.Answer, error) {
	raw, err := s.store.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var answer models.Answer
	if err := json.Unmarshal(raw, &answer); err != nil {
		return nil, fmt.Errorf("decode answer: %w", err)
	}
	return &answer, nil
}

func (s *ConversationService) getString(ctx context.Context, path string) (string, error) {
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

func invalidChoiceReply(numChoices int) string {
	accepted := make([]string, numChoices)
	for i := range accepted {
		accepted[i] = strconv.Itoa(i + 1)
	}
	return fmt.Sprintf("invalid choice (accepted: %s)", strings.Join(accepted, ", "))
}
