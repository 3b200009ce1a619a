package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"ansr/models"
	"ansr/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type hookRecorder struct {
	displayName string
	joins       int
	leaves      int
}

func (r *hookRecorder) context() ContextFuncs {
	return ContextFuncs{
		ResolveDisplayNameFunc: func(ctx context.Context, userID string) (string, error) {
			return r.displayName, nil
		},
		OnJoinFunc: func(ctx context.Context) error {
			r.joins++
			return nil
		},
		OnLeaveFunc: func(ctx context.Context) error {
			r.leaves++
			return nil
		},
	}
}

func newTestEngine(st store.Store) *ConversationService {
	return NewConversationService(st, NewPinService(st), NopPublisher{}, zap.NewNop())
}

func seedRoom(t *testing.T, st store.Store, roomID, pin string, expiresAt int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, fmt.Sprintf("rooms/%s/ownerId", roomID), "owner-1"))
	require.NoError(t, st.Put(ctx, fmt.Sprintf("rooms/%s/pin", roomID), pin))
	require.NoError(t, st.Put(ctx, fmt.Sprintf("pins/%s", pin), models.PinLease{
		RoomID:    roomID,
		ExpiresAt: expiresAt,
	}))
}

func seedQuestion(t *testing.T, st store.Store, roomID, questionID string, question models.Question, active bool) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, fmt.Sprintf("rooms/%s/questions/%s", roomID, questionID), question))
	if active {
		require.NoError(t, st.Put(ctx, fmt.Sprintf("rooms/%s/activeQuestionId", roomID), questionID))
	}
}

func userState(t *testing.T, st store.Store, userID string) models.UserState {
	t.Helper()
	raw, err := st.Get(context.Background(), fmt.Sprintf("users/%s/state", userID))
	require.NoError(t, err)
	var state models.UserState
	if raw != nil {
		require.NoError(t, json.Unmarshal(raw, &state))
	}
	return state
}

func farFuture() int64 { return nowMillis() + 60*60*1000 }

func TestHandleNotInRoomFallback(t *testing.T) {
	st := store.NewMemoryStore()
	engine := newTestEngine(st)

	reply, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: "hello"}, ContextFuncs{})
	require.NoError(t, err)
	assert.Equal(t, "you are not currently in a room\nenter a room PIN to join a room", reply)
}

func TestHandleJoinUnknownPin(t *testing.T) {
	st := store.NewMemoryStore()
	engine := newTestEngine(st)

	reply, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: "R12345"}, ContextFuncs{})
	require.NoError(t, err)
	assert.Equal(t, "room with PIN R12345 not found", reply)
}

func TestHandleJoinExpiredLease(t *testing.T) {
	st := store.NewMemoryStore()
	engine := newTestEngine(st)
	seedRoom(t, st, "room-1", "123456", nowMillis()-1)

	reply, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: "R123456"}, ContextFuncs{})
	require.NoError(t, err)

	// expired is "not active", never "not found"
	assert.Equal(t, "room is not active", reply)
	assert.Empty(t, userState(t, st, "u1").CurrentRoomID)
}

func TestHandleJoinSuccess(t *testing.T) {
	st := store.NewMemoryStore()
	engine := newTestEngine(st)
	seedRoom(t, st, "room-1", "123456", farFuture())
	hooks := &hookRecorder{displayName: "Alice"}

	reply, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: "R123456"}, hooks.context())
	require.NoError(t, err)
	assert.Equal(t, "joined room successfully! welcome!", reply)
	assert.Equal(t, 1, hooks.joins)

	state := userState(t, st, "u1")
	assert.Equal(t, "room-1", state.CurrentRoomID)
	assert.Equal(t, "123456", state.CurrentRoomPin)

	raw, err := st.Get(context.Background(), "rooms/room-1/users/u1")
	require.NoError(t, err)
	var user models.RoomUser
	require.NoError(t, json.Unmarshal(raw, &user))
	assert.Equal(t, "Alice", user.DisplayName)

	// round-trip: the pin still resolves to the joined room
	lease, err := engine.pins.ResolvePin(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, state.CurrentRoomID, lease.RoomID)
}

func TestHandleJoinIsCaseInsensitive(t *testing.T) {
	st := store.NewMemoryStore()
	engine := newTestEngine(st)
	seedRoom(t, st, "room-1", "123456", farFuture())

	reply, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: "r123456"}, ContextFuncs{})
	require.NoError(t, err)
	assert.Equal(t, "joined room successfully! welcome!", reply)
}

func TestHandleJoinWhileInRoomSwitches(t *testing.T) {
	st := store.NewMemoryStore()
	engine := newTestEngine(st)
	seedRoom(t, st, "room-1", "123456", farFuture())
	seedRoom(t, st, "room-2", "654321", farFuture())
	hooks := &hookRecorder{displayName: "Alice"}

	_, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: "R123456"}, hooks.context())
	require.NoError(t, err)

	reply, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: "R654321"}, hooks.context())
	require.NoError(t, err)
	assert.Equal(t, "switched to a new room successfully! welcome!", reply)

	state := userState(t, st, "u1")
	assert.Equal(t, "room-2", state.CurrentRoomID)
	assert.Equal(t, "654321", state.CurrentRoomPin)
	assert.Equal(t, 2, hooks.joins)
}

func TestHandleRoomInfo(t *testing.T) {
	st := store.NewMemoryStore()
	engine := newTestEngine(st)
	seedRoom(t, st, "room-1", "123456", farFuture())

	_, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: "R123456"}, ContextFuncs{})
	require.NoError(t, err)

	reply, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: ".roominfo"}, ContextFuncs{})
	require.NoError(t, err)
	assert.Equal(t, "you are in a room (PIN: R123456)", reply)
}

func TestHandleRoomInfoStalePin(t *testing.T) {
	st := store.NewMemoryStore()
	engine := newTestEngine(st)
	seedRoom(t, st, "room-1", "123456", farFuture())

	_, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: "R123456"}, ContextFuncs{})
	require.NoError(t, err)

	// the lease has since been taken over by another room
	require.NoError(t, st.Put(context.Background(), "pins/123456", models.PinLease{
		RoomID:    "room-2",
		ExpiresAt: farFuture(),
	}))

	reply, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: ".roominfo"}, ContextFuncs{})
	require.NoError(t, err)
	assert.Equal(t, "you are in a room (no PIN)", reply)
}

func TestHandleLeave(t *testing.T) {
	st := store.NewMemoryStore()
	engine := newTestEngine(st)
	seedRoom(t, st, "room-1", "123456", farFuture())
	hooks := &hookRecorder{displayName: "Alice"}

	_, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: "R123456"}, hooks.context())
	require.NoError(t, err)

	reply, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: ".leave"}, hooks.context())
	require.NoError(t, err)
	assert.Equal(t, "you left the room", reply)
	assert.Equal(t, 1, hooks.leaves)
	assert.Empty(t, userState(t, st, "u1").CurrentRoomID)

	// next message lands in the not-in-room state
	reply, err = engine.Handle(context.Background(), Message{UserID: "u1", Text: "1"}, hooks.context())
	require.NoError(t, err)
	assert.Equal(t, "you are not currently in a room\nenter a room PIN to join a room", reply)
}

func TestHandleNoActiveQuestion(t *testing.T) {
	st := store.NewMemoryStore()
	engine := newTestEngine(st)
	seedRoom(t, st, "room-1", "123456", farFuture())

	_, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: "R123456"}, ContextFuncs{})
	require.NoError(t, err)

	reply, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: "2"}, ContextFuncs{})
	require.NoError(t, err)
	assert.Equal(t, "no active question right now", reply)
}

func TestHandleMissingQuestionRecord(t *testing.T) {
	st := store.NewMemoryStore()
	engine := newTestEngine(st)
	seedRoom(t, st, "room-1", "123456", farFuture())

	_, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: "R123456"}, ContextFuncs{})
	require.NoError(t, err)

	// active pointer set, but the question itself is gone
	require.NoError(t, st.Put(context.Background(), "rooms/room-1/activeQuestionId", "q-gone"))

	reply, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: "2"}, ContextFuncs{})
	require.NoError(t, err)
	assert.Equal(t, "no active question right now...", reply)
}

func TestHandleRecordAnswer(t *testing.T) {
	st := store.NewMemoryStore()
	engine := newTestEngine(st)
	seedRoom(t, st, "room-1", "123456", farFuture())
	seedQuestion(t, st, "room-1", "q1", models.Question{NumChoices: 4}, true)

	_, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: "R123456"}, ContextFuncs{})
	require.NoError(t, err)

	reply, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: "3"}, ContextFuncs{})
	require.NoError(t, err)
	assert.Equal(t, "your answer (3) has been recorded", reply)

	raw, err := st.Get(context.Background(), "rooms/room-1/answers/q1/u1")
	require.NoError(t, err)
	var answer models.Answer
	require.NoError(t, json.Unmarshal(raw, &answer))
	assert.Equal(t, 3, answer.Choice)
	assert.NotZero(t, answer.CreatedAt)
}

func TestHandleAnswerTwiceIsRejected(t *testing.T) {
	st := store.NewMemoryStore()
	engine := newTestEngine(st)
	seedRoom(t, st, "room-1", "123456", farFuture())
	seedQuestion(t, st, "room-1", "q1", models.Question{NumChoices: 4}, true)

	_, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: "R123456"}, ContextFuncs{})
	require.NoError(t, err)
	_, err = engine.Handle(context.Background(), Message{UserID: "u1", Text: "3"}, ContextFuncs{})
	require.NoError(t, err)

	for _, text := range []string{"3", "2"} {
		reply, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: text}, ContextFuncs{})
		require.NoError(t, err)
		assert.Equal(t, "you have already answered this question (your answer: 3)", reply)
	}

	// stored answer unchanged
	raw, err := st.Get(context.Background(), "rooms/room-1/answers/q1/u1")
	require.NoError(t, err)
	var answer models.Answer
	require.NoError(t, json.Unmarshal(raw, &answer))
	assert.Equal(t, 3, answer.Choice)
}

func TestHandleInvalidChoices(t *testing.T) {
	st := store.NewMemoryStore()
	engine := newTestEngine(st)
	seedRoom(t, st, "room-1", "123456", farFuture())
	seedQuestion(t, st, "room-1", "q1", models.Question{NumChoices: 4}, true)

	_, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: "R123456"}, ContextFuncs{})
	require.NoError(t, err)

	for _, text := range []string{"0", "5", "abc", "3abc", "-1", ""} {
		reply, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: text}, ContextFuncs{})
		require.NoError(t, err)
		assert.Equal(t, "invalid choice (accepted: 1, 2, 3, 4)", reply, "text %q", text)
	}

	// nothing got recorded
	raw, err := st.Get(context.Background(), "rooms/room-1/answers/q1/u1")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestHandleDefaultNumChoices(t *testing.T) {
	st := store.NewMemoryStore()
	engine := newTestEngine(st)
	seedRoom(t, st, "room-1", "123456", farFuture())
	seedQuestion(t, st, "room-1", "q1", models.Question{}, true)

	_, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: "R123456"}, ContextFuncs{})
	require.NoError(t, err)

	reply, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: "5"}, ContextFuncs{})
	require.NoError(t, err)
	assert.Equal(t, "invalid choice (accepted: 1, 2, 3, 4)", reply)

	reply, err = engine.Handle(context.Background(), Message{UserID: "u1", Text: "4"}, ContextFuncs{})
	require.NoError(t, err)
	assert.Equal(t, "your answer (4) has been recorded", reply)
}

func TestHandleTrimsWhitespace(t *testing.T) {
	st := store.NewMemoryStore()
	engine := newTestEngine(st)
	seedRoom(t, st, "room-1", "123456", farFuture())

	reply, err := engine.Handle(context.Background(), Message{UserID: "u1", Text: "  R123456  "}, ContextFuncs{})
	require.NoError(t, err)
	assert.Equal(t, "joined room successfully! welcome!", reply)
}
