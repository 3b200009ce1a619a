package models

// UserState is the only per-user session state, stored at users/{userId}/state.
// It is read fresh on every inbound message; the bot process holds no sessions.
type UserState struct {
	CurrentRoomID  string `json:"currentRoomId,omitempty"`
	CurrentRoomPin string `json:"currentRoomPin,omitempty"`
}
