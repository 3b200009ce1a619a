package models

// Room entities are views over the data store tree, not database rows.
// Field names mirror the store layout under rooms/{roomId}.

// RoomUser is a participant record at rooms/{roomId}/users/{userId}.
type RoomUser struct {
	DisplayName string `json:"displayName"`
}

// RoomSummary is what the host UI sees for a single room.
type RoomSummary struct {
	ID               string              `json:"id"`
	OwnerID          string              `json:"ownerId"`
	CreatedAt        int64               `json:"createdAt"`
	Pin              string              `json:"pin,omitempty"`
	ActiveQuestionID string              `json:"activeQuestionId,omitempty"`
	Users            map[string]RoomUser `json:"users"`
	Questions        map[string]Question `json:"questions"`
}

// RoomRef is an entry in a host's recent-rooms index at users/{userId}/rooms/{roomId}.
type RoomRef struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
}
