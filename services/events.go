package services

// EventPublisher pushes room-scoped events to whoever is watching (the
// websocket hub in production). Services publish through this interface so
// they stay independent of the transport.
type EventPublisher interface {
	PublishRoomEvent(roomID, eventType string, payload any)
}

// NopPublisher drops every event. Used in tests and in tools that do not run
// the hub.
type NopPublisher struct{}

func (NopPublisher) PublishRoomEvent(roomID, eventType string, payload any) {}
