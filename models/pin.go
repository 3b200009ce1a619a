package models

// PinLease lives at pins/{pin}. A PIN maps to at most one live room at a time;
// expired leases stay in place until another room claims the PIN.
type PinLease struct {
	RoomID    string `json:"roomId"`
	ExpiresAt int64  `json:"expiresAt"` // milliseconds since epoch
}

// Live reports whether the lease is still valid at the given time (ms).
func (l PinLease) Live(nowMillis int64) bool {
	return nowMillis < l.ExpiresAt
}
