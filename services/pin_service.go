package services

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ansr/models"
	"ansr/store"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrPinExhausted = errors.New("failed to allocate PIN")
)

const (
	// PinTTL is how long a lease stays live after allocation or refresh.
	PinTTL = 24 * time.Hour

	pinMinLength = 5
	pinMaxLength = 9
)

// PinInfo is the result of a PIN query: the PIN itself plus when its lease runs out.
type PinInfo struct {
	Pin       string `json:"pin"`
	ExpiresAt int64  `json:"expiresAt"`
}

// PinService allocates and resolves the short numeric codes participants type
// to join a room. Leases live in the data store at pins/{pin} and expire by
// timestamp; nothing ever actively revokes them.
type PinService struct {
	store store.Store

	// randomPin generates a candidate of the given length, digits 1-9.
	// Overridable in tests to force collisions.
	randomPin func(length int) string

	// now in milliseconds since epoch; overridable in tests.
	now func() int64
}

func NewPinService(st store.Store) *PinService {
	return &PinService{
		store:     st,
		randomPin: randomPin,
		now:       nowMillis,
	}
}

// GetOrAllocatePin returns the room's live PIN, refreshing its lease, or
// allocates a new one. Returns ErrRoomNotFound when the room does not exist
// and ErrPinExhausted when no candidate could be claimed (transient; the whole
// call is safe to retry).
func (s *PinService) GetOrAllocatePin(ctx context.Context, roomID string) (*PinInfo, error) {
	// Ensure that the room exists
	ownerRaw, err := s.store.Get(ctx, fmt.Sprintf("rooms/%s/ownerId", roomID))
	if err != nil {
		return nil, err
	}
	if ownerRaw == nil {
		return nil, ErrRoomNotFound
	}

	existing, err := s.getExistingPin(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	return s.allocateNewPin(ctx, roomID)
}

// getExistingPin checks the PIN stored on the room record. The lease may have
// been reassigned to another room since; in that case the stored PIN is stale
// and a fresh allocation is needed.
func (s *PinService) getExistingPin(ctx context.Context, roomID string) (*PinInfo, error) {
	pinRaw, err := s.store.Get(ctx, fmt.Sprintf("rooms/%s/pin", roomID))
	if err != nil {
		return nil, err
	}
	if pinRaw == nil {
		return nil, nil
	}
	var pin string
	if err := json.Unmarshal(pinRaw, &pin); err != nil {
		return nil, fmt.Errorf("decode room pin: %w", err)
	}

	lease, err := s.ResolvePin(ctx, pin)
	if err != nil {
		return nil, err
	}
	if lease == nil || lease.RoomID != roomID {
		return nil, nil
	}

	// Extend the lease by another 24 hours
	expiresAt := s.now() + PinTTL.Milliseconds()
	if err := s.store.Put(ctx, fmt.Sprintf("pins/%s", pin), models.PinLease{
		RoomID:    roomID,
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, err
	}

	return &PinInfo{Pin: pin, ExpiresAt: expiresAt}, nil
}

// allocateNewPin walks candidate lengths 5..9, one random candidate per
// length, and tries to claim each transactionally. The numeric space per
// length is dense enough that running off the end is practically impossible,
// but it is a hard error rather than a loop.
func (s *PinService) allocateNewPin(ctx context.Context, roomID string) (*PinInfo, error) {
	for length := pinMinLength; length <= pinMaxLength; length++ {
		pin := s.randomPin(length)
		info, err := s.tryClaimPin(ctx, roomID, pin)
		if err != nil {
			return nil, err
		}
		if info != nil {
			return info, nil
		}
	}
	return nil, ErrPinExhausted
}

// tryClaimPin atomically claims a candidate PIN for the room. The claim only
// goes through when the current lease is absent or already expired. The
// post-transaction ownership check catches the race where another room claimed
// the same candidate first: exactly one claimer sees its own roomId in the
// final lease.
func (s *PinService) tryClaimPin(ctx context.Context, roomID, pin string) (*PinInfo, error) {
	path := fmt.Sprintf("pins/%s", pin)
	final, err := s.store.Transaction(ctx, path, func(current []byte) (any, bool) {
		if current != nil {
			var lease models.PinLease
			if json.Unmarshal(current, &lease) == nil && lease.Live(s.now()) {
				return nil, false
			}
		}
		return models.PinLease{
			RoomID:    roomID,
			ExpiresAt: s.now() + PinTTL.Milliseconds(),
		}, true
	})
	if err != nil {
		return nil, err
	}

	var lease models.PinLease
	if final == nil || json.Unmarshal(final, &lease) != nil || lease.RoomID != roomID {
		return nil, nil // lost the claim, caller moves on to the next candidate
	}

	if err := s.store.Put(ctx, fmt.Sprintf("rooms/%s/pin", roomID), pin); err != nil {
		return nil, err
	}
	return &PinInfo{Pin: pin, ExpiresAt: lease.ExpiresAt}, nil
}

// ResolvePin looks up the lease for a PIN. Returns nil when no lease exists.
// Callers must check Live themselves; an expired lease is still returned so
// the conversation engine can distinguish "not active" from "not found".
func (s *PinService) ResolvePin(ctx context.Context, pin string) (*models.PinLease, error) {
	raw, err := s.store.Get(ctx, fmt.Sprintf("pins/%s", pin))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var lease models.PinLease
	if err := json.Unmarshal(raw, &lease); err != nil {
		return nil, fmt.Errorf("decode pin lease: %w", err)
	}
	return &lease, nil
}

// randomPin draws length digits from 1-9. Zero is excluded so PINs are easy
// to read back and never start ambiguous.
func randomPin(length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	pin := make([]byte, length)
	for i, b := range buf {
		pin[i] = '1' + b%9
	}
	return string(pin)
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
