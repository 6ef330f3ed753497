package session

import (
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Storage keys. Components never touch these directly; all mutation goes
// through the Store so the field-group lifecycles stay enforced in one place.
const (
	keyShift       = "registro_turno"
	keyAdminKey    = "admin_key"
	keyAuthToken   = "auth_token"
	keyExtrasToken = "extras_token"
)

// Store is the single source of truth for identity and authorization state.
// Field groups have distinct lifecycles:
//
//   - shift + admin key + extras: live for one shift; clearing the shift
//     clears all three.
//   - auth token: the durable account credential; cleared only on logout or
//     ClearAll.
type Store struct {
	storage Storage
}

// NewStore wraps the given storage backend. Storage is required.
func NewStore(storage Storage) (*Store, error) {
	if storage == nil {
		return nil, errors.New("[NewStore] storage is required")
	}
	return &Store{storage: storage}, nil
}

// SetShift stores the shift identity record.
func (s *Store) SetShift(record *ShiftRecord) error {
	if !record.Valid() {
		return errors.New("[Store.SetShift] shift record requires a positive session id")
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "[Store.SetShift] marshal")
	}
	s.storage.Set(keyShift, string(raw))
	return nil
}

// Shift returns the current shift record, or nil when absent. Corrupt stored
// data reads as absent: the caller sees "no session", never an error.
func (s *Store) Shift() *ShiftRecord {
	raw, ok := s.storage.Get(keyShift)
	if !ok || raw == "" {
		return nil
	}
	var record ShiftRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil
	}
	if !record.Valid() {
		return nil
	}
	return &record
}

// ClearShift removes the shift record. The admin key and extras state only
// make sense alongside a shift, so they go with it.
func (s *Store) ClearShift() {
	s.storage.Delete(keyShift)
	s.ClearAdminKey()
	s.ClearExtras()
}

func (s *Store) SetAdminKey(key string) {
	if key == "" {
		s.storage.Delete(keyAdminKey)
		return
	}
	s.storage.Set(keyAdminKey, key)
}

func (s *Store) AdminKey() string {
	v, _ := s.storage.Get(keyAdminKey)
	return v
}

func (s *Store) ClearAdminKey() {
	s.storage.Delete(keyAdminKey)
}

// SetAuthToken stores the bearer credential from the primary login. A nil
// token clears it.
func (s *Store) SetAuthToken(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		s.storage.Delete(keyAuthToken)
		return nil
	}
	raw, err := json.Marshal(token)
	if err != nil {
		return errors.Wrap(err, "[Store.SetAuthToken] marshal")
	}
	s.storage.Set(keyAuthToken, string(raw))
	return nil
}

// AuthToken returns the stored bearer credential, or nil. Corrupt stored data
// reads as absent.
func (s *Store) AuthToken() *oauth2.Token {
	raw, ok := s.storage.Get(keyAuthToken)
	if !ok || raw == "" {
		return nil
	}
	var token oauth2.Token
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return nil
	}
	if token.AccessToken == "" {
		return nil
	}
	return &token
}

func (s *Store) ClearAuthToken() {
	s.storage.Delete(keyAuthToken)
}

// EnableExtras activates the extras tier with the given credential. An empty
// token is rejected so the store can never report extras enabled without a
// token to send.
func (s *Store) EnableExtras(token string) error {
	if token == "" {
		return errors.New("[Store.EnableExtras] token is required")
	}
	s.storage.Set(keyExtrasToken, token)
	return nil
}

// Extras returns the current elevation state.
func (s *Store) Extras() ExtrasState {
	v, _ := s.storage.Get(keyExtrasToken)
	return ExtrasState{token: v}
}

func (s *Store) ExtrasToken() string {
	return s.Extras().Token()
}

func (s *Store) IsExtrasEnabled() bool {
	return s.Extras().Enabled()
}

// ClearExtras drops the elevation credential. Token and enabled state are one
// value, so there is no partial clear.
func (s *Store) ClearExtras() {
	s.storage.Delete(keyExtrasToken)
}

// ClearAll resets every field group. Used on logout and on authorization
// failure; calling it twice observes the same state as once.
func (s *Store) ClearAll() {
	s.ClearShift()
	s.ClearAuthToken()
}
