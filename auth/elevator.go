package auth

import (
	"context"
	"strings"

	"github.com/kpsoft/kp-planta/api"
	"github.com/kpsoft/kp-planta/events"
	"github.com/kpsoft/kp-planta/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	pathElevate      = "/api/extras/elevate"
	pathRotateSecret = "/api/admin/extras-key/rotate"
	pathAdminStatus  = "/api/admin/status"
)

// Elevator runs the exchange that upgrades an authenticated session into an
// extras-enabled one, and the secret rotation that invalidates it.
type Elevator struct {
	store  *session.Store
	client *api.Client
	bus    *events.Bus
	log    zerolog.Logger
}

type ElevatorOption func(*Elevator)

func WithElevatorLogger(log zerolog.Logger) ElevatorOption {
	return func(e *Elevator) {
		e.log = log
	}
}

func NewElevator(store *session.Store, client *api.Client, bus *events.Bus, options ...ElevatorOption) (*Elevator, error) {
	if store == nil {
		return nil, errors.New("[NewElevator] session store is required")
	}
	if client == nil {
		return nil, errors.New("[NewElevator] api client is required")
	}
	if bus == nil {
		return nil, errors.New("[NewElevator] event bus is required")
	}

	elevator := &Elevator{
		store:  store,
		client: client,
		bus:    bus,
		log:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(elevator)
	}
	return elevator, nil
}

type elevateRequest struct {
	ShiftSessionID int64  `json:"registro_turno_id"`
	Secret         string `json:"extras_key,omitempty"`
}

type elevateResponse struct {
	Token string `json:"token"`
}

// AutoElevate silently attempts elevation for an admin session using the
// stored admin key as the secret. It is a no-op when extras is already
// active. Failure is non-blocking: the session stays admin-but-not-extras and
// the caller surfaces a banner with a manual retry path instead of an error
// page.
func (e *Elevator) AutoElevate(ctx context.Context) error {
	shift := e.store.Shift()
	if !shift.IsAdmin() || e.store.AdminKey() == "" {
		return ErrNotAdminSession
	}
	if e.store.IsExtrasEnabled() {
		return nil
	}

	if err := e.exchange(ctx, shift.ShiftSessionID, e.store.AdminKey()); err != nil {
		// Already inactive, so no state flips and nothing to broadcast.
		e.store.ClearExtras()
		e.log.Info().Err(err).Msg("auto elevation failed, admin session continues without extras")
		return errors.Wrap(err, ErrAutoElevateFailed.Error())
	}

	e.bus.Publish(events.ExtrasChanged{Active: true})
	return nil
}

// Elevate runs the manual flow: any role holding a valid shift may present
// the secret. On failure any extras credential is cleared so the session can
// never report enabled without a token, and the server's message (when
// present) comes back verbatim for the retry prompt.
func (e *Elevator) Elevate(ctx context.Context, secret string) error {
	shift := e.store.Shift()
	if !shift.Valid() {
		return ErrInvalidShift
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ErrSecretRequired
	}

	if err := e.exchange(ctx, shift.ShiftSessionID, secret); err != nil {
		wasActive := e.store.IsExtrasEnabled()
		e.store.ClearExtras()
		if wasActive {
			e.bus.Publish(events.ExtrasChanged{Active: false})
		}
		return err
	}

	e.bus.Publish(events.ExtrasChanged{Active: true})
	return nil
}

// Deactivate drops the elevation by explicit user choice.
func (e *Elevator) Deactivate() {
	if !e.store.IsExtrasEnabled() {
		return
	}
	e.store.ClearExtras()
	e.bus.Publish(events.ExtrasChanged{Active: false})
}

type rotateSecretRequest struct {
	CurrentSecret string `json:"extras_key_current"`
	NewSecret     string `json:"extras_key_new"`
}

// RotateSecret changes the admin secret. A successful rotation makes every
// previously issued extras token invalid server-side, so the local token is
// cleared here unconditionally rather than trusting the caller to do it;
// re-elevation with the new secret is required afterwards.
func (e *Elevator) RotateSecret(ctx context.Context, input RotateSecretInput) error {
	if err := input.Validate(); err != nil {
		return err
	}

	req := rotateSecretRequest{
		CurrentSecret: strings.TrimSpace(input.CurrentSecret),
		NewSecret:     strings.TrimSpace(input.NewSecret),
	}
	if err := e.client.Post(ctx, pathRotateSecret, req, nil); err != nil {
		return err
	}

	wasActive := e.store.IsExtrasEnabled()
	e.store.ClearExtras()
	e.log.Info().Msg("extras secret rotated, elevation invalidated")
	if wasActive {
		e.bus.Publish(events.ExtrasChanged{Active: false})
	}
	return nil
}

type statusResponse struct {
	ExtrasActive bool `json:"extras_active"`
}

// SyncStatus asks the backend whether the current elevation is still honored
// and reconciles local state with the answer. A rotation performed elsewhere
// shows up here: the server reports inactive, the local token is dropped, and
// the deactivation is broadcast.
func (e *Elevator) SyncStatus(ctx context.Context) (bool, error) {
	var res statusResponse
	if err := e.client.Get(ctx, pathAdminStatus, nil, &res); err != nil {
		return e.store.IsExtrasEnabled(), err
	}
	if !res.ExtrasActive && e.store.IsExtrasEnabled() {
		e.log.Info().Msg("server no longer honors the extras token, clearing")
		e.store.ClearExtras()
		e.bus.Publish(events.ExtrasChanged{Active: false})
	}
	return res.ExtrasActive, nil
}

func (e *Elevator) exchange(ctx context.Context, shiftSessionID int64, secret string) error {
	var res elevateResponse
	req := elevateRequest{ShiftSessionID: shiftSessionID, Secret: secret}
	if err := e.client.Post(ctx, pathElevate, req, &res); err != nil {
		return err
	}
	if res.Token == "" {
		return errors.New("[Elevator.exchange] server response carried no token")
	}
	return errors.Wrap(e.store.EnableExtras(res.Token), "[Elevator.exchange] store token")
}
