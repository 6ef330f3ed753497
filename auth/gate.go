// Package auth decides what the current session may do. The gate derives
// everything from session state: admin-page access needs a valid admin shift
// plus the admin key, and privileged ("extras") actions need an elevation
// token obtained through a separate secret exchange.
package auth

import (
	"time"

	"github.com/kpsoft/kp-planta/auth/extrastoken"
	"github.com/kpsoft/kp-planta/events"
	"github.com/kpsoft/kp-planta/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Navigator moves the user to the login entry point when a page guard fails.
type Navigator interface {
	ToLogin()
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func()

func (f NavigatorFunc) ToLogin() { f() }

// Gate is pure decision logic over the session store. It owns no state of its
// own beyond its collaborators.
type Gate struct {
	store   *session.Store
	nav     Navigator
	bus     *events.Bus
	log     zerolog.Logger
	nowTime func() time.Time
}

type GateOption func(*Gate)

// WithGateNowTime sets the now time function (primarily for testing).
func WithGateNowTime(nowFunc func() time.Time) GateOption {
	return func(g *Gate) {
		g.nowTime = nowFunc
	}
}

func WithGateLogger(log zerolog.Logger) GateOption {
	return func(g *Gate) {
		g.log = log
	}
}

func NewGate(store *session.Store, nav Navigator, bus *events.Bus, options ...GateOption) (*Gate, error) {
	if store == nil {
		return nil, errors.New("[NewGate] session store is required")
	}
	if nav == nil {
		return nil, errors.New("[NewGate] navigator is required")
	}
	if bus == nil {
		return nil, errors.New("[NewGate] event bus is required")
	}

	gate := &Gate{
		store:   store,
		nav:     nav,
		bus:     bus,
		log:     zerolog.Nop(),
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(gate)
	}
	return gate, nil
}

// IsAdminSession reports whether the current shift is a usable admin session:
// a valid shift record with the admin role plus the admin key issued at
// shift start. Admin role alone is necessary but not sufficient for extras.
func (g *Gate) IsAdminSession() bool {
	shift := g.store.Shift()
	return shift.IsAdmin() && g.store.AdminKey() != ""
}

// IsExtrasActive reports whether privileged actions are currently permitted.
// Token presence is authoritative. A token that is locally known to be
// expired is dropped here so dependent views see the deactivation at the
// moment of the next check, not after a rejected request.
func (g *Gate) IsExtrasActive() bool {
	state := g.store.Extras()
	if !state.Enabled() {
		return false
	}
	if extrastoken.Expired(state.Token(), g.nowTime()) {
		g.log.Debug().Msg("extras token expired locally, clearing")
		g.store.ClearExtras()
		g.bus.Publish(events.ExtrasChanged{Active: false})
		return false
	}
	return true
}

// RequireAdminPage is the sole guard keeping non-admins off admin views. On
// failure it clears the whole session and navigates to the login entry point;
// the caller must abort all further page initialization when it returns
// false, before touching any view state or issuing privileged requests.
func (g *Gate) RequireAdminPage() bool {
	if g.IsAdminSession() {
		return true
	}
	g.log.Info().Msg("admin page access denied, clearing session")
	g.store.ClearAll()
	g.nav.ToLogin()
	return false
}

// EnsureExtras gates a destructive or privileged action. Callers invoke it at
// the moment of the action, never from cached page-load state, because
// elevation can fail or lapse after initial render. Returns ErrExtrasRequired
// without contacting the backend when elevation is missing.
func (g *Gate) EnsureExtras() error {
	if !g.IsExtrasActive() {
		return ErrExtrasRequired
	}
	return nil
}
