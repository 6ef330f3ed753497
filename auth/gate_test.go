package auth_test

import (
	"testing"
	"time"

	"github.com/kpsoft/kp-planta/api"
	"github.com/kpsoft/kp-planta/auth"
	"github.com/kpsoft/kp-planta/events"
	"github.com/kpsoft/kp-planta/plantatest"
	"github.com/kpsoft/kp-planta/session"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type testFixture struct {
	backend    *plantatest.Backend
	store      *session.Store
	bus        *events.Bus
	client     *api.Client
	gate       *auth.Gate
	elevator   *auth.Elevator
	redirects  int
	broadcasts []bool
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	gateOptions []auth.GateOption
}

func withGateOptions(options ...auth.GateOption) fixtureOption {
	return func(c *fixtureConfig) {
		c.gateOptions = append(c.gateOptions, options...)
	}
}

func newTestFixture(t *testing.T, options ...fixtureOption) *testFixture {
	t.Helper()
	cfg := fixtureConfig{}
	for _, opt := range options {
		opt(&cfg)
	}

	store, err := session.NewStore(session.NewInMemoryStorage())
	require.NoError(t, err)

	f := &testFixture{
		backend: plantatest.New(),
		store:   store,
		bus:     events.NewBus(),
	}
	t.Cleanup(f.backend.Close)

	f.bus.Subscribe(func(ev events.ExtrasChanged) {
		f.broadcasts = append(f.broadcasts, ev.Active)
	})

	client, err := api.NewClient(f.backend.URL(), f.store)
	require.NoError(t, err)
	f.client = client

	nav := auth.NavigatorFunc(func() { f.redirects++ })
	gate, err := auth.NewGate(f.store, nav, f.bus, cfg.gateOptions...)
	require.NoError(t, err)
	f.gate = gate

	elevator, err := auth.NewElevator(f.store, client, f.bus)
	require.NoError(t, err)
	f.elevator = elevator
	return f
}

func (f *testFixture) startAdminShift(t *testing.T) {
	t.Helper()
	shiftID := f.backend.SeedShift("admin")
	require.NoError(t, f.store.SetShift(&session.ShiftRecord{
		ShiftSessionID:    shiftID,
		OperatorFirstName: "Marta",
		OperatorLastName:  "Ríos",
		Date:              "2026-08-30",
		Role:              session.RoleAdmin,
	}))
	f.store.SetAdminKey(f.backend.AdminKey())
}

func (f *testFixture) startOperatorShift(t *testing.T) {
	t.Helper()
	shiftID := f.backend.SeedShift("operador")
	require.NoError(t, f.store.SetShift(&session.ShiftRecord{
		ShiftSessionID:    shiftID,
		OperatorFirstName: "Jorge",
		OperatorLastName:  "Paz",
		Date:              "2026-08-30",
		Role:              session.RoleOperator,
	}))
}

func TestGateAdminSession(t *testing.T) {
	t.Run("operator shift is not an admin session", func(t *testing.T) {
		f := newTestFixture(t)
		f.startOperatorShift(t)
		require.False(t, f.gate.IsAdminSession())
	})

	t.Run("admin role without admin key is not enough", func(t *testing.T) {
		f := newTestFixture(t)
		f.startAdminShift(t)
		f.store.SetAdminKey("")
		require.False(t, f.gate.IsAdminSession())
	})

	t.Run("admin role with key is an admin session", func(t *testing.T) {
		f := newTestFixture(t)
		f.startAdminShift(t)
		require.True(t, f.gate.IsAdminSession())
	})
}

func TestGateRequireAdminPage(t *testing.T) {
	t.Run("operator is redirected to login and session is cleared", func(t *testing.T) {
		f := newTestFixture(t)
		f.startOperatorShift(t)
		require.NoError(t, f.store.SetAuthToken(&oauth2.Token{AccessToken: "bearer-1"}))

		require.False(t, f.gate.RequireAdminPage())
		require.Equal(t, 1, f.redirects)
		require.Nil(t, f.store.Shift())
		require.Nil(t, f.store.AuthToken())
	})

	t.Run("admin session passes without redirect", func(t *testing.T) {
		f := newTestFixture(t)
		f.startAdminShift(t)

		require.True(t, f.gate.RequireAdminPage())
		require.Zero(t, f.redirects)
		require.NotNil(t, f.store.Shift())
	})
}

func TestGateExtras(t *testing.T) {
	t.Run("no token means inactive", func(t *testing.T) {
		f := newTestFixture(t)
		f.startAdminShift(t)
		require.False(t, f.gate.IsExtrasActive())
	})

	t.Run("expired token is dropped and broadcast", func(t *testing.T) {
		farFuture := func() time.Time { return time.Now().Add(48 * time.Hour) }
		f := newTestFixture(t, withGateOptions(auth.WithGateNowTime(farFuture)))
		f.startAdminShift(t)
		require.NoError(t, f.store.EnableExtras(f.backend.MintExtrasToken(1)))

		require.False(t, f.gate.IsExtrasActive())
		require.False(t, f.store.IsExtrasEnabled())
		require.Equal(t, []bool{false}, f.broadcasts)
	})

	t.Run("live token is active", func(t *testing.T) {
		f := newTestFixture(t)
		f.startAdminShift(t)
		require.NoError(t, f.store.EnableExtras(f.backend.MintExtrasToken(1)))
		require.True(t, f.gate.IsExtrasActive())
	})
}

func TestGateEnsureExtras(t *testing.T) {
	t.Run("returns error without contacting the backend", func(t *testing.T) {
		f := newTestFixture(t)
		f.startAdminShift(t)

		err := f.gate.EnsureExtras()
		require.ErrorIs(t, err, auth.ErrExtrasRequired)
		require.Zero(t, f.backend.Requests("/api/admin/purge/pedidos/all"))
	})

	t.Run("passes when elevation is live", func(t *testing.T) {
		f := newTestFixture(t)
		f.startAdminShift(t)
		require.NoError(t, f.store.EnableExtras(f.backend.MintExtrasToken(1)))
		require.NoError(t, f.gate.EnsureExtras())
	})
}
