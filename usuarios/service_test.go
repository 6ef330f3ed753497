package usuarios_test

import (
	"context"
	"testing"

	"github.com/kpsoft/kp-planta/api"
	"github.com/kpsoft/kp-planta/auth"
	"github.com/kpsoft/kp-planta/events"
	"github.com/kpsoft/kp-planta/plantatest"
	"github.com/kpsoft/kp-planta/session"
	"github.com/kpsoft/kp-planta/usuarios"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	backend *plantatest.Backend
	store   *session.Store
	service *usuarios.Service
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()

	store, err := session.NewStore(session.NewInMemoryStorage())
	require.NoError(t, err)

	f := &testFixture{
		backend: plantatest.New(),
		store:   store,
	}
	t.Cleanup(f.backend.Close)

	shiftID := f.backend.SeedShift("admin")
	require.NoError(t, store.SetShift(&session.ShiftRecord{
		ShiftSessionID: shiftID,
		Date:           "2026-08-30",
		Role:           session.RoleAdmin,
	}))
	store.SetAdminKey(f.backend.AdminKey())

	client, err := api.NewClient(f.backend.URL(), store)
	require.NoError(t, err)

	gate, err := auth.NewGate(store, auth.NavigatorFunc(func() {}), events.NewBus())
	require.NoError(t, err)

	service, err := usuarios.NewService(client, gate)
	require.NoError(t, err)
	f.service = service
	return f
}

func TestAdminGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("downgraded session fails before any request", func(t *testing.T) {
		f := newTestFixture(t)
		f.store.SetAdminKey("")

		_, err := f.service.List(ctx)
		require.ErrorIs(t, err, auth.ErrNotAdminSession)
		require.Zero(t, f.backend.Requests("/api/admin/usuarios"))
	})
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()

	t.Run("create then list", func(t *testing.T) {
		f := newTestFixture(t)
		err := f.service.Create(ctx, usuarios.CreateInput{
			Nombre:   "Lucía",
			Apellido: "Campos",
			Email:    "lcampos@planta.local",
			Password: "operadora-segura",
			Rol:      session.RoleOperator,
		})
		require.NoError(t, err)

		list, err := f.service.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, "lcampos@planta.local", list[0].Email)
		require.True(t, bool(list[0].Activo))
	})

	t.Run("short password is rejected locally", func(t *testing.T) {
		f := newTestFixture(t)
		err := f.service.Create(ctx, usuarios.CreateInput{
			Email:    "corto@planta.local",
			Password: "corta",
			Rol:      session.RoleOperator,
		})
		require.Error(t, err)
		require.Zero(t, f.backend.Requests("/api/admin/usuarios/create"))
	})

	t.Run("toggle deactivates an account", func(t *testing.T) {
		f := newTestFixture(t)
		f.backend.AddUser("jvega@planta.local", "clave-segura-1", false)
		id := f.backend.UserID("jvega@planta.local")

		require.NoError(t, f.service.SetActive(ctx, id, false))

		list, err := f.service.List(ctx)
		require.NoError(t, err)
		require.False(t, bool(list[0].Activo))
	})

	t.Run("update renames and changes the role", func(t *testing.T) {
		f := newTestFixture(t)
		f.backend.AddUser("jvega@planta.local", "clave-segura-1", false)
		id := f.backend.UserID("jvega@planta.local")

		err := f.service.Update(ctx, usuarios.UpdateInput{
			UserID: id,
			Nombre: "Julián",
			Rol:    session.RoleAdmin,
		})
		require.NoError(t, err)

		list, err := f.service.List(ctx)
		require.NoError(t, err)
		require.Equal(t, "Julián", list[0].Nombre)
		require.Equal(t, session.RoleAdmin, list[0].Rol)
	})
}

func TestPasswordChanges(t *testing.T) {
	ctx := context.Background()

	t.Run("pending queue drains on approval", func(t *testing.T) {
		f := newTestFixture(t)
		f.backend.AddUser("jvega@planta.local", "clave-segura-1", false)
		id := f.backend.UserID("jvega@planta.local")
		f.backend.SeedPasswordChange(id)

		pending, err := f.service.PendingPasswordChanges(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{id}, pending)

		require.NoError(t, f.service.ApprovePasswordChange(ctx, id))

		pending, err = f.service.PendingPasswordChanges(ctx)
		require.NoError(t, err)
		require.Empty(t, pending)
	})

	t.Run("approving without a pending request fails", func(t *testing.T) {
		f := newTestFixture(t)
		err := f.service.ApprovePasswordChange(ctx, "no-such-user")
		require.Error(t, err)
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		f := newTestFixture(t)
		f.backend.AddUser("jvega@planta.local", "clave-segura-1", false)
		id := f.backend.UserID("jvega@planta.local")
		f.backend.SeedPasswordChange(id)

		require.NoError(t, f.service.CancelPasswordChange(ctx, id))
		require.NoError(t, f.service.CancelPasswordChange(ctx, id))
	})
}
