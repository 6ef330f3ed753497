package login_test

import (
	"context"
	"testing"

	"github.com/kpsoft/kp-planta/api"
	"github.com/kpsoft/kp-planta/auth"
	"github.com/kpsoft/kp-planta/events"
	"github.com/kpsoft/kp-planta/login"
	"github.com/kpsoft/kp-planta/plantatest"
	"github.com/kpsoft/kp-planta/session"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	backend *plantatest.Backend
	store   *session.Store
	service *login.Service
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

	client, err := api.NewClient(f.backend.URL(), store)
	require.NoError(t, err)

	elevator, err := auth.NewElevator(store, client, events.NewBus())
	require.NoError(t, err)

	service, err := login.NewService(client, store, elevator)
	require.NoError(t, err)
	f.service = service
	return f
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials store the bearer", func(t *testing.T) {
		f := newTestFixture(t)
		f.backend.AddUser("mrios@planta.local", "clave-segura-1", true)

		account, err := f.service.Login(ctx, "mrios@planta.local", "clave-segura-1")
		require.NoError(t, err)
		require.Equal(t, session.RoleAdmin, account.Rol)
		require.NotNil(t, f.store.AuthToken())
	})

	t.Run("wrong password surfaces the server message", func(t *testing.T) {
		f := newTestFixture(t)
		f.backend.AddUser("mrios@planta.local", "clave-segura-1", false)

		_, err := f.service.Login(ctx, "mrios@planta.local", "otra-clave")
		var apiErr *api.Error
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, "Credenciales inválidas.", apiErr.Message)
		require.Nil(t, f.store.AuthToken())
	})

	t.Run("blank credentials never reach the backend", func(t *testing.T) {
		f := newTestFixture(t)
		_, err := f.service.Login(ctx, "  ", "")
		require.Error(t, err)
		require.Zero(t, f.backend.Requests("/api/auth/login"))
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("registered account can sign in", func(t *testing.T) {
		f := newTestFixture(t)
		err := f.service.Register(ctx, login.RegisterInput{
			Nombre:   "Lucía",
			Apellido: "Campos",
			Email:    "lcampos@planta.local",
			Username: "lcampos",
			Password: "clave-segura-1",
		})
		require.NoError(t, err)

		account, err := f.service.Login(ctx, "lcampos@planta.local", "clave-segura-1")
		require.NoError(t, err)
		require.Equal(t, session.RoleOperator, account.Rol)
	})

	t.Run("short password is rejected locally", func(t *testing.T) {
		f := newTestFixture(t)
		err := f.service.Register(ctx, login.RegisterInput{
			Nombre:   "Lucía",
			Apellido: "Campos",
			Email:    "lcampos@planta.local",
			Password: "corta",
		})
		require.Error(t, err)
		require.Zero(t, f.backend.Requests("/api/auth/register"))
	})
}

func TestStartShift(t *testing.T) {
	ctx := context.Background()

	t.Run("operator shift carries no admin key and no extras", func(t *testing.T) {
		f := newTestFixture(t)
		f.backend.AddUser("jvega@planta.local", "clave-segura-1", false)
		_, err := f.service.Login(ctx, "jvega@planta.local", "clave-segura-1")
		require.NoError(t, err)

		record, err := f.service.StartShift(ctx, "Jorge", "Vega")
		require.NoError(t, err)
		require.False(t, record.IsAdmin())
		require.Empty(t, f.store.AdminKey())
		require.False(t, f.store.IsExtrasEnabled())
	})

	t.Run("admin shift stores the key and elevates silently", func(t *testing.T) {
		f := newTestFixture(t)
		f.backend.AddUser("mrios@planta.local", "clave-segura-1", true)
		_, err := f.service.Login(ctx, "mrios@planta.local", "clave-segura-1")
		require.NoError(t, err)

		record, err := f.service.StartShift(ctx, "Marta", "Ríos")
		require.NoError(t, err)
		require.True(t, record.IsAdmin())
		require.Equal(t, f.backend.AdminKey(), f.store.AdminKey())
		require.True(t, f.store.IsExtrasEnabled())
	})

	t.Run("short names never reach the backend", func(t *testing.T) {
		f := newTestFixture(t)
		_, err := f.service.StartShift(ctx, "J", "V")
		require.Error(t, err)
		require.Zero(t, f.backend.Requests("/api/registro-turno/iniciar"))
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("clears bearer, shift, key and extras", func(t *testing.T) {
		f := newTestFixture(t)
		f.backend.AddUser("mrios@planta.local", "clave-segura-1", true)
		_, err := f.service.Login(ctx, "mrios@planta.local", "clave-segura-1")
		require.NoError(t, err)
		_, err = f.service.StartShift(ctx, "Marta", "Ríos")
		require.NoError(t, err)

		f.service.Logout(ctx)
		require.Nil(t, f.store.AuthToken())
		require.Nil(t, f.store.Shift())
		require.Empty(t, f.store.AdminKey())
		require.False(t, f.store.IsExtrasEnabled())
	})

	t.Run("local state clears even when the backend is unreachable", func(t *testing.T) {
		f := newTestFixture(t)
		f.backend.AddUser("jvega@planta.local", "clave-segura-1", false)
		_, err := f.service.Login(ctx, "jvega@planta.local", "clave-segura-1")
		require.NoError(t, err)

		f.backend.Close()
		f.service.Logout(ctx)
		require.Nil(t, f.store.AuthToken())
		require.Nil(t, f.store.Shift())
	})

	t.Run("ending the shift keeps the bearer", func(t *testing.T) {
		f := newTestFixture(t)
		f.backend.AddUser("jvega@planta.local", "clave-segura-1", false)
		_, err := f.service.Login(ctx, "jvega@planta.local", "clave-segura-1")
		require.NoError(t, err)
		_, err = f.service.StartShift(ctx, "Jorge", "Vega")
		require.NoError(t, err)

		f.service.EndShift()
		require.Nil(t, f.store.Shift())
		require.NotNil(t, f.store.AuthToken())
	})
}
