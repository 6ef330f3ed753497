package catalogos_test

import (
	"context"
	"testing"

	"github.com/kpsoft/kp-planta/api"
	"github.com/kpsoft/kp-planta/auth"
	"github.com/kpsoft/kp-planta/catalogos"
	"github.com/kpsoft/kp-planta/events"
	"github.com/kpsoft/kp-planta/plantatest"
	"github.com/kpsoft/kp-planta/session"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	backend *plantatest.Backend
	store   *session.Store
	bus     *events.Bus
	service *catalogos.Service
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()

	store, err := session.NewStore(session.NewInMemoryStorage())
	require.NoError(t, err)

	f := &testFixture{
		backend: plantatest.New(),
		store:   store,
		bus:     events.NewBus(),
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

	gate, err := auth.NewGate(store, auth.NavigatorFunc(func() {}), f.bus)
	require.NoError(t, err)

	service, err := catalogos.NewService(client, gate, f.bus)
	require.NoError(t, err)
	f.service = service
	return f
}

func TestGet(t *testing.T) {
	ctx := context.Background()

	t.Run("returns both catalogs", func(t *testing.T) {
		f := newTestFixture(t)
		data, err := f.service.Get(ctx)
		require.NoError(t, err)
		require.Len(t, data.TiposPlancha, 2)
		require.Len(t, data.Variaciones, 2)
	})

	t.Run("serves repeat reads from cache", func(t *testing.T) {
		f := newTestFixture(t)
		_, err := f.service.Get(ctx)
		require.NoError(t, err)
		_, err = f.service.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, f.backend.Requests("/api/catalogos"))
	})

	t.Run("elevation change drops the cache", func(t *testing.T) {
		f := newTestFixture(t)
		_, err := f.service.Get(ctx)
		require.NoError(t, err)

		f.bus.Publish(events.ExtrasChanged{Active: true})

		_, err = f.service.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, f.backend.Requests("/api/catalogos"))
	})
}

func TestAdminMutations(t *testing.T) {
	ctx := context.Background()

	t.Run("create invalidates the cache", func(t *testing.T) {
		f := newTestFixture(t)
		data, err := f.service.Get(ctx)
		require.NoError(t, err)
		require.Len(t, data.TiposPlancha, 2)

		require.NoError(t, f.service.CreateItem(ctx, catalogos.KindTiposPlancha, "Cobre"))

		data, err = f.service.Get(ctx)
		require.NoError(t, err)
		require.Len(t, data.TiposPlancha, 3)
	})

	t.Run("update renames an item", func(t *testing.T) {
		f := newTestFixture(t)
		require.NoError(t, f.service.UpdateItem(ctx, catalogos.KindVariaciones, 1, "Satinado"))

		data, err := f.service.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, "Satinado", data.Variaciones[0].Nombre)
	})

	t.Run("delete removes an item", func(t *testing.T) {
		f := newTestFixture(t)
		require.NoError(t, f.service.DeleteItem(ctx, catalogos.KindVariaciones, 2))

		data, err := f.service.Get(ctx)
		require.NoError(t, err)
		require.Len(t, data.Variaciones, 1)
	})

	t.Run("mutation without an admin session fails locally", func(t *testing.T) {
		f := newTestFixture(t)
		f.store.SetAdminKey("")

		err := f.service.CreateItem(ctx, catalogos.KindTiposPlancha, "Cobre")
		require.ErrorIs(t, err, auth.ErrNotAdminSession)
		require.Zero(t, f.backend.Requests("/api/admin/catalogos/create"))
	})

	t.Run("unknown catalog is rejected locally", func(t *testing.T) {
		f := newTestFixture(t)
		err := f.service.CreateItem(ctx, catalogos.Kind("colores"), "Rojo")
		require.ErrorIs(t, err, catalogos.ErrUnknownCatalog)
		require.Zero(t, f.backend.Requests("/api/admin/catalogos/create"))
	})
}

func TestVariationAssignment(t *testing.T) {
	ctx := context.Background()

	t.Run("assign and resolve per sheet type", func(t *testing.T) {
		f := newTestFixture(t)
		require.NoError(t, f.service.AssignVariation(ctx, 1, 2))

		data, err := f.service.Get(ctx)
		require.NoError(t, err)
		items := data.VariationsFor(1)
		require.Len(t, items, 1)
		require.Equal(t, "Brillante", items[0].Nombre)
		require.Empty(t, data.VariationsFor(2))
	})

	t.Run("double assignment conflicts", func(t *testing.T) {
		f := newTestFixture(t)
		require.NoError(t, f.service.AssignVariation(ctx, 1, 1))
		require.Error(t, f.service.AssignVariation(ctx, 1, 1))
	})

	t.Run("unassign removes the admission", func(t *testing.T) {
		f := newTestFixture(t)
		require.NoError(t, f.service.AssignVariation(ctx, 1, 1))
		require.NoError(t, f.service.UnassignVariation(ctx, 1, 1))

		data, err := f.service.Get(ctx)
		require.NoError(t, err)
		require.Empty(t, data.VariationsFor(1))
	})
}
