// Package catalogos serves the reference data behind the capture forms:
// sheet types, material variations, and which variations each type admits.
// Reads go through a short-lived cache; admin mutations and elevation
// changes invalidate it so forms never offer stale options.
package catalogos

import (
	"context"
	"strconv"
	"time"

	"github.com/kpsoft/kp-planta/api"
	"github.com/kpsoft/kp-planta/auth"
	"github.com/kpsoft/kp-planta/events"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	pathCatalogos       = "/api/catalogos"
	pathAdminCatalogos  = "/api/admin/catalogos"
	pathAdminVariations = "/api/admin/variaciones"

	cacheKey = "catalogos"
	cacheTTL = 5 * time.Minute
)

// Item is one entry of a catalog.
type Item struct {
	ID     int64  `json:"id"`
	Nombre string `json:"nombre"`
}

// Catalogos is the full reference-data snapshot. Asignaciones maps a sheet
// type id (as a string, the wire format's map key) to the variation ids it
// admits.
type Catalogos struct {
	TiposPlancha []Item             `json:"tipos_plancha"`
	Variaciones  []Item             `json:"variaciones"`
	Asignaciones map[string][]int64 `json:"asignaciones"`
}

// VariationsFor returns the variations assigned to a sheet type, resolved to
// catalog items.
func (c *Catalogos) VariationsFor(tipoPlanchaID int64) []Item {
	ids := c.Asignaciones[strconv.FormatInt(tipoPlanchaID, 10)]
	items := make([]Item, 0, len(ids))
	for _, id := range ids {
		for _, v := range c.Variaciones {
			if v.ID == id {
				items = append(items, v)
			}
		}
	}
	return items
}

// Kind selects which catalog an admin mutation targets.
type Kind string

const (
	KindTiposPlancha Kind = "tipos_plancha"
	KindVariaciones  Kind = "variaciones"
)

func (k Kind) valid() bool {
	return k == KindTiposPlancha || k == KindVariaciones
}

// Service reads and mutates the catalogs. Admin mutations require an admin
// session but not extras; the key travels on the request automatically.
type Service struct {
	client *api.Client
	gate   *auth.Gate
	cache  *cache.Cache
	log    zerolog.Logger
}

type ServiceOption func(*Service)

func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

// NewService builds the service and subscribes it to elevation changes: a
// flip either way drops the cached snapshot, since archived reference rows
// appear and disappear with extras.
func NewService(client *api.Client, gate *auth.Gate, bus *events.Bus, options ...ServiceOption) (*Service, error) {
	if client == nil {
		return nil, errors.New("[catalogos.NewService] api client is required")
	}
	if gate == nil {
		return nil, errors.New("[catalogos.NewService] auth gate is required")
	}
	if bus == nil {
		return nil, errors.New("[catalogos.NewService] event bus is required")
	}

	service := &Service{
		client: client,
		gate:   gate,
		cache:  cache.New(cacheTTL, 2*cacheTTL),
		log:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(service)
	}

	bus.Subscribe(func(events.ExtrasChanged) {
		service.Invalidate()
	})
	return service, nil
}

// Get returns the reference data, served from cache within the TTL.
func (s *Service) Get(ctx context.Context) (*Catalogos, error) {
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(*Catalogos), nil
	}

	var data Catalogos
	if err := s.client.Get(ctx, pathCatalogos, nil, &data); err != nil {
		return nil, errors.Wrap(err, "[Service.Get]")
	}
	s.cache.Set(cacheKey, &data, cache.DefaultExpiration)
	return &data, nil
}

// Invalidate drops the cached snapshot. The next Get refetches.
func (s *Service) Invalidate() {
	s.cache.Delete(cacheKey)
}

type mutateRequest struct {
	Catalogo Kind   `json:"catalogo"`
	ID       int64  `json:"id,omitempty"`
	Nombre   string `json:"nombre,omitempty"`
}

// CreateItem adds an entry to a catalog. Admin only.
func (s *Service) CreateItem(ctx context.Context, kind Kind, nombre string) error {
	if !s.gate.IsAdminSession() {
		return auth.ErrNotAdminSession
	}
	if !kind.valid() {
		return ErrUnknownCatalog
	}
	if nombre == "" {
		return ErrNameRequired
	}
	req := mutateRequest{Catalogo: kind, Nombre: nombre}
	if err := s.client.Post(ctx, pathAdminCatalogos+"/create", req, nil); err != nil {
		return errors.Wrap(err, "[Service.CreateItem]")
	}
	s.Invalidate()
	return nil
}

// UpdateItem renames a catalog entry. Admin only.
func (s *Service) UpdateItem(ctx context.Context, kind Kind, id int64, nombre string) error {
	if !s.gate.IsAdminSession() {
		return auth.ErrNotAdminSession
	}
	if !kind.valid() {
		return ErrUnknownCatalog
	}
	if id <= 0 {
		return ErrInvalidItem
	}
	if nombre == "" {
		return ErrNameRequired
	}
	req := mutateRequest{Catalogo: kind, ID: id, Nombre: nombre}
	if err := s.client.Post(ctx, pathAdminCatalogos+"/update", req, nil); err != nil {
		return errors.Wrap(err, "[Service.UpdateItem]")
	}
	s.Invalidate()
	return nil
}

// DeleteItem removes a catalog entry. Admin only.
func (s *Service) DeleteItem(ctx context.Context, kind Kind, id int64) error {
	if !s.gate.IsAdminSession() {
		return auth.ErrNotAdminSession
	}
	if !kind.valid() {
		return ErrUnknownCatalog
	}
	if id <= 0 {
		return ErrInvalidItem
	}
	req := mutateRequest{Catalogo: kind, ID: id}
	if err := s.client.Post(ctx, pathAdminCatalogos+"/delete", req, nil); err != nil {
		return errors.Wrap(err, "[Service.DeleteItem]")
	}
	s.Invalidate()
	return nil
}

type assignRequest struct {
	TipoPlanchaID int64 `json:"tipo_plancha_id"`
	VariacionID   int64 `json:"variacion_id"`
}

// AssignVariation admits a variation for a sheet type. Admin only.
func (s *Service) AssignVariation(ctx context.Context, tipoPlanchaID, variacionID int64) error {
	return s.setAssignment(ctx, tipoPlanchaID, variacionID, "asignar")
}

// UnassignVariation removes the admission. Admin only.
func (s *Service) UnassignVariation(ctx context.Context, tipoPlanchaID, variacionID int64) error {
	return s.setAssignment(ctx, tipoPlanchaID, variacionID, "desasignar")
}

func (s *Service) setAssignment(ctx context.Context, tipoPlanchaID, variacionID int64, action string) error {
	if !s.gate.IsAdminSession() {
		return auth.ErrNotAdminSession
	}
	if tipoPlanchaID <= 0 || variacionID <= 0 {
		return ErrInvalidItem
	}
	req := assignRequest{TipoPlanchaID: tipoPlanchaID, VariacionID: variacionID}
	if err := s.client.Post(ctx, pathAdminVariations+"/"+action, req, nil); err != nil {
		return errors.Wrapf(err, "[Service.%s]", action)
	}
	s.Invalidate()
	return nil
}
