package pedidos

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/kpsoft/kp-planta/api"
	"github.com/kpsoft/kp-planta/auth"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	pathPedidos    = "/api/pedidos"
	pathPurgeRange = "/api/admin/purge/pedidos/range"
	pathPurgeAll   = "/api/admin/purge/pedidos/all"
	pathExportCSV  = "/api/admin/export/pedidos.csv"
)

// Service wraps the work-order endpoints behind the elevation gate.
type Service struct {
	client *api.Client
	gate   *auth.Gate
	log    zerolog.Logger
}

type ServiceOption func(*Service)

func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

func NewService(client *api.Client, gate *auth.Gate, options ...ServiceOption) (*Service, error) {
	if client == nil {
		return nil, errors.New("[pedidos.NewService] api client is required")
	}
	if gate == nil {
		return nil, errors.New("[pedidos.NewService] auth gate is required")
	}

	service := &Service{
		client: client,
		gate:   gate,
		log:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(service)
	}
	return service, nil
}

// ListInput narrows a listing. IncludeArchived is an extras-only view.
type ListInput struct {
	Estado          Estado
	Query           string
	IncludeArchived bool
}

// List fetches work orders. Requesting archived rows without an active
// elevation fails locally, before any request is made.
func (s *Service) List(ctx context.Context, in ListInput) ([]Pedido, error) {
	query := url.Values{}
	if in.Estado != "" {
		query.Set("estado", string(in.Estado))
	}
	if in.Query != "" {
		query.Set("q", in.Query)
	}
	if in.IncludeArchived {
		if err := s.gate.EnsureExtras(); err != nil {
			return nil, err
		}
		query.Set("incluir_archivados", "1")
	}

	var list []Pedido
	if err := s.client.Get(ctx, pathPedidos, query, &list); err != nil {
		return nil, errors.Wrap(err, "[Service.List]")
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Pedido, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}
	var p Pedido
	if err := s.client.Get(ctx, fmt.Sprintf("%s/%d", pathPedidos, id), nil, &p); err != nil {
		return nil, errors.Wrap(err, "[Service.Get]")
	}
	return &p, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Pedido, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var p Pedido
	if err := s.client.Post(ctx, pathPedidos, in, &p); err != nil {
		return nil, errors.Wrap(err, "[Service.Create]")
	}
	s.log.Info().Int64("pedido_id", p.ID).Msg("work order created")
	return &p, nil
}

// Update applies a progress update. The current record is fetched first so
// the archive and terminal-state locks are enforced locally, with the same
// precedence the backend applies: archived always refuses, a closed order
// yields only to an active elevation.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*Pedido, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := current.Lock().CheckEdit(s.gate.IsExtrasActive()); err != nil {
		return nil, err
	}
	if err := in.validateAgainst(current); err != nil {
		return nil, err
	}

	var p Pedido
	path := fmt.Sprintf("%s/%d/actualizar", pathPedidos, id)
	if err := s.client.Post(ctx, path, in, &p); err != nil {
		return nil, errors.Wrap(err, "[Service.Update]")
	}
	return &p, nil
}

// Archive hides a work order from the default views. Extras only.
func (s *Service) Archive(ctx context.Context, id int64) error {
	return s.setArchived(ctx, id, "archivar")
}

// Restore brings an archived work order back. Extras only.
func (s *Service) Restore(ctx context.Context, id int64) error {
	return s.setArchived(ctx, id, "restaurar")
}

func (s *Service) setArchived(ctx context.Context, id int64, action string) error {
	if id <= 0 {
		return ErrInvalidID
	}
	if err := s.gate.EnsureExtras(); err != nil {
		return err
	}
	path := fmt.Sprintf("%s/%d/%s", pathPedidos, id, action)
	return errors.Wrapf(s.client.Post(ctx, path, nil, nil), "[Service.%s]", action)
}

type purgeRequest struct {
	From string `json:"desde,omitempty"`
	To   string `json:"hasta,omitempty"`
}

type purgeResponse struct {
	Deleted int `json:"deleted"`
}

// PurgeRange permanently deletes archived orders registered inside the date
// range. Admin plus extras.
func (s *Service) PurgeRange(ctx context.Context, from, to time.Time) (int, error) {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return 0, ErrInvalidDateRange
	}
	if err := s.gate.EnsureExtras(); err != nil {
		return 0, err
	}

	req := purgeRequest{From: from.Format("2006-01-02"), To: to.Format("2006-01-02")}
	var res purgeResponse
	if err := s.client.Post(ctx, pathPurgeRange, req, &res); err != nil {
		return 0, errors.Wrap(err, "[Service.PurgeRange]")
	}
	s.log.Info().Int("deleted", res.Deleted).Msg("archived work orders purged by range")
	return res.Deleted, nil
}

// PurgeAll permanently deletes every archived order. Admin plus extras.
func (s *Service) PurgeAll(ctx context.Context) (int, error) {
	if err := s.gate.EnsureExtras(); err != nil {
		return 0, err
	}
	var res purgeResponse
	if err := s.client.Post(ctx, pathPurgeAll, nil, &res); err != nil {
		return 0, errors.Wrap(err, "[Service.PurgeAll]")
	}
	s.log.Info().Int("deleted", res.Deleted).Msg("all archived work orders purged")
	return res.Deleted, nil
}

// ExportCSV downloads the admin CSV export of work orders.
func (s *Service) ExportCSV(ctx context.Context) ([]byte, error) {
	raw, err := s.client.GetRaw(ctx, pathExportCSV, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.ExportCSV]")
	}
	return raw, nil
}
