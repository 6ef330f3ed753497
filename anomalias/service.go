package anomalias

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
	pathAnomalias  = "/api/anomalias"
	pathPurgeRange = "/api/admin/purge/anomalias/range"
	pathPurgeAll   = "/api/admin/purge/anomalias/all"
	pathExportCSV  = "/api/admin/export/anomalias.csv"
)

// Service wraps the incident endpoints behind the elevation gate.
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
		return nil, errors.New("[anomalias.NewService] api client is required")
	}
	if gate == nil {
		return nil, errors.New("[anomalias.NewService] auth gate is required")
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
	IncludeArchived bool
}

func (s *Service) List(ctx context.Context, in ListInput) ([]Anomalia, error) {
	query := url.Values{}
	if in.Estado != "" {
		query.Set("estado", string(in.Estado))
	}
	if in.IncludeArchived {
		if err := s.gate.EnsureExtras(); err != nil {
			return nil, err
		}
		query.Set("incluir_archivados", "1")
	}

	var list []Anomalia
	if err := s.client.Get(ctx, pathAnomalias, query, &list); err != nil {
		return nil, errors.Wrap(err, "[Service.List]")
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Anomalia, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}
	var a Anomalia
	if err := s.client.Get(ctx, fmt.Sprintf("%s/%d", pathAnomalias, id), nil, &a); err != nil {
		return nil, errors.Wrap(err, "[Service.Get]")
	}
	return &a, nil
}

// Report files a new incident. It opens en_revision with no solution.
func (s *Service) Report(ctx context.Context, in CreateInput) (*Anomalia, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var a Anomalia
	if err := s.client.Post(ctx, pathAnomalias, in, &a); err != nil {
		return nil, errors.Wrap(err, "[Service.Report]")
	}
	s.log.Info().Int64("anomalia_id", a.ID).Str("maquina", a.Maquina).Msg("incident reported")
	return &a, nil
}

// Update moves an incident between states. The current record is fetched
// first to enforce the archive and resolved-state locks locally; reopening a
// resolved incident needs an active elevation.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*Anomalia, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := current.Lock().CheckEdit(s.gate.IsExtrasActive()); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var a Anomalia
	path := fmt.Sprintf("%s/%d/actualizar", pathAnomalias, id)
	if err := s.client.Post(ctx, path, in, &a); err != nil {
		return nil, errors.Wrap(err, "[Service.Update]")
	}
	return &a, nil
}

// Archive hides an incident from the default views. Extras only.
func (s *Service) Archive(ctx context.Context, id int64) error {
	return s.setArchived(ctx, id, "archivar")
}

// Restore brings an archived incident back. Extras only.
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
	path := fmt.Sprintf("%s/%d/%s", pathAnomalias, id, action)
	return errors.Wrapf(s.client.Post(ctx, path, nil, nil), "[Service.%s]", action)
}

type purgeRequest struct {
	From string `json:"desde,omitempty"`
	To   string `json:"hasta,omitempty"`
}

type purgeResponse struct {
	Deleted int `json:"deleted"`
}

// PurgeRange permanently deletes archived incidents registered inside the
// date range. Admin plus extras.
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
	s.log.Info().Int("deleted", res.Deleted).Msg("archived incidents purged by range")
	return res.Deleted, nil
}

// PurgeAll permanently deletes every archived incident. Admin plus extras.
func (s *Service) PurgeAll(ctx context.Context) (int, error) {
	if err := s.gate.EnsureExtras(); err != nil {
		return 0, err
	}
	var res purgeResponse
	if err := s.client.Post(ctx, pathPurgeAll, nil, &res); err != nil {
		return 0, errors.Wrap(err, "[Service.PurgeAll]")
	}
	s.log.Info().Int("deleted", res.Deleted).Msg("all archived incidents purged")
	return res.Deleted, nil
}

// ExportCSV downloads the admin CSV export of incidents.
func (s *Service) ExportCSV(ctx context.Context) ([]byte, error) {
	raw, err := s.client.GetRaw(ctx, pathExportCSV, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.ExportCSV]")
	}
	return raw, nil
}
