package usuarios

import (
	"context"
	"fmt"
	"strings"

	"github.com/kpsoft/kp-planta/api"
	"github.com/kpsoft/kp-planta/auth"
	"github.com/kpsoft/kp-planta/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	pathUsuarios       = "/api/admin/usuarios"
	pathPasswordChange = "/api/admin/usuarios/password-change"

	minPasswordLength = 8
)

var ErrInvalidUserID = errors.New("invalid user id")

// Service wraps the account-administration endpoints. Every call checks the
// admin session locally first, so a downgraded session fails before any
// request is made.
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
		return nil, errors.New("[usuarios.NewService] api client is required")
	}
	if gate == nil {
		return nil, errors.New("[usuarios.NewService] auth gate is required")
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

func (s *Service) requireAdmin() error {
	if !s.gate.IsAdminSession() {
		return auth.ErrNotAdminSession
	}
	return nil
}

func (s *Service) List(ctx context.Context) ([]Usuario, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	var list []Usuario
	if err := s.client.Get(ctx, pathUsuarios, nil, &list); err != nil {
		return nil, errors.Wrap(err, "[Service.List]")
	}
	return list, nil
}

// CreateInput carries the new-account form.
type CreateInput struct {
	Nombre   string       `json:"nombre"`
	Apellido string       `json:"apellido"`
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Rol      session.Role `json:"rol"`
}

func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.Email) == "" {
		return fmt.Errorf("el email es requerido")
	}
	if len(in.Password) < minPasswordLength {
		return fmt.Errorf("la contraseña debe tener al menos %d caracteres", minPasswordLength)
	}
	if in.Rol != session.RoleOperator && in.Rol != session.RoleAdmin {
		return fmt.Errorf("rol inválido")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	if err := in.Validate(); err != nil {
		return err
	}
	if err := s.client.Post(ctx, pathUsuarios+"/create", in, nil); err != nil {
		return errors.Wrap(err, "[Service.Create]")
	}
	s.log.Info().Str("email", in.Email).Msg("account created")
	return nil
}

// UpdateInput carries a partial account edit. Empty fields are untouched.
type UpdateInput struct {
	UserID   string       `json:"usuario_id"`
	Nombre   string       `json:"nombre,omitempty"`
	Apellido string       `json:"apellido,omitempty"`
	Rol      session.Role `json:"rol,omitempty"`
}

func (s *Service) Update(ctx context.Context, in UpdateInput) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	if strings.TrimSpace(in.UserID) == "" {
		return ErrInvalidUserID
	}
	return errors.Wrap(s.client.Post(ctx, pathUsuarios+"/update", in, nil), "[Service.Update]")
}

type toggleRequest struct {
	UserID string `json:"usuario_id"`
	Activo int    `json:"activo"`
}

// SetActive enables or disables an account. A disabled account cannot log in
// but its history stays intact.
func (s *Service) SetActive(ctx context.Context, userID string, active bool) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUserID
	}
	req := toggleRequest{UserID: userID}
	if active {
		req.Activo = 1
	}
	return errors.Wrap(s.client.Post(ctx, pathUsuarios+"/toggle", req, nil), "[Service.SetActive]")
}

// PendingPasswordChanges lists the user ids waiting on an admin decision.
func (s *Service) PendingPasswordChanges(ctx context.Context) ([]string, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	var pending []string
	if err := s.client.Get(ctx, pathPasswordChange+"/pending", nil, &pending); err != nil {
		return nil, errors.Wrap(err, "[Service.PendingPasswordChanges]")
	}
	return pending, nil
}

type passwordChangeRequest struct {
	UserID string `json:"usuario_id"`
}

// ApprovePasswordChange accepts a pending request.
func (s *Service) ApprovePasswordChange(ctx context.Context, userID string) error {
	return s.decidePasswordChange(ctx, userID, "approve")
}

// CancelPasswordChange discards a pending request.
func (s *Service) CancelPasswordChange(ctx context.Context, userID string) error {
	return s.decidePasswordChange(ctx, userID, "cancel")
}

func (s *Service) decidePasswordChange(ctx context.Context, userID, action string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUserID
	}
	req := passwordChangeRequest{UserID: userID}
	path := fmt.Sprintf("%s/%s", pathPasswordChange, action)
	return errors.Wrapf(s.client.Post(ctx, path, req, nil), "[Service.%s]", action)
}
