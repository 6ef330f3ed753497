// Package login runs the two entry flows: account sign-in, which yields the
// durable bearer credential, and shift start, which opens the working
// session. Admin shifts additionally receive the admin key and attempt a
// silent elevation.
package login

import (
	"context"
	"fmt"
	"strings"

	"github.com/kpsoft/kp-planta/api"
	"github.com/kpsoft/kp-planta/auth"
	"github.com/kpsoft/kp-planta/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	pathLogin      = "/api/auth/login"
	pathRegister   = "/api/auth/register"
	pathLogout     = "/api/auth/logout"
	pathStartShift = "/api/registro-turno/iniciar"

	minPasswordLength = 8
	minNameLength     = 2
)

// Account is the signed-in identity returned by the backend.
type Account struct {
	ID       string       `json:"id"`
	Nombre   string       `json:"nombre"`
	Apellido string       `json:"apellido"`
	Email    string       `json:"email"`
	Rol      session.Role `json:"rol"`
}

// Service drives the sign-in and shift-start flows.
type Service struct {
	client   *api.Client
	store    *session.Store
	elevator *auth.Elevator
	log      zerolog.Logger
}

type ServiceOption func(*Service)

func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

func NewService(client *api.Client, store *session.Store, elevator *auth.Elevator, options ...ServiceOption) (*Service, error) {
	if client == nil {
		return nil, errors.New("[login.NewService] api client is required")
	}
	if store == nil {
		return nil, errors.New("[login.NewService] session store is required")
	}
	if elevator == nil {
		return nil, errors.New("[login.NewService] elevator is required")
	}

	service := &Service{
		client:   client,
		store:    store,
		elevator: elevator,
		log:      zerolog.Nop(),
	}
	for _, opt := range options {
		opt(service)
	}
	return service, nil
}

type loginRequest struct {
	Identificador string `json:"identificador"`
	Password      string `json:"password"`
}

type loginResponse struct {
	Token   string  `json:"token"`
	Usuario Account `json:"usuario"`
}

// Login exchanges credentials for the bearer token and stores it. The shift,
// if any, is untouched: signing in again mid-shift keeps the shift.
func (s *Service) Login(ctx context.Context, identificador, password string) (*Account, error) {
	identificador = strings.TrimSpace(identificador)
	if identificador == "" || password == "" {
		return nil, fmt.Errorf("ingrese usuario y contraseña")
	}

	var res loginResponse
	req := loginRequest{Identificador: identificador, Password: password}
	if err := s.client.Post(ctx, pathLogin, req, &res); err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, errors.New("[Service.Login] server response carried no token")
	}

	token := &oauth2.Token{AccessToken: res.Token, TokenType: "Bearer"}
	if err := s.store.SetAuthToken(token); err != nil {
		return nil, errors.Wrap(err, "[Service.Login] store token")
	}
	s.log.Info().Str("rol", string(res.Usuario.Rol)).Msg("signed in")
	return &res.Usuario, nil
}

// RegisterInput carries the self-registration form. New accounts always
// start as operators; promotion is an admin action.
type RegisterInput struct {
	Nombre   string `json:"nombre"`
	Apellido string `json:"apellido"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (in RegisterInput) Validate() error {
	if len(strings.TrimSpace(in.Nombre)) < minNameLength {
		return fmt.Errorf("el nombre debe tener al menos %d caracteres", minNameLength)
	}
	if len(strings.TrimSpace(in.Apellido)) < minNameLength {
		return fmt.Errorf("el apellido debe tener al menos %d caracteres", minNameLength)
	}
	if strings.TrimSpace(in.Email) == "" {
		return fmt.Errorf("el email es requerido")
	}
	if len(in.Password) < minPasswordLength {
		return fmt.Errorf("la contraseña debe tener al menos %d caracteres", minPasswordLength)
	}
	return nil
}

func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	return errors.Wrap(s.client.Post(ctx, pathRegister, in, nil), "[Service.Register]")
}

// Logout tells the backend to revoke the bearer and clears the whole local
// session. The local clear happens even when the revoke call fails; a dead
// backend must not pin a session alive.
func (s *Service) Logout(ctx context.Context) {
	if s.store.AuthToken() != nil {
		if err := s.client.Post(ctx, pathLogout, nil, nil); err != nil {
			s.log.Warn().Err(err).Msg("server-side logout failed, clearing locally anyway")
		}
	}
	s.store.ClearAll()
}

type startShiftRequest struct {
	OperadorNombre   string `json:"operador_nombre"`
	OperadorApellido string `json:"operador_apellido"`
}

type startShiftResponse struct {
	ShiftSessionID int64        `json:"registro_turno_id"`
	Fecha          string       `json:"fecha"`
	Rol            session.Role `json:"rol"`
	AdminKey       string       `json:"admin_key"`
}

// StartShift opens a shift session for the named operator. The backend
// decides the role from the bearer credential. For admin shifts the returned
// admin key is stored and a silent elevation is attempted; its failure is
// logged, not returned, so the shift always starts.
func (s *Service) StartShift(ctx context.Context, firstName, lastName string) (*session.ShiftRecord, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if len(firstName) < minNameLength || len(lastName) < minNameLength {
		return nil, fmt.Errorf("nombre y apellido deben tener al menos %d caracteres", minNameLength)
	}

	var res startShiftResponse
	req := startShiftRequest{OperadorNombre: firstName, OperadorApellido: lastName}
	if err := s.client.Post(ctx, pathStartShift, req, &res); err != nil {
		return nil, err
	}

	record := &session.ShiftRecord{
		ShiftSessionID:    res.ShiftSessionID,
		OperatorFirstName: firstName,
		OperatorLastName:  lastName,
		Date:              res.Fecha,
		Role:              res.Rol,
	}
	if err := s.store.SetShift(record); err != nil {
		return nil, errors.Wrap(err, "[Service.StartShift] store shift")
	}

	if record.IsAdmin() && res.AdminKey != "" {
		s.store.SetAdminKey(res.AdminKey)
		if err := s.elevator.AutoElevate(ctx); err != nil {
			s.log.Info().Err(err).Msg("silent elevation failed, shift starts without extras")
		}
	}
	return record, nil
}

// EndShift closes the working session but keeps the bearer credential, so
// the next shift can start without signing in again.
func (s *Service) EndShift() {
	s.store.ClearShift()
}
