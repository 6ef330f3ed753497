package main

import (
	"net/http"
	"os"
	"time"

	"github.com/kpsoft/kp-planta/anomalias"
	"github.com/kpsoft/kp-planta/api"
	"github.com/kpsoft/kp-planta/auth"
	"github.com/kpsoft/kp-planta/catalogos"
	"github.com/kpsoft/kp-planta/events"
	"github.com/kpsoft/kp-planta/internal/config"
	"github.com/kpsoft/kp-planta/login"
	"github.com/kpsoft/kp-planta/pedidos"
	"github.com/kpsoft/kp-planta/session"
	"github.com/kpsoft/kp-planta/usuarios"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// app holds the wired services behind every command.
type app struct {
	store     *session.Store
	gate      *auth.Gate
	elevator  *auth.Elevator
	login     *login.Service
	pedidos   *pedidos.Service
	anomalias *anomalias.Service
	catalogos *catalogos.Service
	usuarios  *usuarios.Service
	log       zerolog.Logger
}

func newApp(c config.Config) (*app, error) {
	logLevel, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(logLevel).
		With().Timestamp().Logger()

	storage, err := session.NewFileStorage(c.GetSessionFile())
	if err != nil {
		return nil, errors.Wrap(err, "[newApp] session file")
	}
	store, err := session.NewStore(storage)
	if err != nil {
		return nil, errors.Wrap(err, "[newApp]")
	}

	bus := events.NewBus()
	bus.Subscribe(func(ev events.ExtrasChanged) {
		logger.Debug().Bool("active", ev.Active).Msg("extras state changed")
	})

	httpClient := &http.Client{Timeout: time.Duration(c.GetHTTPTimeout()) * time.Second}
	client, err := api.NewClient(c.GetBackendURL(), store,
		api.WithHTTPClient(httpClient),
		api.WithLogger(logger),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[newApp]")
	}

	// Failed page guards drop the session and point back at sign-in.
	nav := auth.NavigatorFunc(func() {
		logger.Warn().Msg("admin access denied, session cleared: run 'plantactl login'")
	})
	gate, err := auth.NewGate(store, nav, bus, auth.WithGateLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "[newApp]")
	}
	elevator, err := auth.NewElevator(store, client, bus, auth.WithElevatorLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "[newApp]")
	}

	loginService, err := login.NewService(client, store, elevator, login.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "[newApp]")
	}
	pedidosService, err := pedidos.NewService(client, gate, pedidos.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "[newApp]")
	}
	anomaliasService, err := anomalias.NewService(client, gate, anomalias.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "[newApp]")
	}
	catalogosService, err := catalogos.NewService(client, gate, bus, catalogos.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "[newApp]")
	}
	usuariosService, err := usuarios.NewService(client, gate, usuarios.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "[newApp]")
	}

	return &app{
		store:     store,
		gate:      gate,
		elevator:  elevator,
		login:     loginService,
		pedidos:   pedidosService,
		anomalias: anomaliasService,
		catalogos: catalogosService,
		usuarios:  usuariosService,
		log:       logger,
	}, nil
}
