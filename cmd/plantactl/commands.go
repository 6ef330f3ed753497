package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/kpsoft/kp-planta/api"
	"github.com/kpsoft/kp-planta/auth"
	"github.com/kpsoft/kp-planta/internal/config"
	"github.com/kpsoft/kp-planta/login"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

func newRootCommand(a *app, c config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "plantactl",
		Short:         c.GetAppName() + " — seguimiento de producción en planta",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newLoginCommand(a),
		newLogoutCommand(a),
		newRegisterCommand(a),
		newTurnoCommand(a),
		newExtrasCommand(a),
		newClaveCommand(a),
		newPedidosCommand(a),
		newAnomaliasCommand(a),
		newCatalogosCommand(a),
		newUsuariosCommand(a),
		newExportCommand(a),
	)
	return root
}

func newLoginCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login <identificador>",
		Short: "Iniciar sesión con email o nombre de usuario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := promptSecret("Contraseña")
			if err != nil {
				return err
			}
			account, err := a.login.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Println(okStyle.Render(fmt.Sprintf("Sesión iniciada: %s %s (%s)",
				account.Nombre, account.Apellido, account.Rol)))
			return nil
		},
	}
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Cerrar sesión y limpiar credenciales locales",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.login.Logout(cmd.Context())
			fmt.Println(okStyle.Render("Sesión cerrada."))
			return nil
		},
	}
}

func newRegisterCommand(a *app) *cobra.Command {
	var in struct {
		nombre, apellido, email, username string
	}
	cmd := &cobra.Command{
		Use:   "registrar",
		Short: "Registrar una cuenta nueva de operador",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := promptSecret("Contraseña (mínimo 8 caracteres)")
			if err != nil {
				return err
			}
			err = a.login.Register(cmd.Context(), login.RegisterInput{
				Nombre:   in.nombre,
				Apellido: in.apellido,
				Email:    in.email,
				Username: in.username,
				Password: password,
			})
			if err != nil {
				return err
			}
			fmt.Println(okStyle.Render("Cuenta registrada. Ya puede iniciar sesión."))
			return nil
		},
	}
	cmd.Flags().StringVar(&in.nombre, "nombre", "", "nombre")
	cmd.Flags().StringVar(&in.apellido, "apellido", "", "apellido")
	cmd.Flags().StringVar(&in.email, "email", "", "email")
	cmd.Flags().StringVar(&in.username, "username", "", "nombre de usuario")
	return cmd
}

func newTurnoCommand(a *app) *cobra.Command {
	turno := &cobra.Command{
		Use:   "turno",
		Short: "Abrir y cerrar el registro de turno",
	}

	turno.AddCommand(&cobra.Command{
		Use:   "iniciar <nombre> <apellido>",
		Short: "Iniciar el turno del operador",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := a.login.StartShift(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			msg := fmt.Sprintf("Turno #%d iniciado (%s, rol %s)", record.ShiftSessionID, record.Date, record.Role)
			fmt.Println(okStyle.Render(msg))
			if record.IsAdmin() && !a.gate.IsExtrasActive() {
				fmt.Println(warnStyle.Render("Modo extras no disponible: use 'plantactl extras activar'."))
			}
			return nil
		},
	})

	turno.AddCommand(&cobra.Command{
		Use:   "cerrar",
		Short: "Cerrar el turno actual (la cuenta sigue conectada)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.login.EndShift()
			fmt.Println(okStyle.Render("Turno cerrado."))
			return nil
		},
	})
	return turno
}

func newExtrasCommand(a *app) *cobra.Command {
	extras := &cobra.Command{
		Use:   "extras",
		Short: "Activar o desactivar el modo extras",
	}

	extras.AddCommand(&cobra.Command{
		Use:   "activar",
		Short: "Activar el modo extras con la clave compartida",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.gate.IsAdminSession() {
				if err := a.elevator.AutoElevate(cmd.Context()); err == nil {
					fmt.Println(okStyle.Render("Modo extras activado."))
					return nil
				}
				fmt.Println(warnStyle.Render("Activación automática fallida, ingrese la clave."))
			}
			// A rejected secret keeps the prompt open; anything else
			// (validation, network) aborts.
			for {
				secret, err := promptSecret("Clave de extras")
				if err != nil {
					return err
				}
				err = a.elevator.Elevate(cmd.Context(), secret)
				if err == nil {
					fmt.Println(okStyle.Render("Modo extras activado."))
					return nil
				}
				msg, retry := rejectedSecret(err)
				if !retry {
					return err
				}
				fmt.Println(warnStyle.Render(msg))
			}
		},
	})

	extras.AddCommand(&cobra.Command{
		Use:   "desactivar",
		Short: "Desactivar el modo extras",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.elevator.Deactivate()
			fmt.Println(okStyle.Render("Modo extras desactivado."))
			return nil
		},
	})

	extras.AddCommand(&cobra.Command{
		Use:   "estado",
		Short: "Estado de la sesión y del modo extras",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(titleStyle.Render("Sesión"))
			if shift := a.store.Shift(); shift != nil {
				fmt.Printf("  Turno #%d — %s %s (%s)\n",
					shift.ShiftSessionID, shift.OperatorFirstName, shift.OperatorLastName, shift.Role)
			} else {
				fmt.Println("  Sin turno activo")
			}
			fmt.Printf("  Admin: %v\n", a.gate.IsAdminSession())
			fmt.Printf("  Extras: %v\n", a.gate.IsExtrasActive())
			if a.gate.IsAdminSession() {
				if active, err := a.elevator.SyncStatus(cmd.Context()); err == nil {
					fmt.Printf("  Extras (servidor): %v\n", active)
				}
			}
			return nil
		},
	})
	return extras
}

func newClaveCommand(a *app) *cobra.Command {
	clave := &cobra.Command{
		Use:   "clave",
		Short: "Administrar la clave de extras",
	}

	clave.AddCommand(&cobra.Command{
		Use:   "rotar",
		Short: "Rotar la clave de extras (invalida las elevaciones vigentes)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in auth.RotateSecretInput
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().Title("Clave actual").EchoMode(huh.EchoModePassword).Value(&in.CurrentSecret),
				huh.NewInput().Title("Clave nueva").EchoMode(huh.EchoModePassword).Value(&in.NewSecret),
				huh.NewInput().Title("Confirmar clave nueva").EchoMode(huh.EchoModePassword).Value(&in.Confirm),
			))
			if err := form.Run(); err != nil {
				return err
			}
			if err := a.elevator.RotateSecret(cmd.Context(), in); err != nil {
				return err
			}
			fmt.Println(okStyle.Render("Clave rotada. Vuelva a activar el modo extras."))
			return nil
		},
	})
	return clave
}

// rejectedSecret reports whether the elevation failure was the backend
// refusing the secret, which is worth another attempt. Local validation and
// network failures are not.
func rejectedSecret(err error) (string, bool) {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && !apiErr.IsNetwork() {
		return apiErr.Message, true
	}
	return "", false
}

func promptSecret(title string) (string, error) {
	var secret string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title(title).EchoMode(huh.EchoModePassword).Value(&secret),
	))
	if err := form.Run(); err != nil {
		return "", err
	}
	return secret, nil
}
