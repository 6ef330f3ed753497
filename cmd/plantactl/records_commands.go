package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kpsoft/kp-planta/anomalias"
	"github.com/kpsoft/kp-planta/catalogos"
	"github.com/kpsoft/kp-planta/internal/utils"
	"github.com/kpsoft/kp-planta/pedidos"
	"github.com/kpsoft/kp-planta/session"
	"github.com/kpsoft/kp-planta/usuarios"
	"github.com/spf13/cobra"
)

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("id inválido: %q", arg)
	}
	return id, nil
}

func newPedidosCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "pedidos",
		Short: "Pedidos de producción",
	}

	var listIn struct {
		estado    string
		buscar    string
		archivado bool
	}
	list := &cobra.Command{
		Use:   "listar",
		Short: "Listar pedidos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.pedidos.List(cmd.Context(), pedidos.ListInput{
				Estado:          pedidos.Estado(listIn.estado),
				Query:           listIn.buscar,
				IncludeArchived: listIn.archivado,
			})
			if err != nil {
				return err
			}
			fmt.Println(headerStyle.Render(fmt.Sprintf("%-5s %-12s %-10s %-12s %-8s %s",
				"ID", "CÓDIGO", "MÁQUINA", "ESTADO", "AVANCE", "ARCH")))
			for _, p := range list {
				fmt.Printf("%-5d %-12s %-10s %-12s %3d/%-4d %v\n",
					p.ID, p.CodigoProducto, p.MaquinaAsignada, p.Estado,
					p.UltimaPlancha, p.PlanchasAsignadas, bool(p.Archived))
			}
			return nil
		},
	}
	list.Flags().StringVar(&listIn.estado, "estado", "", "filtrar por estado")
	list.Flags().StringVar(&listIn.buscar, "buscar", "", "buscar por código o descripción")
	list.Flags().BoolVar(&listIn.archivado, "archivados", false, "incluir archivados (requiere extras)")

	var createIn pedidos.CreateInput
	create := &cobra.Command{
		Use:   "crear",
		Short: "Registrar un pedido nuevo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := a.pedidos.Create(cmd.Context(), createIn)
			if err != nil {
				return err
			}
			fmt.Println(okStyle.Render(fmt.Sprintf("Pedido #%d creado.", created.ID)))
			return nil
		},
	}
	create.Flags().StringVar(&createIn.CodigoProducto, "codigo", "", "código de producto")
	create.Flags().StringVar(&createIn.DescripcionProducto, "descripcion", "", "descripción")
	create.Flags().StringVar(&createIn.MaquinaAsignada, "maquina", "", "máquina asignada")
	create.Flags().Int64Var(&createIn.TipoPlanchaID, "tipo-plancha", 0, "id del tipo de plancha")
	create.Flags().StringVar(&createIn.EspesorMM, "espesor", "", "espesor en mm")
	create.Flags().StringVar(&createIn.MedidaPlancha, "medida", "", "medida de la plancha")
	create.Flags().StringVar(&createIn.VariacionMaterial, "variacion", "", "variación del material")
	create.Flags().IntVar(&createIn.PlanchasAsignadas, "planchas", 0, "planchas asignadas")

	var updateIn struct {
		ultima int
		cortes int
		estado string
	}
	update := &cobra.Command{
		Use:   "actualizar <id>",
		Short: "Actualizar el avance de un pedido",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			in := pedidos.UpdateInput{}
			if cmd.Flags().Changed("ultima") {
				in.UltimaPlancha = utils.Ptr(updateIn.ultima)
			}
			if cmd.Flags().Changed("cortes") {
				in.CortesTotales = utils.Ptr(updateIn.cortes)
			}
			if cmd.Flags().Changed("estado") {
				in.Estado = utils.Ptr(pedidos.Estado(updateIn.estado))
			}
			updated, err := a.pedidos.Update(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			fmt.Println(okStyle.Render(fmt.Sprintf("Pedido #%d: %d/%d planchas, estado %s.",
				updated.ID, updated.UltimaPlancha, updated.PlanchasAsignadas, updated.Estado)))
			return nil
		},
	}
	update.Flags().IntVar(&updateIn.ultima, "ultima", 0, "última plancha trabajada")
	update.Flags().IntVar(&updateIn.cortes, "cortes", 0, "cortes totales")
	update.Flags().StringVar(&updateIn.estado, "estado", "", "nuevo estado")

	archive := &cobra.Command{
		Use:   "archivar <id>",
		Short: "Archivar un pedido (requiere extras)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.pedidos.Archive(cmd.Context(), id)
		},
	}
	restore := &cobra.Command{
		Use:   "restaurar <id>",
		Short: "Restaurar un pedido archivado (requiere extras)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.pedidos.Restore(cmd.Context(), id)
		},
	}

	var purgeIn struct {
		desde string
		hasta string
		todo  bool
	}
	purge := &cobra.Command{
		Use:   "purgar",
		Short: "Eliminar definitivamente pedidos archivados (admin + extras)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if purgeIn.todo {
				deleted, err := a.pedidos.PurgeAll(ctx)
				if err != nil {
					return err
				}
				fmt.Println(warnStyle.Render(fmt.Sprintf("%d pedidos eliminados.", deleted)))
				return nil
			}
			from, err := time.Parse("2006-01-02", purgeIn.desde)
			if err != nil {
				return fmt.Errorf("fecha --desde inválida: %w", err)
			}
			to, err := time.Parse("2006-01-02", purgeIn.hasta)
			if err != nil {
				return fmt.Errorf("fecha --hasta inválida: %w", err)
			}
			deleted, err := a.pedidos.PurgeRange(ctx, from, to)
			if err != nil {
				return err
			}
			fmt.Println(warnStyle.Render(fmt.Sprintf("%d pedidos eliminados.", deleted)))
			return nil
		},
	}
	purge.Flags().StringVar(&purgeIn.desde, "desde", "", "fecha inicial (YYYY-MM-DD)")
	purge.Flags().StringVar(&purgeIn.hasta, "hasta", "", "fecha final (YYYY-MM-DD)")
	purge.Flags().BoolVar(&purgeIn.todo, "todo", false, "eliminar todos los archivados")

	root.AddCommand(list, create, update, archive, restore, purge)
	return root
}

func newAnomaliasCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "anomalias",
		Short: "Anomalías de máquina",
	}

	var listIn struct {
		estado    string
		archivado bool
	}
	list := &cobra.Command{
		Use:   "listar",
		Short: "Listar anomalías",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.anomalias.List(cmd.Context(), anomalias.ListInput{
				Estado:          anomalias.Estado(listIn.estado),
				IncludeArchived: listIn.archivado,
			})
			if err != nil {
				return err
			}
			fmt.Println(headerStyle.Render(fmt.Sprintf("%-5s %-10s %-14s %s", "ID", "MÁQUINA", "ESTADO", "DESCRIPCIÓN")))
			for _, an := range list {
				fmt.Printf("%-5d %-10s %-14s %s\n", an.ID, an.Maquina, an.Estado, an.Descripcion)
			}
			return nil
		},
	}
	list.Flags().StringVar(&listIn.estado, "estado", "", "filtrar por estado")
	list.Flags().BoolVar(&listIn.archivado, "archivados", false, "incluir archivadas (requiere extras)")

	report := &cobra.Command{
		Use:   "reportar <maquina> <descripcion>",
		Short: "Reportar una anomalía",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := a.anomalias.Report(cmd.Context(), anomalias.CreateInput{
				Maquina:     args[0],
				Descripcion: args[1],
			})
			if err != nil {
				return err
			}
			fmt.Println(okStyle.Render(fmt.Sprintf("Anomalía #%d registrada.", created.ID)))
			return nil
		},
	}

	resolve := &cobra.Command{
		Use:   "resolver <id> <solucion>",
		Short: "Marcar una anomalía como solucionada",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			_, err = a.anomalias.Update(cmd.Context(), id, anomalias.UpdateInput{
				Estado:   anomalias.EstadoSolucionado,
				Solucion: args[1],
			})
			return err
		},
	}

	reopen := &cobra.Command{
		Use:   "reabrir <id>",
		Short: "Reabrir una anomalía solucionada (requiere extras)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			_, err = a.anomalias.Update(cmd.Context(), id, anomalias.UpdateInput{
				Estado: anomalias.EstadoEnRevision,
			})
			return err
		},
	}

	archive := &cobra.Command{
		Use:   "archivar <id>",
		Short: "Archivar una anomalía (requiere extras)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.anomalias.Archive(cmd.Context(), id)
		},
	}

	root.AddCommand(list, report, resolve, reopen, archive)
	return root
}

func newCatalogosCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "catalogos",
		Short: "Catálogos de referencia",
	}

	root.AddCommand(&cobra.Command{
		Use:   "listar",
		Short: "Mostrar tipos de plancha y variaciones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.catalogos.Get(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(titleStyle.Render("Tipos de plancha"))
			for _, item := range data.TiposPlancha {
				fmt.Printf("  %3d  %s\n", item.ID, item.Nombre)
				for _, v := range data.VariationsFor(item.ID) {
					fmt.Printf("         · %s\n", v.Nombre)
				}
			}
			fmt.Println(titleStyle.Render("Variaciones"))
			for _, item := range data.Variaciones {
				fmt.Printf("  %3d  %s\n", item.ID, item.Nombre)
			}
			return nil
		},
	})

	var kind string
	create := &cobra.Command{
		Use:   "crear <nombre>",
		Short: "Agregar un elemento de catálogo (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.catalogos.CreateItem(cmd.Context(), catalogos.Kind(kind), args[0])
		},
	}
	create.Flags().StringVar(&kind, "catalogo", string(catalogos.KindTiposPlancha), "tipos_plancha o variaciones")

	assign := &cobra.Command{
		Use:   "asignar <tipo-plancha-id> <variacion-id>",
		Short: "Asignar una variación a un tipo de plancha (admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tipoID, err := parseID(args[0])
			if err != nil {
				return err
			}
			varID, err := parseID(args[1])
			if err != nil {
				return err
			}
			return a.catalogos.AssignVariation(cmd.Context(), tipoID, varID)
		},
	}

	root.AddCommand(create, assign)
	return root
}

func newUsuariosCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "usuarios",
		Short: "Administración de cuentas (admin)",
	}

	root.AddCommand(&cobra.Command{
		Use:   "listar",
		Short: "Listar cuentas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.usuarios.List(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(headerStyle.Render(fmt.Sprintf("%-30s %-10s %-7s %s", "EMAIL", "ROL", "ACTIVO", "NOMBRE")))
			for _, u := range list {
				fmt.Printf("%-30s %-10s %-7v %s %s\n", u.Email, u.Rol, bool(u.Activo), u.Nombre, u.Apellido)
			}
			return nil
		},
	})

	var createIn usuarios.CreateInput
	var rol string
	create := &cobra.Command{
		Use:   "crear",
		Short: "Crear una cuenta",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := promptSecret("Contraseña inicial")
			if err != nil {
				return err
			}
			createIn.Password = password
			createIn.Rol = session.Role(rol)
			return a.usuarios.Create(cmd.Context(), createIn)
		},
	}
	create.Flags().StringVar(&createIn.Nombre, "nombre", "", "nombre")
	create.Flags().StringVar(&createIn.Apellido, "apellido", "", "apellido")
	create.Flags().StringVar(&createIn.Email, "email", "", "email")
	create.Flags().StringVar(&rol, "rol", string(session.RoleOperator), "operador o admin")

	toggle := &cobra.Command{
		Use:   "activar <usuario-id>",
		Short: "Activar o desactivar una cuenta",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			active, _ := cmd.Flags().GetBool("on")
			return a.usuarios.SetActive(cmd.Context(), args[0], active)
		},
	}
	toggle.Flags().Bool("on", true, "true activa, false desactiva")

	pending := &cobra.Command{
		Use:   "claves-pendientes",
		Short: "Solicitudes de cambio de contraseña pendientes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.usuarios.PendingPasswordChanges(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("Sin solicitudes pendientes.")
				return nil
			}
			for _, id := range list {
				fmt.Println(id)
			}
			return nil
		},
	}

	approve := &cobra.Command{
		Use:   "aprobar-clave <usuario-id>",
		Short: "Aprobar un cambio de contraseña pendiente",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.usuarios.ApprovePasswordChange(cmd.Context(), args[0])
		},
	}

	root.AddCommand(create, toggle, pending, approve)
	return root
}

func newExportCommand(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "exportar <pedidos|anomalias>",
		Short: "Descargar la exportación CSV (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			var err error
			switch args[0] {
			case "pedidos":
				raw, err = a.pedidos.ExportCSV(cmd.Context())
			case "anomalias":
				raw, err = a.anomalias.ExportCSV(cmd.Context())
			default:
				return fmt.Errorf("recurso desconocido: %q", args[0])
			}
			if err != nil {
				return err
			}
			if output == "" {
				fmt.Print(string(raw))
				return nil
			}
			if err := os.WriteFile(output, raw, 0o644); err != nil {
				return err
			}
			fmt.Println(okStyle.Render("Exportación guardada en " + output))
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "salida", "", "archivo de salida (por defecto stdout)")
	return cmd
}
