package pedidos

import (
	"fmt"
	"strings"
)

// CreateInput carries the capture-form fields for a new work order.
type CreateInput struct {
	CodigoProducto      string `json:"codigo_producto"`
	DescripcionProducto string `json:"descripcion_producto"`
	MaquinaAsignada     string `json:"maquina_asignada"`
	TipoPlanchaID       int64  `json:"tipo_plancha_id"`
	EspesorMM           string `json:"espesor_mm"`
	MedidaPlancha       string `json:"medida_plancha"`
	VariacionMaterial   string `json:"variacion_material"`
	PlanchasAsignadas   int    `json:"planchas_asignadas"`
	TurnoID             int64  `json:"turno_id,omitempty"`
}

// Validate checks the capture form locally so an incomplete order never
// reaches the backend. Messages are user-presentable.
func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.CodigoProducto) == "" {
		return fmt.Errorf("el código de producto es requerido")
	}
	if strings.TrimSpace(in.MaquinaAsignada) == "" {
		return fmt.Errorf("la máquina asignada es requerida")
	}
	if in.TipoPlanchaID <= 0 {
		return fmt.Errorf("seleccione un tipo de plancha")
	}
	if in.PlanchasAsignadas <= 0 {
		return fmt.Errorf("las planchas asignadas deben ser mayores a cero")
	}
	return nil
}

// UpdateInput carries a partial progress update. Nil fields are untouched.
type UpdateInput struct {
	UltimaPlancha *int    `json:"ultima_plancha_trabajada,omitempty"`
	CortesTotales *int    `json:"cortes_totales,omitempty"`
	Estado        *Estado `json:"estado,omitempty"`
}

func (in UpdateInput) empty() bool {
	return in.UltimaPlancha == nil && in.CortesTotales == nil && in.Estado == nil
}

// validateAgainst checks the update against the current order: counters stay
// in range and completion is only reachable once every assigned sheet has
// been worked.
func (in UpdateInput) validateAgainst(current *Pedido) error {
	if in.empty() {
		return ErrNothingToUpdate
	}

	ultima := current.UltimaPlancha
	if in.UltimaPlancha != nil {
		if *in.UltimaPlancha < 0 || *in.UltimaPlancha > current.PlanchasAsignadas {
			return fmt.Errorf("la última plancha debe estar entre 0 y %d", current.PlanchasAsignadas)
		}
		ultima = *in.UltimaPlancha
	}
	if in.CortesTotales != nil && *in.CortesTotales < 0 {
		return fmt.Errorf("los cortes totales no pueden ser negativos")
	}
	if in.Estado != nil {
		if !in.Estado.Valid() {
			return fmt.Errorf("estado inválido")
		}
		if *in.Estado == EstadoCompletado && ultima < current.PlanchasAsignadas {
			return ErrCompletionShort
		}
	}
	return nil
}
