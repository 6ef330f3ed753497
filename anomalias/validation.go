package anomalias

import (
	"fmt"
	"strings"
)

// A resolution has to say something. Ten characters filters out "ok".
const minSolutionLength = 10

// CreateInput carries the report form for a new incident.
type CreateInput struct {
	Maquina     string `json:"maquina"`
	Descripcion string `json:"descripcion"`
}

func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.Maquina) == "" {
		return fmt.Errorf("la máquina es requerida")
	}
	if strings.TrimSpace(in.Descripcion) == "" {
		return fmt.Errorf("la descripción es requerida")
	}
	return nil
}

// UpdateInput moves an incident between states. The solution text travels
// with the state: resolving requires one, reopening clears it.
type UpdateInput struct {
	Estado   Estado `json:"estado"`
	Solucion string `json:"solucion"`
}

// Validate enforces the state/solution pairing: a resolved incident must
// describe its fix, an open one must not carry a stale solution.
func (in UpdateInput) Validate() error {
	if !in.Estado.Valid() {
		return fmt.Errorf("estado inválido")
	}
	solution := strings.TrimSpace(in.Solucion)
	switch in.Estado {
	case EstadoSolucionado:
		if len(solution) < minSolutionLength {
			return fmt.Errorf("la solución debe tener al menos %d caracteres", minSolutionLength)
		}
	case EstadoEnRevision:
		if solution != "" {
			return ErrSolutionOnOpen
		}
	}
	return nil
}
