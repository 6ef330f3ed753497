// Package pedidos is the work-order view of the production tracker: listing,
// capture, progress updates, and the archive lifecycle. Every privileged
// operation re-checks elevation at the moment of the call.
package pedidos

import (
	"github.com/kpsoft/kp-planta/records"
)

// Estado is the lifecycle state of a work order.
type Estado string

const (
	EstadoEnProceso  Estado = "en_proceso"
	EstadoCompletado Estado = "completado"
	EstadoCancelado  Estado = "cancelado"
)

// Terminal reports whether the state closes the order. Closed orders only
// accept edits under an active elevation.
func (e Estado) Terminal() bool {
	return e == EstadoCompletado || e == EstadoCancelado
}

// Valid reports whether the state is one the backend accepts.
func (e Estado) Valid() bool {
	switch e {
	case EstadoEnProceso, EstadoCompletado, EstadoCancelado:
		return true
	}
	return false
}

// Pedido mirrors the backend's work-order document.
type Pedido struct {
	ID                  int64        `json:"id"`
	CodigoProducto      string       `json:"codigo_producto"`
	DescripcionProducto string       `json:"descripcion_producto"`
	MaquinaAsignada     string       `json:"maquina_asignada"`
	TipoPlanchaID       int64        `json:"tipo_plancha_id"`
	EspesorMM           string       `json:"espesor_mm"`
	MedidaPlancha       string       `json:"medida_plancha"`
	VariacionMaterial   string       `json:"variacion_material"`
	PlanchasAsignadas   int          `json:"planchas_asignadas"`
	UltimaPlancha       int          `json:"ultima_plancha_trabajada"`
	CortesTotales       int          `json:"cortes_totales"`
	Estado              Estado       `json:"estado"`
	Archived            records.Flag `json:"es_archivado"`
	FechaRegistro       string       `json:"fecha_registro"`
}

// Lock derives the edit lock for this order.
func (p Pedido) Lock() records.Lock {
	return records.NewLock(bool(p.Archived), p.Estado.Terminal())
}
