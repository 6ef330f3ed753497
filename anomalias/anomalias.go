// Package anomalias is the machine-incident view: reporting, resolution, and
// the archive lifecycle. Resolved incidents lock the same way closed work
// orders do.
package anomalias

import (
	"github.com/kpsoft/kp-planta/records"
)

// Estado is the lifecycle state of an incident.
type Estado string

const (
	EstadoEnRevision  Estado = "en_revision"
	EstadoSolucionado Estado = "solucionado"
)

// Terminal reports whether the state closes the incident.
func (e Estado) Terminal() bool {
	return e == EstadoSolucionado
}

// Valid reports whether the state is one the backend accepts.
func (e Estado) Valid() bool {
	return e == EstadoEnRevision || e == EstadoSolucionado
}

// Anomalia mirrors the backend's incident document.
type Anomalia struct {
	ID            int64        `json:"id"`
	Maquina       string       `json:"maquina"`
	Descripcion   string       `json:"descripcion"`
	Estado        Estado       `json:"estado"`
	Solucion      string       `json:"solucion,omitempty"`
	Archived      records.Flag `json:"es_archivado"`
	FechaRegistro string       `json:"fecha_registro"`
}

// Lock derives the edit lock for this incident.
func (a Anomalia) Lock() records.Lock {
	return records.NewLock(bool(a.Archived), a.Estado.Terminal())
}
