// Package records holds the edit-lock rules shared by pedidos and anomalías.
// A record sits on two independent axes: its workflow estado and whether it
// has been archived. This is a flat two-axis gate, not a workflow engine.
package records

import "errors"

var (
	// ErrArchived rejects any mutation of an archived record other than
	// restoring it.
	ErrArchived = errors.New("record is archived")
	// ErrLocked rejects edits to a closed record by a plain session.
	ErrLocked = errors.New("record is closed")
	// ErrAlreadyActive rejects restoring a record that is not archived.
	ErrAlreadyActive = errors.New("record is not archived")
)

// Flag decodes the backend's 0/1 archived markers as a bool. JSON true/false
// is accepted too.
type Flag bool

func (f *Flag) UnmarshalJSON(raw []byte) error {
	// Only the known set markers count; anything unrecognized (including a
	// quoted "0") reads as not archived.
	switch string(raw) {
	case "1", "true", `"1"`, `"true"`:
		*f = true
	default:
		*f = false
	}
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// Lock is the evaluated position of a record on both axes.
type Lock struct {
	archived bool
	terminal bool
}

// NewLock builds the lock for a record. terminal means the estado is a
// closed/terminal workflow state for its resource type.
func NewLock(archived, terminal bool) Lock {
	return Lock{archived: archived, terminal: terminal}
}

// CanEdit applies the precedence order: archived wins over everything, then a
// terminal estado yields only to an extras-active session, then open records
// are editable by any session holding the resource.
func (l Lock) CanEdit(extrasActive bool) bool {
	if l.archived {
		return false
	}
	if l.terminal {
		return extrasActive
	}
	return true
}

// CanArchive reports whether archiving is permitted. Archiving always
// requires extras, regardless of estado.
func (l Lock) CanArchive(extrasActive bool) bool {
	return !l.archived && extrasActive
}

// CanRestore reports whether restoring is permitted: the record must be
// archived and the session extras-active.
func (l Lock) CanRestore(extrasActive bool) bool {
	return l.archived && extrasActive
}

// CheckEdit returns the reason an edit is rejected, or nil.
func (l Lock) CheckEdit(extrasActive bool) error {
	if l.archived {
		return ErrArchived
	}
	if l.terminal && !extrasActive {
		return ErrLocked
	}
	return nil
}
