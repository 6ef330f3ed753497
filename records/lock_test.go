package records_test

import (
	"encoding/json"
	"testing"

	"github.com/kpsoft/kp-planta/records"
	"github.com/stretchr/testify/require"
)

func TestArchivedWinsOverExtras(t *testing.T) {
	lock := records.NewLock(true, false)

	require.False(t, lock.CanEdit(true))
	require.False(t, lock.CanEdit(false))
	require.ErrorIs(t, lock.CheckEdit(true), records.ErrArchived)

	// The only permitted action on an archived record is restore, and only
	// under extras.
	require.True(t, lock.CanRestore(true))
	require.False(t, lock.CanRestore(false))
	require.False(t, lock.CanArchive(true))
}

func TestTerminalEstadoYieldsToExtras(t *testing.T) {
	lock := records.NewLock(false, true)

	require.True(t, lock.CanEdit(true))
	require.False(t, lock.CanEdit(false))
	require.ErrorIs(t, lock.CheckEdit(false), records.ErrLocked)
	require.NoError(t, lock.CheckEdit(true))
}

func TestOpenRecordEditableByAnySession(t *testing.T) {
	lock := records.NewLock(false, false)

	require.True(t, lock.CanEdit(false))
	require.NoError(t, lock.CheckEdit(false))
	require.False(t, lock.CanRestore(true))
}

func TestArchiveRequiresExtrasRegardlessOfEstado(t *testing.T) {
	require.False(t, records.NewLock(false, false).CanArchive(false))
	require.True(t, records.NewLock(false, false).CanArchive(true))
	require.True(t, records.NewLock(false, true).CanArchive(true))
}

func TestFlagDecodesNumericMarkers(t *testing.T) {
	var payload struct {
		Archived records.Flag `json:"es_archivado"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"es_archivado":1}`), &payload))
	require.True(t, bool(payload.Archived))

	require.NoError(t, json.Unmarshal([]byte(`{"es_archivado":0}`), &payload))
	require.False(t, bool(payload.Archived))

	require.NoError(t, json.Unmarshal([]byte(`{"es_archivado":true}`), &payload))
	require.True(t, bool(payload.Archived))

	// Quoted markers from loose backends.
	require.NoError(t, json.Unmarshal([]byte(`{"es_archivado":"1"}`), &payload))
	require.True(t, bool(payload.Archived))

	require.NoError(t, json.Unmarshal([]byte(`{"es_archivado":"0"}`), &payload))
	require.False(t, bool(payload.Archived))

	require.NoError(t, json.Unmarshal([]byte(`{"es_archivado":null}`), &payload))
	require.False(t, bool(payload.Archived))
}
