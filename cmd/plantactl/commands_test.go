package main

import (
	"testing"

	"github.com/kpsoft/kp-planta/api"
	"github.com/kpsoft/kp-planta/auth"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestRejectedSecretKeepsPromptOpen(t *testing.T) {
	refused := &api.Error{Status: 401, Message: "Clave incorrecta, intente nuevamente."}

	msg, retry := rejectedSecret(refused)
	require.True(t, retry)
	require.Equal(t, "Clave incorrecta, intente nuevamente.", msg)

	msg, retry = rejectedSecret(errors.Wrap(refused, "[Elevator.Elevate]"))
	require.True(t, retry)
	require.Equal(t, "Clave incorrecta, intente nuevamente.", msg)
}

func TestRejectedSecretAbortsOnOtherFailures(t *testing.T) {
	_, retry := rejectedSecret(&api.Error{Message: "Error de red."})
	require.False(t, retry)

	_, retry = rejectedSecret(auth.ErrSecretRequired)
	require.False(t, retry)

	_, retry = rejectedSecret(nil)
	require.False(t, retry)
}
