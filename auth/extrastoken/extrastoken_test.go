package extrastoken_test

import (
	"testing"
	"time"

	"github.com/kpsoft/kp-planta/auth/extrastoken"
	"github.com/stretchr/testify/require"
)

const secret = "planta-extras-secret"

func TestMintAndValidate(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	token, err := extrastoken.Mint(secret, 42, now, 0)
	require.NoError(t, err)

	claims, err := extrastoken.Validate(token, secret)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.ShiftSessionID)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := extrastoken.Mint(secret, 42, time.Now(), 0)
	require.NoError(t, err)

	_, err = extrastoken.Validate(token, "other-secret")
	require.Error(t, err)
}

func TestMintRequiresSecretAndID(t *testing.T) {
	_, err := extrastoken.Mint("", 42, time.Now(), 0)
	require.Error(t, err)

	_, err = extrastoken.Mint(secret, 0, time.Now(), 0)
	require.Error(t, err)
}

func TestExpired(t *testing.T) {
	issued := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	token, err := extrastoken.Mint(secret, 42, issued, time.Hour)
	require.NoError(t, err)

	require.False(t, extrastoken.Expired(token, issued.Add(30*time.Minute)))
	require.True(t, extrastoken.Expired(token, issued.Add(2*time.Hour)))
}

func TestExpiredLeavesOpaqueTokensToTheServer(t *testing.T) {
	require.False(t, extrastoken.Expired("not-a-jwt", time.Now()))
}
