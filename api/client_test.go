package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kpsoft/kp-planta/api"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// staticCreds is a fixed credential source for header assertions.
type staticCreds struct {
	auth   string
	extras string
	admin  string
}

func (c staticCreds) AuthToken() *oauth2.Token {
	if c.auth == "" {
		return nil
	}
	return &oauth2.Token{AccessToken: c.auth}
}

func (c staticCreds) ExtrasToken() string { return c.extras }
func (c staticCreds) AdminKey() string    { return c.admin }

func TestAttachesPresentCredentialHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, staticCreds{auth: "bearer-1", extras: "tok-1", admin: "key-1"})
	require.NoError(t, err)

	require.NoError(t, client.Get(context.Background(), "/api/pedidos", nil, nil))
	require.Equal(t, "Bearer bearer-1", got.Get("Authorization"))
	require.Equal(t, "tok-1", got.Get("X-Extras-Token"))
	require.Equal(t, "key-1", got.Get("X-Admin-Key"))
	require.NotEmpty(t, got.Get("X-Request-ID"))
}

func TestOmitsAbsentCredentialHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, staticCreds{})
	require.NoError(t, err)

	require.NoError(t, client.Get(context.Background(), "/api/pedidos", nil, nil))
	require.Empty(t, got.Get("Authorization"))
	require.Empty(t, got.Get("X-Extras-Token"))
	require.Empty(t, got.Get("X-Admin-Key"))
}

func TestDecodesDataOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"data":{"token":"tok-99"}}`))
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, staticCreds{})
	require.NoError(t, err)

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, client.Post(context.Background(), "/api/extras/elevate", nil, &out))
	require.Equal(t, "tok-99", out.Token)
}

func TestServerErrorMessagePassedVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error":{"code":"UNAUTHORIZED","message":"Clave incorrecta, intente nuevamente."}}`))
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, staticCreds{})
	require.NoError(t, err)

	err = client.Post(context.Background(), "/api/extras/elevate", nil, nil)
	require.Error(t, err)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "UNAUTHORIZED", apiErr.Code)
	require.Equal(t, "Clave incorrecta, intente nuevamente.", apiErr.Message)
	require.False(t, apiErr.IsNetwork())
}

func TestValidationFieldsSurface(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error":{"code":"VALIDATION_ERROR","message":"Datos inválidos.","fields":{"codigo_producto":"Requerido."}}}`))
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, staticCreds{})
	require.NoError(t, err)

	err = client.Post(context.Background(), "/api/pedidos", map[string]any{}, nil)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Requerido.", apiErr.Fields["codigo_producto"])
}

func TestOKFalseWithoutErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, staticCreds{})
	require.NoError(t, err)

	err = client.Post(context.Background(), "/api/pedidos", nil, nil)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Solicitud inválida.", apiErr.Message)
}

func TestTransportFailureIsGenericNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	client, err := api.NewClient(srv.URL, staticCreds{})
	require.NoError(t, err)

	err = client.Get(context.Background(), "/api/pedidos", nil, nil)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.True(t, apiErr.IsNetwork())
	require.Equal(t, "Error de red.", apiErr.Message)
}
