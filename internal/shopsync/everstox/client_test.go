package everstox

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsync/pkg/logging"
)

func preparedFor(t *testing.T, serverURL string, dryRun bool) *PreparedRequest {
	t.Helper()
	p := NewPreparer(Config{BaseURL: serverURL, ShopID: "shop-1", APIToken: "secret", DryRun: dryRun},
		logging.NewNopZapLogger())
	prepared, err := p.Prepare(validPayload())
	require.NoError(t, err)
	return prepared
}

func TestSendRefusesDryRun(t *testing.T) {
	client := NewClient(logging.NewNopZapLogger())

	_, err := client.Send(context.Background(), preparedFor(t, "https://api.demo.everstox.com", true))

	require.ErrorIs(t, err, ErrNotArmed)
}

func TestSendRefusesInvalidRequest(t *testing.T) {
	client := NewClient(logging.NewNopZapLogger())

	payload := validPayload()
	payload.OrderItems = nil
	p := NewPreparer(Config{BaseURL: "https://api.demo.everstox.com", ShopID: "shop-1"}, logging.NewNopZapLogger())
	prepared, err := p.Prepare(payload)
	require.NoError(t, err)

	_, err = client.Send(context.Background(), prepared)

	require.ErrorIs(t, err, ErrValidationIssues)
	assert.Contains(t, err.Error(), "no order items")
}

func TestSendCreatesOrder(t *testing.T) {
	var gotAuth, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/shops/shop-1/orders", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": "evx-123"}`)
	}))
	defer server.Close()

	client := NewClient(logging.NewNopZapLogger())
	created, err := client.Send(context.Background(), preparedFor(t, server.URL, false))

	require.NoError(t, err)
	assert.Equal(t, "evx-123", created.ID)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
}

func TestSendSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"detail": "duplicate order"}`)
	}))
	defer server.Close()

	client := NewClient(logging.NewNopZapLogger())
	_, err := client.Send(context.Background(), preparedFor(t, server.URL, false))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "duplicate order")
}
