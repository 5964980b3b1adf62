package stripe_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dimispapa/bouldering-cyprus/pkg/stripe"
)

func TestCreateIntent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "6148", r.PostForm.Get("amount"))
		assert.Equal(t, "eur", r.PostForm.Get("currency"))
		assert.Equal(t, "true", r.PostForm.Get("automatic_payment_methods[enabled]"))
		assert.Equal(t, "61.48", r.PostForm.Get("metadata[grand_total]"))
		assert.Equal(t, "Dimi Papa", r.PostForm.Get("shipping[name]"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "pi_1", "client_secret": "cs_1", "status": "requires_payment_method", "amount": 6148, "currency": "eur"}`))
	}))
	defer server.Close()

	client := stripe.NewClient(stripe.Config{APIKey: "sk_test_key", BaseURL: server.URL})
	intent, err := client.CreateIntent(context.Background(), stripe.IntentParams{
		Amount:   6148,
		Currency: "eur",
		Metadata: map[string]string{"grand_total": "61.48"},
		Shipping: &stripe.Shipping{Name: "Dimi Papa"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", intent.ID)
	assert.Equal(t, "cs_1", intent.ClientSecret)
}

func TestRetrieveIntent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payment_intents/pi_1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "pi_1", "status": "succeeded"}`))
	}))
	defer server.Close()

	client := stripe.NewClient(stripe.Config{APIKey: "sk_test_key", BaseURL: server.URL})
	intent, err := client.RetrieveIntent(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, stripe.StatusSucceeded, intent.Status)
}

func TestAPIErrorDecoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": {"type": "invalid_request_error", "message": "No such payment_intent"}}`))
	}))
	defer server.Close()

	client := stripe.NewClient(stripe.Config{APIKey: "sk_test_key", BaseURL: server.URL})
	_, err := client.RetrieveIntent(context.Background(), "pi_missing")
	require.Error(t, err)

	var apiErr *stripe.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "No such payment_intent")
}
