package stripe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dimispapa/bouldering-cyprus/pkg/stripe"
)

const testSecret = "whsec_test_secret"

func eventPayload() []byte {
	return []byte(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {
			"object": {
				"id": "pi_1",
				"status": "succeeded",
				"amount": 6148,
				"currency": "eur",
				"metadata": {"grand_total": "61.48"}
			}
		}
	}`)
}

func TestConstructEventValidSignature(t *testing.T) {
	payload := eventPayload()
	header := stripe.SignPayload(payload, testSecret, time.Now())

	event, err := stripe.ConstructEvent(payload, header, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, stripe.EventPaymentSucceeded, event.Type)

	intent, err := event.Intent()
	require.NoError(t, err)
	assert.Equal(t, "pi_1", intent.ID)
	assert.Equal(t, stripe.StatusSucceeded, intent.Status)
	assert.Equal(t, int64(6148), intent.Amount)
	assert.Equal(t, "61.48", intent.Metadata["grand_total"])
}

func TestConstructEventWrongSecret(t *testing.T) {
	payload := eventPayload()
	header := stripe.SignPayload(payload, "whsec_other", time.Now())

	_, err := stripe.ConstructEvent(payload, header, testSecret)
	assert.ErrorIs(t, err, stripe.ErrInvalidSignature)
}

func TestConstructEventTamperedPayload(t *testing.T) {
	payload := eventPayload()
	header := stripe.SignPayload(payload, testSecret, time.Now())

	tampered := append([]byte(nil), payload...)
	tampered[len(tampered)-2] = ' '

	_, err := stripe.ConstructEvent(tampered, header, testSecret)
	assert.ErrorIs(t, err, stripe.ErrInvalidSignature)
}

func TestConstructEventStaleTimestamp(t *testing.T) {
	payload := eventPayload()
	header := stripe.SignPayload(payload, testSecret, time.Now().Add(-10*time.Minute))

	_, err := stripe.ConstructEvent(payload, header, testSecret)
	assert.ErrorIs(t, err, stripe.ErrSignatureTooOld)
}

func TestConstructEventMalformedHeader(t *testing.T) {
	payload := eventPayload()

	for _, header := range []string{"", "t=abc,v1=00", "v1=00", "t=123"} {
		_, err := stripe.ConstructEvent(payload, header, testSecret)
		assert.ErrorIs(t, err, stripe.ErrMalformedSigShare, "header %q", header)
	}
}
