package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhook_PaymentCaptured(t *testing.T) {
	body := []byte(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {
			"id": "pay_1", "order_id": "order_1", "amount": 1000, "currency": "INR",
			"status": "captured", "email": "a@example.com", "contact": "+919999999999",
			"notes": {"event_id": "abc", "num_tickets": 2}
		}}}
	}`)

	event, err := ParseWebhook(body)
	require.NoError(t, err)
	assert.True(t, event.Handled())
	require.NotNil(t, event.Payment)
	assert.Equal(t, "order_1", event.Payment.OrderID)
	assert.Equal(t, int64(1000), event.Payment.Amount)
	assert.Equal(t, "2", event.Payment.Notes[NoteNumTickets])
	assert.True(t, event.Payment.IsSettled())
}

func TestParseWebhook_NotesAsEmptyArray(t *testing.T) {
	body := []byte(`{"event":"payment.authorized","payload":{"payment":{"entity":{"id":"pay_2","order_id":"order_2","notes":[]}}}}`)

	event, err := ParseWebhook(body)
	require.NoError(t, err)
	assert.Empty(t, event.Payment.Notes)
}

func TestParseWebhook_UnhandledEvent(t *testing.T) {
	event, err := ParseWebhook([]byte(`{"event":"refund.created","payload":{}}`))
	require.NoError(t, err)
	assert.False(t, event.Handled())
	assert.Nil(t, event.Payment)
}

func TestParseWebhook_Invalid(t *testing.T) {
	_, err := ParseWebhook([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseWebhook([]byte(`{"payload":{}}`))
	assert.Error(t, err)
}
