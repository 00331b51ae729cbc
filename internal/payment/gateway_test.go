package payment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOrder(t *testing.T) {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "order_9", "amount": 150000, "currency": "INR", "receipt": "rcpt_1",
		"status": "paid", "notes": {"event_id": "e1", "num_tickets": 3}
	}`), &body))

	order, err := decodeOrder(body)
	require.NoError(t, err)
	assert.Equal(t, "order_9", order.ID)
	assert.Equal(t, int64(150000), order.Amount)
	assert.Equal(t, "3", order.Notes[NoteNumTickets])
	assert.Equal(t, "e1", order.Notes[NoteEventID])
}

func TestDecodeOrder_RequiresID(t *testing.T) {
	_, err := decodeOrder(map[string]interface{}{"amount": 100.0})
	assert.Error(t, err)
}

func TestDecodePayment_LooseTypes(t *testing.T) {
	p, err := DecodePayment(map[string]interface{}{
		"id":       "pay_1",
		"order_id": "order_1",
		"amount":   json.Number("1000"),
		"status":   PaymentAuthorized,
		"notes":    []interface{}{},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), p.Amount)
	assert.True(t, p.IsSettled())
	assert.Empty(t, p.Notes)

	p, err = DecodePayment(map[string]interface{}{"id": "pay_2", "amount": "250", "status": "failed"})
	require.NoError(t, err)
	assert.Equal(t, int64(250), p.Amount)
	assert.False(t, p.IsSettled())
}
