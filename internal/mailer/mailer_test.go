package mailer

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/joshua-takyi/eventpass/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() *models.Event {
	return &models.Event{
		Name:     "Garba Night",
		Date:     time.Date(2026, 10, 20, 19, 0, 0, 0, time.UTC),
		Location: "City Hall",
	}
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "Your Event Pass for Garba Night", Subject(testEvent()))
}

func TestBuildMessage(t *testing.T) {
	m := NewSMTPMailer("localhost", 2525, "", "", "passes@example.com")
	msg, err := m.buildMessage(PassMail{
		To:       "asha@example.com",
		Subject:  Subject(testEvent()),
		PNG:      []byte("\x89PNG fake"),
		Event:    testEvent(),
		ImageURL: "https://cdn.example.com/p.png",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()

	assert.Contains(t, out, "asha@example.com")
	assert.Contains(t, out, "20 Oct 2026")
	assert.Contains(t, out, "City Hall")
	assert.Contains(t, out, "event-pass-qr.png")
}

func TestBuildMessage_RequiresRecipientAndEvent(t *testing.T) {
	m := NewSMTPMailer("localhost", 2525, "", "", "passes@example.com")

	_, err := m.buildMessage(PassMail{Event: testEvent()})
	assert.Error(t, err)

	_, err = m.buildMessage(PassMail{To: "a@example.com"})
	assert.Error(t, err)
}

func TestLogMailer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.NoError(t, NewLogMailer(logger).SendPass(context.Background(), PassMail{To: "a@example.com"}))
}
