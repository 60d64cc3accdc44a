package notify

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordResetMessage(t *testing.T) {
	msg, err := PasswordResetMessage("eng@example.com", "https://app.example/reset?lang=en", "abc_-123", 30*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, "eng@example.com", msg.To)
	assert.Contains(t, msg.Text, "https://app.example/reset?lang=en&token=abc_-123")
	assert.Contains(t, msg.Text, "30m0s")
}

func TestPasswordResetMessageRejectsBadURL(t *testing.T) {
	_, err := PasswordResetMessage("eng@example.com", "://bad", "abc", time.Minute)
	assert.Error(t, err)
}

func TestLogSenderDoesNotLogBody(t *testing.T) {
	var buf bytes.Buffer
	sender := LogSender{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	err := sender.Send(context.Background(), Message{To: "eng@example.com", Subject: "hi", Text: "secret-token"})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "eng@example.com")
	assert.NotContains(t, buf.String(), "secret-token")
}
