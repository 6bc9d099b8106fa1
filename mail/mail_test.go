package mail

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMailer(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMailer(zerolog.New(&buf))

	err := m.Send(context.Background(), Message{To: "alice@example.com", Subject: "Hi", Body: "Hello"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"to":"alice@example.com"`)
	assert.Contains(t, buf.String(), `"subject":"Hi"`)
	assert.Equal(t, 1, strings.Count(buf.String(), `"component":"mail"`))
}

func TestSMTPMailer(t *testing.T) {
	m := NewSMTPMailer("smtp.example.com", 587, "user", "pass", "noreply@example.com")

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.NotNil(t, a)
		return nil
	}

	err := m.Send(context.Background(), Message{
		To:      "alice@example.com",
		Subject: "You created a new Conference!",
		Body:    "Hi, you have created a following conference:\r\n\r\nGopherCon",
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)
	assert.True(t, strings.HasPrefix(string(gotMsg), "From: noreply@example.com\r\n"))
	assert.Contains(t, string(gotMsg), "Subject: You created a new Conference!\r\n")
	assert.True(t, strings.HasSuffix(string(gotMsg), "\r\n\r\nGopherCon"))
}

func TestSMTPMailer_Error(t *testing.T) {
	m := NewSMTPMailer("smtp.example.com", 25, "", "", "noreply@example.com")
	assert.Nil(t, m.auth)

	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}
	err := m.Send(context.Background(), Message{To: "alice@example.com"})
	assert.ErrorContains(t, err, "connection refused")
}
