package services

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/gomail.v2"
)

type captureSender struct {
	messages []*gomail.Message
	err      error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	if c.err != nil {
		return c.err
	}
	c.messages = append(c.messages, m...)
	return nil
}

func TestGomailService_SendRecoveryCode(t *testing.T) {
	sender := &captureSender{}
	svc := NewGomailServiceWithSender(sender, "no-reply@humanflow.app", "HumanFlow")

	require.NoError(t, svc.SendRecoveryCode("ana@example.com", "123456", 15*time.Minute))
	require.Len(t, sender.messages, 1)

	msg := sender.messages[0]
	assert.Equal(t, []string{"ana@example.com"}, msg.GetHeader("To"))

	var raw bytes.Buffer
	_, err := msg.WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), "123456")
	assert.Contains(t, raw.String(), "15 minutos")
}

func TestGomailService_Errors(t *testing.T) {
	t.Run("invalid address", func(t *testing.T) {
		svc := NewGomailServiceWithSender(&captureSender{}, "from@x.io", "HumanFlow")
		assert.Error(t, svc.SendRecoveryCode("not-an-email", "123456", time.Minute))
	})

	t.Run("smtp failure", func(t *testing.T) {
		svc := NewGomailServiceWithSender(&captureSender{err: errors.New("dial tcp: refused")}, "from@x.io", "HumanFlow")
		err := svc.SendRecoveryCode("ana@example.com", "123456", time.Minute)
		assert.ErrorContains(t, err, "refused")
	})
}

func TestLogMailService(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	svc := NewLogMailService(zap.New(core))

	require.NoError(t, svc.SendRecoveryCode("ana@example.com", "654321", time.Minute))
	entries := logs.FilterField(zap.String("code", "654321")).All()
	assert.Len(t, entries, 1)
}
