package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectNats_Unreachable(t *testing.T) {
	p, err := ConnectNats("nats://127.0.0.1:1")
	assert.Error(t, err)
	assert.Nil(t, p)
}

func TestNatsPublisher_CloseWithoutConnection(t *testing.T) {
	assert.NoError(t, NewNatsPublisher(nil).Close())
}
