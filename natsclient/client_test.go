package natsclient

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/br-g/fastf1-livetiming/errors"
)

func TestNewRequiresURL(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}

func TestNewDefaults(t *testing.T) {
	c, err := New("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "livetiming", c.name)
	assert.Equal(t, -1, c.maxReconnects)
	assert.Equal(t, 2*time.Second, c.reconnectWait)
}

func TestOptionsApply(t *testing.T) {
	c, err := New("nats://localhost:4222",
		WithName("archiver"),
		WithMaxReconnects(10),
		WithReconnectWait(time.Second),
	)
	require.NoError(t, err)

	assert.Equal(t, "archiver", c.name)
	assert.Equal(t, 10, c.maxReconnects)
	assert.Equal(t, time.Second, c.reconnectWait)
}

func TestConnectCancelledLeavesNoConnection(t *testing.T) {
	// A TCP endpoint that accepts but never completes the NATS handshake,
	// so the context deadline expires while the dial is still in flight.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	c, err := New("nats://" + ln.Addr().String())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = c.Connect(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, errors.IsTransient(err))

	// The losing dial must not surface as a live connection later.
	time.Sleep(100 * time.Millisecond)
	assert.False(t, c.Connected())

	pubErr := c.Publish(context.Background(), "subject", []byte("{}"))
	assert.ErrorIs(t, pubErr, errors.ErrNotStarted)
}

func TestOperationsBeforeConnect(t *testing.T) {
	c, err := New("nats://localhost:4222")
	require.NoError(t, err)

	assert.False(t, c.Connected())

	pubErr := c.Publish(context.Background(), "subject", []byte("{}"))
	assert.ErrorIs(t, pubErr, errors.ErrNotStarted)

	// Close without a connection must not panic.
	c.Close()
}
