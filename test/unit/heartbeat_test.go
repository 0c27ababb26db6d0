package unit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castwire/castwire/test/testhelpers"
)

// TestHeartbeatDropsSilentConnection verifies the liveness sweep: a client
// that never answers a probe is removed within two ticks. Transport-less
// clients can never answer, so they are always dropped.
func TestHeartbeatDropsSilentConnection(t *testing.T) {
	cfg := testhelpers.NewTestConfig()
	cfg.HeartbeatInterval = 50 * time.Millisecond
	hub := testhelpers.StartTestHub(t, cfg)

	c := addClient(t, hub)
	require.Equal(t, 1, hub.Count())

	assert.Eventually(t, func() bool {
		return hub.Count() == 0
	}, 2*time.Second, 10*time.Millisecond, "silent client was not dropped")

	// The outbound queue is closed as part of the close path.
	assert.Eventually(t, func() bool {
		select {
		case _, open := <-c.GetSendChan():
			return !open
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
