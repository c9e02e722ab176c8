package rtc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/voicerooms/internal/config"
)

func TestICEServers(t *testing.T) {
	got := ICEServers([]config.ICEServer{
		{URLs: []string{"turn:turn.example.org:3478"}, Username: "u", Credential: "p"},
		{Username: "ignored"},
		{URLs: []string{"stun:stun.example.org"}},
	})
	require.Len(t, got, 2)
	assert.Equal(t, []string{"turn:turn.example.org:3478"}, got[0].URLs)
	assert.Equal(t, "u", got[0].Username)
	assert.Equal(t, "p", got[0].Credential)
	assert.Nil(t, got[1].Credential)
}

func TestICEServersDefault(t *testing.T) {
	assert.Equal(t, DefaultICEServers(), ICEServers(nil))
	assert.Equal(t, DefaultICEServers(), ICEServers([]config.ICEServer{{}}))
}
