// Package rtc builds the WebRTC settings handed to clients for
// peer-to-peer audio.
package rtc

import (
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/voicerooms/internal/config"
)

func DefaultICEServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{
		{
			URLs: []string{"stun:stun.l.google.com:19302"},
		},
	}
}

// ICEServers converts configured servers, skipping entries without URLs.
func ICEServers(servers []config.ICEServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		if len(s.URLs) == 0 {
			continue
		}
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
		}
		out = append(out, srv)
	}
	if len(out) == 0 {
		return DefaultICEServers()
	}
	return out
}

