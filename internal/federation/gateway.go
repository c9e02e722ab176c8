// Package federation propagates room lifecycle to peer instances and
// collects the rooms they host.
package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
	"github.com/dkeye/voicerooms/internal/metrics"
)

const (
	DefaultFetchTimeout  = 5 * time.Second
	DefaultNotifyTimeout = 5 * time.Second
	RoomsPath            = "/api/federation/rooms"
)

type Config struct {
	InstanceID    string
	Peers         []string
	FetchTimeout  time.Duration
	NotifyTimeout time.Duration
}

// Envelope is the message published for every lifecycle event.
type Envelope struct {
	Event  core.FederationEvent `json:"event"`
	Origin string               `json:"origin"`
	Room   domain.RoomSummary   `json:"room"`
	At     time.Time            `json:"at"`
}

type Gateway struct {
	cfg       Config
	publisher Publisher
	client    *http.Client

	sf singleflight.Group
	wg sync.WaitGroup

	mu       sync.RWMutex
	external []domain.RoomSummary
}

var _ core.FederationGateway = (*Gateway)(nil)

func NewGateway(cfg Config, publisher Publisher, client *http.Client) *Gateway {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = DefaultNotifyTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.FetchTimeout}
	}
	return &Gateway{cfg: cfg, publisher: publisher, client: client}
}

// Notify publishes in the background; failures are logged and counted only.
func (g *Gateway) Notify(event core.FederationEvent, room domain.RoomSummary) {
	env := Envelope{Event: event, Origin: g.cfg.InstanceID, Room: room, At: time.Now()}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), g.cfg.NotifyTimeout)
		defer cancel()
		if err := g.publisher.Publish(ctx, "rooms."+string(event), env); err != nil {
			metrics.IncFederationError("notify")
			log.Warn().Err(err).Str("module", "federation").Str("event", string(event)).
				Str("room_id", string(room.ID)).Msg("notify failed")
		}
	}()
}

// Wait blocks until in-flight notifications have finished.
func (g *Gateway) Wait() { g.wg.Wait() }

func (g *Gateway) ExternalRooms() []domain.RoomSummary {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]domain.RoomSummary(nil), g.external...)
}

// FetchExternalRooms queries every peer concurrently within FetchTimeout.
// Peers that fail or time out contribute nothing; concurrent callers share
// one round of requests.
func (g *Gateway) FetchExternalRooms(ctx context.Context) []domain.RoomSummary {
	if len(g.cfg.Peers) == 0 {
		return nil
	}
	v, _, _ := g.sf.Do("external", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.FetchTimeout)
		defer cancel()

		results := make([][]domain.RoomSummary, len(g.cfg.Peers))
		eg, egCtx := errgroup.WithContext(fetchCtx)
		for i, peer := range g.cfg.Peers {
			eg.Go(func() error {
				rooms, err := g.fetchPeer(egCtx, peer)
				if err != nil {
					metrics.IncFederationError("fetch")
					log.Warn().Err(err).Str("module", "federation").Str("peer", peer).Msg("fetch external rooms failed")
					return nil
				}
				results[i] = rooms
				return nil
			})
		}
		_ = eg.Wait()

		merged := []domain.RoomSummary{}
		for _, rooms := range results {
			merged = append(merged, rooms...)
		}
		g.mu.Lock()
		g.external = merged
		g.mu.Unlock()
		return merged, nil
	})
	rooms, _ := v.([]domain.RoomSummary)
	return append([]domain.RoomSummary(nil), rooms...)
}

type peerResponse struct {
	Success bool                 `json:"success"`
	Data    []domain.RoomSummary `json:"data"`
}

func (g *Gateway) fetchPeer(ctx context.Context, peer string) ([]domain.RoomSummary, error) {
	url := strings.TrimRight(peer, "/") + RoomsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("peer %s: status %d", peer, resp.StatusCode)
	}
	var body peerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("peer %s: %w", peer, err)
	}
	if !body.Success {
		return nil, fmt.Errorf("peer %s: %w", peer, domain.ErrFederationUnavailable)
	}
	for i := range body.Data {
		body.Data[i].Origin = peer
	}
	return body.Data, nil
}

// Run refreshes external rooms every interval until ctx is done.
func (g *Gateway) Run(ctx context.Context, interval time.Duration) {
	if len(g.cfg.Peers) == 0 || interval <= 0 {
		return
	}
	g.FetchExternalRooms(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.FetchExternalRooms(ctx)
		}
	}
}

func (g *Gateway) Close() error {
	g.Wait()
	return g.publisher.Close()
}
