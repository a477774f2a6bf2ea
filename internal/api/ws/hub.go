package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/careline/internal/alerts"
	"github.com/gosuda/careline/internal/dashboard"
	"github.com/gosuda/careline/internal/journey"
	"github.com/gosuda/careline/internal/server/middleware"
)

const writeTimeout = 10 * time.Second

// Hub serves live dashboard views over WebSocket. Each connection owns a
// Board; change events from the broker trigger a fresh push.
type Hub struct {
	cache   *dashboard.Cache
	broker  *dashboard.Broker
	origins []string
	now     func() time.Time
}

// NewHub creates a hub. origins are host patterns accepted in addition to
// same-origin requests.
func NewHub(cache *dashboard.Cache, broker *dashboard.Broker, origins []string) *Hub {
	return &Hub{cache: cache, broker: broker, origins: originPatterns(origins), now: time.Now}
}

// ServeDashboard handles /ws/dashboard?scope=all|mine&owner=XX.
func (h *Hub) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	board := dashboard.NewBoard(h.cache, scope)

	events, unsubscribe := h.broker.Subscribe()
	defer unsubscribe()

	commands := make(chan ClientMessage)
	readErr := make(chan error, 1)
	go func() {
		for {
			var msg ClientMessage
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				readErr <- err
				return
			}
			select {
			case commands <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := h.sendZones(ctx, conn, board); err != nil {
		log.Debug().Err(err).Msg("websocket write")
		return
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case err := <-readErr:
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				log.Debug().Err(err).Msg("websocket read")
			}
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if err := h.write(ctx, conn, ServerMessage{Type: ev.Type, ClientID: ev.ClientID, At: ev.At}); err != nil {
				log.Debug().Err(err).Msg("websocket write")
				return
			}
			if err := h.sendZones(ctx, conn, board); err != nil {
				log.Debug().Err(err).Msg("websocket write")
				return
			}
		case cmd := <-commands:
			if err := apply(board, cmd); err != nil {
				if err := h.write(ctx, conn, ServerMessage{Type: MessageError, Error: err.Error(), At: h.now().UTC()}); err != nil {
					return
				}
				continue
			}
			if err := h.sendZones(ctx, conn, board); err != nil {
				log.Debug().Err(err).Msg("websocket write")
				return
			}
		}
	}
}

func apply(board *dashboard.Board, cmd ClientMessage) error {
	switch cmd.Type {
	case CommandFilter:
		return board.SetFilter(dashboard.Filter{Stage: journey.Stage(cmd.Stage), House: cmd.House})
	case CommandStage:
		return board.SetStage(journey.Stage(cmd.Stage))
	case CommandHouse:
		board.SetHouse(cmd.House)
	case CommandClear:
		board.ClearFilters()
	case CommandRefresh:
	default:
		return fmt.Errorf("unknown command %q", cmd.Type)
	}
	return nil
}

func (h *Hub) sendZones(ctx context.Context, conn *websocket.Conn, board *dashboard.Board) error {
	scope := board.Scope()
	filter := board.Filter()
	zones := board.Zones(ctx)
	return h.write(ctx, conn, ServerMessage{
		Type:   MessageZones,
		Scope:  &scope,
		Filter: &filter,
		Zones:  &zones,
		At:     h.now().UTC(),
	})
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, msg ServerMessage) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		return fmt.Errorf("ws.Hub.write: %w", err)
	}
	return nil
}

func scopeFromRequest(r *http.Request) (alerts.Scope, error) {
	q := r.URL.Query()
	if owner := q.Get("owner"); owner != "" {
		return alerts.Scope{Owner: strings.ToUpper(owner)}, nil
	}
	switch q.Get("scope") {
	case "", "all":
		return alerts.Scope{}, nil
	case "mine":
		viewer, ok := middleware.ViewerFromContext(r.Context())
		if !ok {
			return alerts.Scope{}, errors.New("scope=mine requires a viewer")
		}
		return alerts.Scope{Owner: viewer}, nil
	default:
		return alerts.Scope{}, fmt.Errorf("unknown scope %q", q.Get("scope"))
	}
}

// originPatterns strips schemes: the websocket origin check matches hosts.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
