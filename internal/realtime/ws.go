package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"sms-support-server/pkg/logger"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	writeTimeout      = 5 * time.Second
	readLimit         = 4 << 10
	defaultOutboxSize = 64
)

// Authenticator resolves a bearer token to the agent ID it was issued to
type Authenticator func(token string) (string, error)

// clientFrame is what clients send; Data is a conversation ID string or
// an object carrying conversationId.
type clientFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// outbox is a session's buffered queue drained by its writer goroutine
type outbox chan Event

func (o outbox) Deliver(ev Event) bool {
	select {
	case o <- ev:
		return true
	default:
		return false
	}
}

// Server is the WebSocket transport for a Hub
type Server struct {
	hub            *Hub
	authenticate   Authenticator
	outboxSize     int
	originPatterns []string
}

// NewServer creates a Server. origins are host patterns allowed to connect
// cross-origin; outboxSize bounds the events queued per session.
func NewServer(hub *Hub, authenticate Authenticator, outboxSize int, origins []string) *Server {
	if outboxSize <= 0 {
		outboxSize = defaultOutboxSize
	}
	return &Server{
		hub:            hub,
		authenticate:   authenticate,
		outboxSize:     outboxSize,
		originPatterns: originHosts(origins),
	}
}

// ServeHTTP authenticates the request, upgrades it and runs the session
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	agentID, err := s.authenticate(requestToken(r))
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"success":    false,
			"error":      "Unauthorized",
			"statusCode": http.StatusUnauthorized,
		})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns})
	if err != nil {
		logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(readLimit)

	sessionID := uuid.New().String()
	queue := make(outbox, s.outboxSize)
	s.hub.Register(sessionID, queue)

	logger.Info("Realtime session connected", zap.String("session_id", sessionID), zap.String("agent_id", agentID))

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		s.hub.Disconnect(sessionID)
		conn.CloseNow()
		logger.Info("Realtime session disconnected", zap.String("session_id", sessionID))
	}()

	go s.writeLoop(ctx, cancel, conn, queue)
	s.readLoop(ctx, conn, sessionID, queue)
}

func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, queue outbox) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-queue:
			writeCtx, writeCancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, ev)
			writeCancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, sessionID string, queue outbox) {
	for {
		var frame clientFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				logger.Debug("Realtime read ended", zap.String("session_id", sessionID), zap.Error(err))
			}
			return
		}

		conversationID := frameConversationID(frame.Data)

		switch frame.Event {
		case "join_conversation":
			if conversationID == "" {
				queue.Deliver(Event{Name: EventError, Data: "conversationId is required"})
				continue
			}
			if err := s.hub.Subscribe(sessionID, conversationID); err != nil {
				return
			}
			queue.Deliver(Event{Name: EventJoined, Data: map[string]string{"conversationId": conversationID}})
		case "leave_conversation":
			if conversationID == "" {
				queue.Deliver(Event{Name: EventError, Data: "conversationId is required"})
				continue
			}
			s.hub.Unsubscribe(sessionID, conversationID)
			queue.Deliver(Event{Name: EventLeft, Data: map[string]string{"conversationId": conversationID}})
		default:
			queue.Deliver(Event{Name: EventError, Data: "unknown event " + frame.Event})
		}
	}
}

func frameConversationID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return strings.TrimSpace(id)
	}

	var obj struct {
		ConversationID string `json:"conversationId"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.ConversationID)
	}
	return ""
}

func requestToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return r.URL.Query().Get("token")
}

// originHosts turns configured origins such as http://localhost:5174 into
// the host patterns the upgrader matches against.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if i := strings.Index(origin, "://"); i >= 0 {
			origin = origin[i+3:]
		}
		origin = strings.TrimRight(origin, "/")
		if origin != "" {
			hosts = append(hosts, origin)
		}
	}
	return hosts
}
