package api

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/sandevgo/agora/internal/agora"
	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/pkg/log"
)

const (
	wsGetMessages = "get_messages"
	wsSubscribe   = "subscribe"

	wsTypeMessages = "messages"
	wsTypeRound    = "round_committed"
	wsTypeError    = "error"
)

type wsRequest struct {
	Type     string `json:"type"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	RoundNum *int   `json:"round_num"`
	Format   string `json:"format"`
}

type wsReply struct {
	Type  string               `json:"type"`
	Event *core.RoundCommitted `json:"event,omitempty"`
	Error *errorBody           `json:"error,omitempty"`
	*agora.Page
}

func (s *Server) upgradeOnly(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// wsSession serializes writes to one connection and holds the query the
// client subscribed with.
type wsSession struct {
	id   uuid.UUID
	conn *websocket.Conn

	mu         sync.Mutex
	subscribed bool
	query      wsRequest
}

func (ws *wsSession) send(reply wsReply) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.conn.WriteJSON(reply)
}

func (s *Server) handleWebSocket(c *websocket.Conn) {
	defer func() {
		_ = c.Close()
	}()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	ws := &wsSession{id: uuid.New(), conn: c}
	logger := log.FromCtx(ctx).With().Str("session", ws.id.String()).Logger()
	logger.Debug().Msg("websocket connected")
	defer logger.Debug().Msg("websocket disconnected")

	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	for {
		var req wsRequest
		if err := c.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		if req.Type == wsSubscribe {
			if err := s.subscribe(ctx, ws, req); err != nil {
				_ = ws.send(errorReply(err))
				continue
			}
		}

		if err := ws.send(s.reply(ctx, req)); err != nil {
			logger.Warn().Err(err).Msg("websocket write failed")
			return
		}
	}
}

// subscribe registers the session for round pushes once. Later subscribe
// requests only replace the query.
func (s *Server) subscribe(ctx context.Context, ws *wsSession, req wsRequest) error {
	if s.bus == nil {
		return core.InvalidArgument("subscribe", "push is not enabled on this server")
	}

	ws.mu.Lock()
	ws.query = req
	already := ws.subscribed
	ws.subscribed = true
	ws.mu.Unlock()

	if already {
		return nil
	}

	err := s.bus.Subscribe(ctx, func(ev core.RoundCommitted) {
		ws.mu.Lock()
		q := ws.query
		ws.mu.Unlock()

		reply := s.reply(ctx, q)
		if reply.Type == wsTypeMessages {
			reply.Type = wsTypeRound
			reply.Event = &ev
		}
		if err := ws.send(reply); err != nil {
			log.FromCtx(ctx).Debug().Err(err).Msg("round push failed")
		}
	})
	if err != nil {
		ws.mu.Lock()
		ws.subscribed = false
		ws.mu.Unlock()
	}
	return err
}

// reply answers get_messages and subscribe requests with an agora page.
func (s *Server) reply(ctx context.Context, req wsRequest) wsReply {
	if req.Type != wsGetMessages && req.Type != wsSubscribe {
		return errorReply(core.InvalidArgument("websocket", "unknown message type %q", req.Type))
	}

	page, size := req.Page, req.PageSize
	if page == 0 {
		page = 1
	}
	if size == 0 {
		size = s.cfg.DefaultPageSize
	}

	res, err := s.svc.Agora(ctx, req.RoundNum, page, size)
	if err != nil {
		return errorReply(err)
	}
	res.Messages = render(res.Messages, req.Format)
	return wsReply{Type: wsTypeMessages, Page: &res}
}

func errorReply(err error) wsReply {
	return wsReply{
		Type:  wsTypeError,
		Error: &errorBody{Kind: kindOf(err), Message: err.Error()},
	}
}
