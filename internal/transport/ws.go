package transport

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/conduitmcp/conduit/internal/notify"
	"github.com/conduitmcp/conduit/internal/session"
	"github.com/conduitmcp/conduit/pkg/mcp"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(_ *http.Request) bool {
		return true // CORS policy is wide open, same as the HTTP path
	},
}

// wsOutbound serializes all frames of one connection through a single
// writer goroutine, so responses and notifications interleave only at
// message boundaries.
type wsOutbound struct {
	ch  chan []byte
	ctx context.Context
}

func (o *wsOutbound) WriteNotification(data []byte) error {
	select {
	case o.ch <- data:
		return nil
	case <-o.ctx.Done():
		return o.ctx.Err()
	}
}

// handleWebSocket upgrades the connection and serves it as one session.
// Each inbound text frame is one JSON-RPC message; frames are dispatched
// concurrently, and a disconnect cancels everything still in flight.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFromContext(r.Context())

	id, err := session.NewID()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	sess, err := s.registry.GetOrCreate(id, func() *session.Session {
		return session.New(id, s.sessionHandler)
	})
	if err != nil {
		// Session cap reached; refuse before upgrading.
		http.Error(w, "Too Many Sessions", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.registry.Remove(id)
		logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	if s.metrics != nil {
		s.metrics.WSConnections.Inc()
		defer s.metrics.WSConnections.Dec()
	}
	logger = logger.With("session_id", sess.ID())
	logger.Debug("websocket session opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := &wsOutbound{ch: make(chan []byte, 256), ctx: ctx}

	var writerWG sync.WaitGroup
	writerWG.Add(1)
	go func() {
		defer writerWG.Done()
		writeFailed := false
		for data := range outbound.ch {
			if writeFailed {
				continue // keep draining so senders never block
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("websocket write failed", "error", err)
				writeFailed = true
				cancel()
			}
		}
	}()

	var dispatchWG sync.WaitGroup
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			// Binary frames are not protocol messages. Fragmented text
			// messages arrive here already reassembled by gorilla.
			logger.Debug("dropping non-text websocket frame", "type", msgType, "size", len(data))
			continue
		}

		if len(data) > s.maxMessageBytes {
			if s.metrics != nil {
				s.metrics.MessagesTooLarge.Inc()
			}
			s.enqueueError(outbound, nil, mcp.NewMessageTooLarge(len(data), s.maxMessageBytes))
			continue
		}

		req, rpcErr := mcp.DecodeRequest(data)
		if rpcErr != nil {
			s.enqueueError(outbound, nil, rpcErr)
			continue
		}

		dispatchWG.Add(1)
		go func() {
			defer dispatchWG.Done()
			opts := []notify.Option{notify.WithProgressToken(req.ProgressToken())}
			if s.metrics != nil {
				opts = append(opts, notify.WithEmitHook(func(method string) {
					s.metrics.NotificationsTotal.WithLabelValues(method).Inc()
				}))
			}
			sink := notify.NewSink(outbound, logger, opts...)
			resp := s.router.Dispatch(ctx, sess, req, sink)
			sink.Close()

			if resp == nil {
				return
			}
			out, err := mcp.EncodeResponse(resp)
			if err != nil {
				logger.Error("failed to encode response", "error", err)
				return
			}
			select {
			case outbound.ch <- out:
			case <-ctx.Done():
			}
		}()
	}

	// Disconnect: cancel in-flight work, wait for dispatchers, then let the
	// writer drain.
	s.registry.Remove(sess.ID())
	cancel()
	dispatchWG.Wait()
	close(outbound.ch)
	writerWG.Wait()
	_ = conn.Close()
	logger.Debug("websocket session closed")
}

// enqueueError queues a transport-level error response frame.
func (s *Server) enqueueError(out *wsOutbound, id []byte, rpcErr *mcp.Error) {
	data, err := mcp.EncodeResponse(mcp.NewErrorResponse(id, rpcErr))
	if err != nil {
		return
	}
	select {
	case out.ch <- data:
	case <-out.ctx.Done():
	}
}
