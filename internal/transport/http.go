package transport

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/conduitmcp/conduit/internal/notify"
	"github.com/conduitmcp/conduit/internal/session"
	"github.com/conduitmcp/conduit/pkg/mcp"
)

// SessionCookieName is the cookie carrying the session id on the
// request/response transport.
const SessionCookieName = "mcp_session"

// handleMCP is the single logical endpoint. WebSocket upgrades, CORS
// preflights, and JSON POSTs all arrive here and are told apart by their
// headers.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		s.handleWebSocket(w, r)
		return
	}

	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodOptions:
		setCORSHeaders(w.Header())
		w.WriteHeader(http.StatusNoContent)
	default:
		setCORSHeaders(w.Header())
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handlePost processes one JSON-RPC message over the request/response
// transport. Checks run in the mandated order: byte cap, envelope shape,
// session, then per-method params inside the router.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w.Header())
	logger := LoggerFromContext(r.Context())

	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		writeRPCError(w, nil, mcp.NewParseError("content type must be application/json"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(s.maxMessageBytes))
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			if s.metrics != nil {
				s.metrics.MessagesTooLarge.Inc()
			}
			actual := int(r.ContentLength)
			if actual <= s.maxMessageBytes {
				actual = s.maxMessageBytes + 1
			}
			writeRPCError(w, nil, mcp.NewMessageTooLarge(actual, s.maxMessageBytes))
			return
		}
		writeRPCError(w, nil, mcp.NewParseError("failed to read request body"))
		return
	}
	if len(body) == 0 {
		writeRPCError(w, nil, mcp.NewParseError("empty request body"))
		return
	}

	req, rpcErr := mcp.DecodeRequest(body)
	if rpcErr != nil {
		writeRPCError(w, nil, rpcErr)
		return
	}

	sess, rpcErr := s.resolveSession(w, r, req)
	if rpcErr != nil {
		if req.IsNotification() {
			// Notifications never produce a response, even on error.
			logger.Debug("dropping notification without session", "method", req.Method)
			w.WriteHeader(http.StatusAccepted)
			return
		}
		writeRPCError(w, req.ID, rpcErr)
		return
	}

	if token := req.ProgressToken(); token != nil && !req.IsNotification() {
		s.streamResponse(w, r, sess, req)
		return
	}

	// No progress token: handler notifications are dropped with a debug
	// log, and the response goes out as a single sized body.
	sink := notify.NewSink(nil, logger)
	resp := s.router.Dispatch(r.Context(), sess, req, sink)
	sink.Close()

	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	data, err := mcp.EncodeResponse(resp)
	if err != nil {
		logger.Error("failed to encode response", "error", err)
		writeRPCError(w, req.ID, mcp.NewInternalError("failed to encode response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// resolveSession maps the request to its session. On initialize a missing
// cookie mints a fresh session (capacity permitting) and sets the cookie.
// Any other method without a live session is rejected with NotInitialized;
// conduit does not mint transient sessions, so both transports behave the
// same.
func (s *Server) resolveSession(w http.ResponseWriter, r *http.Request, req *mcp.Request) (*session.Session, *mcp.Error) {
	var cookieID string
	if c, err := r.Cookie(SessionCookieName); err == nil {
		cookieID = c.Value
	}

	if req.Method == mcp.MethodInitialize {
		id := cookieID
		if id == "" {
			newID, err := session.NewID()
			if err != nil {
				return nil, mcp.NewInternalError("failed to generate session id")
			}
			id = newID
		}
		sess, err := s.registry.GetOrCreate(id, func() *session.Session {
			return session.New(id, s.sessionHandler)
		})
		if err != nil {
			return nil, mcp.AsError(err)
		}
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookieName,
			Value:    id,
			Path:     "/mcp",
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
		return sess, nil
	}

	if cookieID == "" {
		return nil, mcp.NewNotInitialized()
	}
	sess, ok := s.registry.Get(cookieID)
	if !ok {
		return nil, mcp.NewNotInitialized()
	}
	return sess, nil
}

// streamResponse serves a request that opted into progress via
// `_meta.progressToken`: the connection switches to chunked encoding and
// notifications are flushed as newline-delimited JSON objects ahead of the
// final response. Content-Length is never set on this path, so the
// response carries exactly one framing.
func (s *Server) streamResponse(w http.ResponseWriter, r *http.Request, sess *session.Session, req *mcp.Request) {
	logger := LoggerFromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		// No streaming support; fall back to a plain response and drop
		// notifications.
		sink := notify.NewSink(nil, logger)
		resp := s.router.Dispatch(r.Context(), sess, req, sink)
		sink.Close()
		writeResponse(w, req, resp, logger)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	opts := []notify.Option{notify.WithProgressToken(req.ProgressToken())}
	if s.metrics != nil {
		opts = append(opts, notify.WithEmitHook(func(method string) {
			s.metrics.NotificationsTotal.WithLabelValues(method).Inc()
		}))
	}
	sink := notify.NewSink(&chunkFlusher{w: w, f: flusher}, logger, opts...)

	resp := s.router.Dispatch(r.Context(), sess, req, sink)
	sink.Close()

	data, err := mcp.EncodeResponse(resp)
	if err != nil {
		logger.Error("failed to encode streamed response", "error", err)
		return
	}
	_, _ = w.Write(append(data, '\n'))
	flusher.Flush()
}

// chunkFlusher delivers one notification per chunk, newline delimited.
type chunkFlusher struct {
	w http.ResponseWriter
	f http.Flusher
}

func (c *chunkFlusher) WriteNotification(data []byte) error {
	if _, err := c.w.Write(append(data, '\n')); err != nil {
		return err
	}
	c.f.Flush()
	return nil
}

// writeResponse writes a single sized JSON body for resp.
func writeResponse(w http.ResponseWriter, req *mcp.Request, resp *mcp.Response, logger interface{ Error(string, ...any) }) {
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	data, err := mcp.EncodeResponse(resp)
	if err != nil {
		logger.Error("failed to encode response", "error", err)
		writeRPCError(w, req.ID, mcp.NewInternalError("failed to encode response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// writeRPCError writes a JSON-RPC error over HTTP 200. HTTP status codes
// are reserved for transport faults; protocol failures ride the envelope.
func writeRPCError(w http.ResponseWriter, id []byte, rpcErr *mcp.Error) {
	data, err := mcp.EncodeResponse(mcp.NewErrorResponse(id, rpcErr))
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
