package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/leofalp/unillm/core/client"
	"github.com/leofalp/unillm/providers/ai"
)

const sseDone = "[DONE]"

// wsDone terminates one request's chunks on a WebSocket.
type wsDone struct {
	Done     bool         `json:"done"`
	Warnings []ai.Warning `json:"warnings,omitempty"`
}

// handleStream relays a stream as server-sent events: one "data" event per
// chunk, "warning" events before the first chunk, an "error" event if the
// stream fails and "data: [DONE]" when it completes. Errors raised before
// the stream opens are answered with a regular error status.
func (s *Server) handleStream(c echo.Context) error {
	cl, req, err := s.clientAndRequest(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	stream, err := cl.GenerateStreamed(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for _, warning := range stream.Warnings {
		if err := writeEvent(w, "warning", warning); err != nil {
			return nil
		}
	}
	w.Flush()

	for chunk, err := range stream.Iter() {
		if err != nil {
			_, body := describe(err)
			s.logger.WarnContext(ctx, "stream failed", "provider", cl.Provider(), "error", err)
			_ = writeEvent(w, "error", body)
			w.Flush()
			return nil
		}
		if err := writeEvent(w, "", chunk); err != nil {
			// Client went away; breaking releases the upstream body.
			return nil
		}
		w.Flush()
	}

	_, _ = fmt.Fprintf(w, "data: %s\n\n", sseDone)
	w.Flush()
	return nil
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// handleWebSocket serves streaming over a WebSocket. Every text message is
// one unified request; the reply is one JSON message per chunk followed by
// {"done": true}, or a single error envelope. Requests on one connection are
// served in order.
func (s *Server) handleWebSocket(c echo.Context) error {
	cl, err := s.clientFor(c)
	if err != nil {
		return err
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the failure response.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return nil
	}
	defer conn.Close()

	ctx := c.Request().Context()
	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", "error", err)
			}
			return nil
		}
		if msgType != websocket.TextMessage {
			if err := writeWSError(conn, &ai.ValidationError{Field: "message", Reason: "expected a text message"}); err != nil {
				return nil
			}
			continue
		}
		if err := s.serveWSRequest(ctx, conn, cl, payload); err != nil {
			s.logger.Debug("websocket write failed", "error", err)
			return nil
		}
	}
}

// serveWSRequest streams one request. A non-nil return means the
// connection is no longer writable.
func (s *Server) serveWSRequest(ctx context.Context, conn *websocket.Conn, cl *client.Client, payload []byte) error {
	req, err := decodeRequest(payload)
	if err != nil {
		return writeWSError(conn, err)
	}

	stream, err := cl.GenerateStreamed(ctx, req)
	if err != nil {
		return writeWSError(conn, err)
	}
	defer stream.Close()

	for chunk, err := range stream.Iter() {
		if err != nil {
			s.logger.WarnContext(ctx, "stream failed", "provider", cl.Provider(), "error", err)
			return writeWSError(conn, err)
		}
		if err := conn.WriteJSON(chunk); err != nil {
			return err
		}
	}
	return conn.WriteJSON(wsDone{Done: true, Warnings: stream.Warnings})
}

func writeWSError(conn *websocket.Conn, err error) error {
	_, body := describe(err)
	return conn.WriteJSON(body)
}
