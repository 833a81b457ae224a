package webapp

import (
	"bufio"
	"context"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-datainsight/internal/logging"
)

// streamEvents serves upload progress as Server-Sent Events. The stream ends
// on a terminal phase or after the stream timeout.
func (s *Server) streamEvents(c *fiber.Ctx) error {
	uploadID := c.Params("id")
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	timeout := s.cfg.StreamTimeout
	hub := s.cfg.Hub
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		hub.StreamSSE(ctx, uploadID, w)
	})
	return nil
}

// streamSocket pushes the same progress events as JSON frames.
func (s *Server) streamSocket() fiber.Handler {
	hub := s.cfg.Hub
	timeout := s.cfg.StreamTimeout
	return websocket.New(func(conn *websocket.Conn) {
		uploadID := conn.Params("id")
		events, cancel := hub.Subscribe(uploadID)
		defer cancel()
		deadline := time.NewTimer(timeout)
		defer deadline.Stop()
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := conn.WriteJSON(event); err != nil {
					logger := logging.Logger()
					logger.Debug().Err(err).Str("upload", uploadID).Msg("progress socket closed")
					return
				}
				if event.Phase.Terminal() {
					_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
					return
				}
			case <-deadline.C:
				return
			}
		}
	})
}
