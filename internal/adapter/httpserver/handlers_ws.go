package httpserver

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The map feed is public read-only data.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleMapSocket attaches a websocket client to the live map feed. An
// optional ?country= query limits delivery to one country.
func (s *Server) handleMapSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}

	if err := s.hub.Register(conn, c.QueryParam("country")); err != nil {
		return fmt.Errorf("register map client: %w", err)
	}

	// Read loop to detect disconnects; clients send nothing meaningful.
	go func() {
		defer s.hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}
