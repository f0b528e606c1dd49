package websocket

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
	"github.com/satriahrh/cocoa-fruit/jester/utils/log"
)

// Handler serves "/ws". It expects an auth middleware to have stored the
// session ID and blocks until the connection is gone.
func (s *Server) Handler(c echo.Context) error {
	sessionID, _ := c.Get(domain.SessionContextKey).(string)
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing session")
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(conn, sessionID, s.handleMessage)
	if err := s.hub.Register(client); err != nil {
		log.WithCtx(client.Context()).Error("Failed to register client", zap.Error(err))
		client.Close()
		return nil
	}
	defer func() {
		s.hub.Unregister(client)
		s.turns.Delete(client)
	}()

	client.Run()
	<-client.Context().Done()
	return nil
}
