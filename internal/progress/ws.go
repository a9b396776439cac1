package progress

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"novelhub/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WSHandler upgrades the request and streams hub events until the client
// disconnects.
func WSHandler(hub *Hub, log zerolog.Logger) gin.HandlerFunc {
	log = logging.Component(log, "ws-progress")
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Debug().Err(err).Msg("upgrade failed")
			return
		}
		client := &wsClient{conn: conn}
		if err := hub.join(client); err != nil {
			_ = conn.Close()
			return
		}
		log.Debug().Str("remote", c.ClientIP()).Msg("client connected")
		defer func() {
			hub.leave(client)
			log.Debug().Str("remote", c.ClientIP()).Msg("client disconnected")
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
