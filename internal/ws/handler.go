package ws

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins; rely on JWT auth.
		return true
	},
}

// AttendanceHandler upgrades the request and subscribes it to ?program_id=,
// or to every program when the parameter is absent.
func AttendanceHandler(hub *AttendanceHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		var programID uint
		if raw := strings.TrimSpace(c.Query("program_id")); raw != "" {
			n, err := strconv.ParseUint(raw, 10, 64)
			if err != nil || n == 0 {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid program_id"})
				return
			}
			programID = uint(n)
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		cl := &client{
			hub:       hub,
			conn:      conn,
			send:      make(chan []byte, sendBufferSize),
			programID: programID,
		}
		select {
		case hub.register <- cl:
		case <-hub.done:
			conn.Close()
			return
		}

		go cl.writePump()
		cl.readPump()
	}
}
