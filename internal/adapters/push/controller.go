package push

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/livescribe/livescribe/internal/auth"
	"github.com/livescribe/livescribe/internal/core"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller upgrades viewer requests onto the push channel.
type Controller struct {
	Hub        *Hub
	Meetings   core.MeetingStore
	Verifier   *auth.Verifier
	SendBuffer int
}

// HandleLive attaches a viewer to a meeting's live event stream. A missing
// token joins as an anonymous guest; a present but invalid or expired one
// is rejected. Backfill is served by the REST read surface, the channel
// only carries events from this point on.
func (ctl *Controller) HandleLive(ctx context.Context, c *gin.Context) {
	externalID := c.Param("externalID")
	meeting, err := ctl.Meetings.MeetingByExternalID(c.Request.Context(), externalID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown meeting"})
		return
	}

	role := RoleGuest
	if token := c.Query("token"); token != "" {
		claims, verr := ctl.Verifier.Verify(token)
		if verr != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": verr.Error()})
			return
		}
		if claims.Subject == string(meeting.OwnerID) {
			role = RoleOwner
		}
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "push").Msg("ws upgrade")
		return
	}

	conn := NewConn(ws, role, ctl.SendBuffer)
	ctl.Hub.Register(meeting.ID, conn)

	ctx, cancel := context.WithCancel(ctx)
	go conn.writePump(ctx)
	go conn.readPump(ctx, func() {
		ctl.Hub.Unregister(meeting.ID, conn)
		cancel()
	})
}
