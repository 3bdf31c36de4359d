package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/livescribe/livescribe/internal/app"
	"github.com/livescribe/livescribe/internal/core"
)

type handlers struct {
	deps Deps
}

type connectionParams struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// notificationRequest is the closed set of lifecycle variants accepted at
// the boundary; anything malformed is rejected before it reaches the core.
type notificationRequest struct {
	Event            string            `json:"event" binding:"required,oneof=session.started session.stopped"`
	SessionID        string            `json:"sessionId" binding:"required"`
	StreamID         string            `json:"streamId"`
	ConnectionParams *connectionParams `json:"connectionParams"`
	OperatorID       string            `json:"operatorId"`
	TopicHint        string            `json:"topicHint"`
}

// handleNotification accepts the provider's at-least-once lifecycle
// webhook. Duplicates are fine: the session manager's handlers are
// idempotent, so this always answers 202 once the payload validates.
func (h *handlers) handleNotification(c *gin.Context) {
	var req notificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n := app.Notification{
		Event:      req.Event,
		SessionID:  req.SessionID,
		StreamID:   req.StreamID,
		OperatorID: req.OperatorID,
		TopicHint:  req.TopicHint,
	}
	if req.Event == app.EventSessionStarted {
		if req.ConnectionParams == nil || req.ConnectionParams.URL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "started notification requires connectionParams.url"})
			return
		}
		n.ConnectionParams = core.ConnectParams{
			URL:   req.ConnectionParams.URL,
			Token: req.ConnectionParams.Token,
		}
	}

	if err := h.deps.Manager.HandleNotification(c.Request.Context(), n); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *handlers) handleMeeting(c *gin.Context) {
	m, err := h.deps.Meetings.MeetingByExternalID(c.Request.Context(), c.Param("externalID"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown meeting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meeting": m,
		"viewers": h.deps.Hub.Viewers(m.ID),
	})
}

// handleTranscript is the backfill read surface: a viewer joining
// mid-session fetches this before attaching to the push channel so prior
// content renders ahead of live fragments.
func (h *handlers) handleTranscript(c *gin.Context) {
	ctx := c.Request.Context()
	m, err := h.deps.Meetings.MeetingByExternalID(ctx, c.Param("externalID"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown meeting"})
		return
	}
	segments, err := h.deps.Transcripts.SegmentsByMeeting(ctx, m.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "transcript read failed"})
		return
	}
	speakers, err := h.deps.Transcripts.SpeakersByMeeting(ctx, m.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "transcript read failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meeting":  m,
		"speakers": speakers,
		"segments": segments,
	})
}

func (h *handlers) handleParticipants(c *gin.Context) {
	ctx := c.Request.Context()
	m, err := h.deps.Meetings.MeetingByExternalID(ctx, c.Param("externalID"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown meeting"})
		return
	}
	events, err := h.deps.Transcripts.ParticipantEventsByMeeting(ctx, m.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "participant read failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *handlers) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Hub.Stats())
}
