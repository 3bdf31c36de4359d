// Package directory is the client for the external operator directory used
// for best-effort meeting metadata enrichment.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/livescribe/livescribe/internal/core"
	"github.com/livescribe/livescribe/internal/domain"
)

// profile is what the directory returns for an operator.
type profile struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// Client implements app.Enricher against an HTTP directory.
type Client struct {
	baseURL  string
	httpc    *http.Client
	meetings core.MeetingStore
}

func NewClient(baseURL string, meetings core.MeetingStore) *Client {
	return &Client{
		baseURL:  baseURL,
		httpc:    &http.Client{Timeout: 5 * time.Second},
		meetings: meetings,
	}
}

// EnrichMeeting looks the operator up and fills in a nicer meeting title
// when the notification carried no topic hint. Failures bubble to the task
// pool's error sink and never touch ingestion.
func (c *Client) EnrichMeeting(ctx context.Context, meetingID domain.MeetingID, operatorID string) error {
	m, err := c.meetings.MeetingByID(ctx, meetingID)
	if err != nil {
		return err
	}
	if m.Title != "" && m.Title != "Untitled meeting" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/operators/%s", c.baseURL, operatorID), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("directory lookup for %s: status %d", operatorID, resp.StatusCode)
	}

	var p profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return fmt.Errorf("directory lookup for %s: %w", operatorID, err)
	}
	if p.DisplayName == "" {
		return nil
	}
	if err := c.meetings.UpdateTitle(ctx, meetingID, fmt.Sprintf("%s's meeting", p.DisplayName)); err != nil {
		return err
	}
	log.Info().Str("module", "directory").Str("meeting", string(meetingID)).Str("operator", operatorID).Msg("meeting enriched")
	return nil
}
