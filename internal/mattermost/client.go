// Package mattermost provides webhook client for sending notifications to Mattermost.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aimd54/wellness-rewards/internal/config"
	"github.com/aimd54/wellness-rewards/pkg/logger"
)

// Client handles Mattermost webhook notifications.
type Client struct {
	webhookURL string
	channel    string
	enabled    bool
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a new Mattermost client.
func NewClient(cfg *config.MattermostConfig, log *logger.Logger) *Client {
	return &Client{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		enabled:    cfg.Enabled,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log.Component("mattermost"),
	}
}

// Message represents a Mattermost message payload.
type Message struct {
	Channel     string       `json:"channel,omitempty"`
	Username    string       `json:"username,omitempty"`
	Text        string       `json:"text,omitempty"`
	IconURL     string       `json:"icon_url,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment represents a message attachment.
type Attachment struct {
	Fallback string  `json:"fallback,omitempty"`
	Color    string  `json:"color,omitempty"`
	Pretext  string  `json:"pretext,omitempty"`
	Title    string  `json:"title,omitempty"`
	Text     string  `json:"text,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
	Footer   string  `json:"footer,omitempty"`
}

// Field represents a message field.
type Field struct {
	Short bool   `json:"short"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// Enabled reports whether messages are actually sent.
func (c *Client) Enabled() bool {
	return c.enabled
}

// SendMessage sends a message to Mattermost.
func (c *Client) SendMessage(ctx context.Context, msg *Message) error {
	if !c.enabled {
		c.log.Debug().Msg("Mattermost is disabled, skipping message")
		return nil
	}

	if msg.Channel == "" {
		msg.Channel = c.channel
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Mattermost: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mattermost returned status %d", resp.StatusCode)
	}

	c.log.Debug().
		Str("channel", msg.Channel).
		Msg("Sent message to Mattermost")

	return nil
}

// Digest is a snapshot of a challenge leaderboard.
type Digest struct {
	ChallengeTitle string
	EndsAt         time.Time
	Participants   int
	Entries        []DigestEntry
}

// DigestEntry is one ranked participant.
type DigestEntry struct {
	Rank        int
	DisplayName string
	Score       int64
}

// SendLeaderboardDigest posts the standings of a running challenge.
func (c *Client) SendLeaderboardDigest(ctx context.Context, digest *Digest) error {
	if len(digest.Entries) == 0 {
		c.log.Debug().Str("challenge", digest.ChallengeTitle).Msg("No participants, skipping leaderboard digest")
		return nil
	}

	var text strings.Builder
	fmt.Fprintf(&text, "### 🏆 %s: weekly standings\n\n", digest.ChallengeTitle)
	for _, entry := range digest.Entries {
		medal := fmt.Sprintf("%d.", entry.Rank)
		switch entry.Rank {
		case 1:
			medal = "🥇"
		case 2:
			medal = "🥈"
		case 3:
			medal = "🥉"
		}
		fmt.Fprintf(&text, "%s **%s** with %d points\n", medal, entry.DisplayName, entry.Score)
	}

	daysLeft := int(time.Until(digest.EndsAt).Hours() / 24)
	return c.SendMessage(ctx, &Message{
		Username: "Wellness Challenge Bot",
		Text:     text.String(),
		Attachments: []Attachment{{
			Color: "#2e8b57",
			Fields: []Field{
				{Short: true, Title: "Participants", Value: fmt.Sprintf("%d", digest.Participants)},
				{Short: true, Title: "Ends", Value: digest.EndsAt.Format("Jan 2, 2006")},
			},
			Footer: fmt.Sprintf("%d days left to climb the board", max(0, daysLeft)),
		}},
	})
}
