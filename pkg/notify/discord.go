package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	v1 "github.com/holon-run/buildbridge/pkg/api/v1"
	"github.com/holon-run/buildbridge/pkg/log"
)

// Embed colors.
const (
	ColorStarted = 0x3498db
	ColorSuccess = 0x2ecc71
	ColorPartial = 0xf39c12
	ColorFailed  = 0xe74c3c
)

const (
	maxFailureLen = 100
	maxErrorLen   = 1000
	unknownError  = "Unknown error"

	// JavaScript-style ISO timestamps, which Discord accepts.
	discordTimeLayout = "2006-01-02T15:04:05.000Z"
)

// Embed is a Discord message embed.
type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Fields      []EmbedField `json:"fields"`
	Timestamp   string       `json:"timestamp"`
	URL         string       `json:"url,omitempty"`
}

// EmbedField is one name/value row of an Embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type webhookPayload struct {
	Embeds []Embed `json:"embeds"`
}

// DiscordOption configures a Discord notifier.
type DiscordOption func(*Discord)

// WithDiscordHTTPClient sets the client used to post webhooks.
func WithDiscordHTTPClient(c *http.Client) DiscordOption {
	return func(d *Discord) {
		d.client = c
	}
}

// Discord posts run events to a Discord webhook as embeds.
type Discord struct {
	url    string
	client *http.Client
}

// NewDiscord returns a notifier posting to webhookURL. An empty URL yields
// a disabled notifier that only logs a warning per event.
func NewDiscord(webhookURL string, opts ...DiscordOption) *Discord {
	d := &Discord{
		url:    strings.TrimSpace(webhookURL),
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Discord) Name() string { return "discord" }

// Enabled reports whether a webhook URL is configured.
func (d *Discord) Enabled() bool { return d.url != "" }

// Notify posts the embed for ev.
func (d *Discord) Notify(ctx context.Context, ev Event) error {
	if !d.Enabled() {
		log.Warn("discord webhook URL not configured, skipping notification", "event", string(ev.Type))
		return nil
	}

	body, err := json.Marshal(webhookPayload{Embeds: []Embed{BuildEmbed(ev)}})
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send discord notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	log.Debug("discord notification sent", "event", string(ev.Type), "run_id", ev.RunID)
	return nil
}

// BuildEmbed renders ev. A success event in which every target failed is
// rendered as a failed build.
func BuildEmbed(ev Event) Embed {
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	stamp := ts.UTC().Format(discordTimeLayout)

	switch ev.Type {
	case EventStarted:
		return Embed{
			Title:       "🔨 Build Started",
			Description: fmt.Sprintf("Building PR #%d: %s", ev.PR.Number, ev.PR.Title),
			Color:       ColorStarted,
			Fields: []EmbedField{
				{Name: "Repository", Value: ev.PR.Repository, Inline: true},
				{Name: "Branch", Value: ev.PR.Branch, Inline: true},
				{Name: "Author", Value: ev.PR.Author, Inline: true},
			},
			Timestamp: stamp,
			URL:       ev.PR.HTMLURL,
		}
	case EventSuccess:
		summary := v1.Summarize(ev.Results)
		if summary.Succeeded == 0 {
			return failedEmbed(ev.PR, allFailedMessage(ev), stamp)
		}
		return successEmbed(ev.PR, ev.Results, summary, stamp)
	default:
		return failedEmbed(ev.PR, ev.Error, stamp)
	}
}

func successEmbed(pr v1.PullRequest, results []v1.UploadOutcome, summary v1.RunSummary, stamp string) Embed {
	title, color := "✅ All Builds Successful", ColorSuccess
	if summary.Status() != v1.RunAllSucceeded {
		title, color = "⚠️ Partial Build Success", ColorPartial
	}

	fields := []EmbedField{
		{Name: "Repository", Value: pr.Repository, Inline: true},
		{Name: "Branch", Value: pr.Branch, Inline: true},
		{Name: "Build Summary", Value: fmt.Sprintf("✅ %d success / ❌ %d failed", summary.Succeeded, summary.Failed()), Inline: true},
	}

	var links, failures []string
	for _, r := range results {
		if r.Success {
			links = append(links, fmt.Sprintf("🔗 [%s](%s)", r.Target, r.LinkURL()))
			continue
		}
		msg := r.Error
		if msg == "" {
			msg = unknownError
		}
		failures = append(failures, fmt.Sprintf("❌ %s: %s", r.Target, truncate(msg, maxFailureLen)))
	}
	if len(links) > 0 {
		fields = append(fields, EmbedField{Name: "📥 Downloads", Value: strings.Join(links, "\n")})
	}
	if len(failures) > 0 {
		fields = append(fields, EmbedField{Name: "💥 Build Failures", Value: strings.Join(failures, "\n")})
	}

	return Embed{
		Title:       title,
		Description: fmt.Sprintf("PR #%d: %s", pr.Number, pr.Title),
		URL:         pr.HTMLURL,
		Color:       color,
		Fields:      fields,
		Timestamp:   stamp,
	}
}

func failedEmbed(pr v1.PullRequest, errMsg, stamp string) Embed {
	if errMsg == "" {
		errMsg = unknownError
	}
	return Embed{
		Title:       "❌ Build Failed",
		Description: fmt.Sprintf("PR #%d: %s", pr.Number, pr.Title),
		URL:         pr.HTMLURL,
		Color:       ColorFailed,
		Fields: []EmbedField{
			{Name: "Repository", Value: pr.Repository, Inline: true},
			{Name: "Branch", Value: pr.Branch, Inline: true},
			{Name: "Error", Value: truncate(errMsg, maxErrorLen)},
		},
		Timestamp: stamp,
	}
}

func allFailedMessage(ev Event) string {
	if ev.Error != "" {
		return ev.Error
	}
	if len(ev.Results) == 0 {
		return "no targets were built"
	}
	lines := make([]string, 0, len(ev.Results))
	for _, r := range ev.Results {
		msg := r.Error
		if msg == "" {
			msg = unknownError
		}
		lines = append(lines, fmt.Sprintf("%s: %s", r.Target, truncate(msg, maxFailureLen)))
	}
	return strings.Join(lines, "\n")
}
