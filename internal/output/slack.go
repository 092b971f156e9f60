// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// slackBlockLimit is the most blocks Slack accepts in one message.
const slackBlockLimit = 50

// SlackWriter posts the digest to an incoming webhook.
type SlackWriter struct {
	WebhookURL string
	Client     *http.Client
}

func (w *SlackWriter) Name() string { return "slack" }

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

func (w *SlackWriter) Write(ctx context.Context, d Digest) error {
	body, err := json.Marshal(buildSlackMessage(d))
	if err != nil {
		return fmt.Errorf("encoding slack message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	if _, err := httputil.GetBody(ctx, client, req, httputil.FixedPolicy{Attempts: 1}); err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	return nil
}

func buildSlackMessage(d Digest) slackMessage {
	papers := d.Selection.Papers()
	header := fmt.Sprintf("Arxiv update %s: %d relevant papers", d.Date, len(papers))
	msg := slackMessage{
		Text:   header,
		Blocks: []slackBlock{{Type: "header", Text: &slackText{Type: "plain_text", Text: header}}},
	}
	for _, p := range papers {
		if len(msg.Blocks) >= slackBlockLimit-1 {
			break
		}
		msg.Blocks = append(msg.Blocks,
			slackBlock{Type: "divider"},
			slackBlock{Type: "section", Text: &slackText{Type: "mrkdwn", Text: slackPaper(p)}},
		)
	}
	return msg
}

func slackPaper(p types.Paper) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*<%s|%s>*\n", p.URL, slackEscape(p.Title))
	fmt.Fprintf(&b, "*Authors*: %s\n", slackEscape(strings.Join(p.Authors, ", ")))
	if p.Relevance != nil && p.Novelty != nil {
		fmt.Fprintf(&b, "*Relevance*: %d  *Novelty*: %d\n", *p.Relevance, *p.Novelty)
	}
	if p.Comment != "" {
		fmt.Fprintf(&b, "*Comment*: %s", slackEscape(p.Comment))
	}
	return strings.TrimRight(b.String(), "\n")
}

// slackEscape escapes the characters Slack mrkdwn treats as control syntax.
func slackEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
