// Package delivery sends notifications to users over Discord DMs.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/beatwatch/beatwatch/internal/beatmap"
	"github.com/beatwatch/beatwatch/internal/subscription"
)

const (
	setURLFmt   = "https://osu.ppy.sh/s/%s"
	thumbURLFmt = "https://b.ppy.sh/thumb/%sl.jpg"
	footerIcon  = "https://w.ppy.sh/c/c9/Logo.png"
	osuPink     = 0xff67aa
)

var statusIcons = map[string]string{
	"ranked":    "https://i.imgur.com/5r5hs7L.png",
	"approved":  "https://i.imgur.com/5r5hs7L.png",
	"qualified": "https://i.imgur.com/qsOb44F.png",
	"loved":     "https://i.imgur.com/gBXSNJQ.png",
	"pending":   "https://i.imgur.com/hNuc9Ci.png",
}

// DiscordSink delivers notifications as embed messages in per-user DM
// channels via the Discord REST API.
type DiscordSink struct {
	apiBase string
	token   string
	http    *http.Client

	mu       sync.Mutex
	channels map[string]string // user id -> DM channel id
}

func NewDiscordSink(apiBase, botToken string, timeout time.Duration) *DiscordSink {
	return &DiscordSink{
		apiBase:  apiBase,
		token:    botToken,
		http:     &http.Client{Timeout: timeout},
		channels: make(map[string]string),
	}
}

type embedAuthor struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

type embedImage struct {
	URL string `json:"url"`
}

type embed struct {
	Title       string       `json:"title"`
	URL         string       `json:"url,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Author      *embedAuthor `json:"author,omitempty"`
	Image       *embedImage  `json:"image,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
}

type message struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds,omitempty"`
}

// Deliver sends the user one embed describing the whole beatmap set and the
// subscription that matched it. Satisfies the checker's Sink.
func (d *DiscordSink) Deliver(ctx context.Context, userID string, items []beatmap.Beatmap, sub subscription.Subscription) error {
	if len(items) == 0 {
		return nil
	}
	msg := message{Embeds: []embed{buildEmbed(items, sub)}}
	return d.sendDM(ctx, userID, msg)
}

// SendText sends a plain text DM. Used by the admin broadcast command.
func (d *DiscordSink) SendText(ctx context.Context, userID, text string) error {
	return d.sendDM(ctx, userID, message{Content: text})
}

func buildEmbed(items []beatmap.Beatmap, sub subscription.Subscription) embed {
	rep := items[0]
	sorted := make([]beatmap.Beatmap, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Stars < sorted[j].Stars })

	var diffs, stars bytes.Buffer
	for i, b := range sorted {
		if i > 0 {
			diffs.WriteByte('\n')
			stars.WriteByte('\n')
		}
		diffs.WriteString(b.Version)
		fmt.Fprintf(&stars, "%.2f", b.Stars)
	}

	e := embed{
		Title:       fmt.Sprintf("%s - %s", rep.Artist, rep.Title),
		URL:         fmt.Sprintf(setURLFmt, rep.SetID),
		Description: fmt.Sprintf("Mapped by %s | Length %d:%02d", rep.Creator, rep.Length/60, rep.Length%60),
		Color:       osuPink,
		Image:       &embedImage{URL: fmt.Sprintf(thumbURLFmt, rep.SetID)},
		Fields: []embedField{
			{Name: "Difficulty", Value: diffs.String(), Inline: true},
			{Name: "Stars", Value: stars.String(), Inline: true},
		},
		Footer: &embedFooter{
			Text:    fmt.Sprintf("Matched your subscription %s %q", sub.Attr, sub.Value),
			IconURL: footerIcon,
		},
	}
	if rep.Status != "" {
		e.Author = &embedAuthor{
			Name:    "New " + rep.Status + " beatmap",
			IconURL: statusIcons[rep.Status],
		}
	}
	return e
}

func (d *DiscordSink) sendDM(ctx context.Context, userID string, msg message) error {
	ch, err := d.dmChannel(ctx, userID)
	if err != nil {
		return err
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := d.post(ctx, "/channels/"+ch+"/messages", msg, &resp); err != nil {
		return fmt.Errorf("send message to %s: %w", userID, err)
	}
	return nil
}

// dmChannel returns the DM channel for the user, creating it on first use.
// Discord returns the existing channel for repeated create calls, so caching
// is only an optimization.
func (d *DiscordSink) dmChannel(ctx context.Context, userID string) (string, error) {
	d.mu.Lock()
	ch, ok := d.channels[userID]
	d.mu.Unlock()
	if ok {
		return ch, nil
	}

	var resp struct {
		ID string `json:"id"`
	}
	body := map[string]string{"recipient_id": userID}
	if err := d.post(ctx, "/users/@me/channels", body, &resp); err != nil {
		return "", fmt.Errorf("open DM channel for %s: %w", userID, err)
	}
	d.mu.Lock()
	d.channels[userID] = resp.ID
	d.mu.Unlock()
	return resp.ID, nil
}

func (d *DiscordSink) post(ctx context.Context, path string, body, out interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiBase+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+d.token)

	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("discord: status %d", resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
