package beatmap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrUnavailable wraps any transport or upstream failure of the feed.
var ErrUnavailable = errors.New("beatmap feed unavailable")

// sinceFormat is the datetime format the get_beatmaps endpoint expects.
const sinceFormat = "2006-01-02 15:04:05"

// Feed returns beatmaps published since a watermark, oldest first.
type Feed interface {
	FetchSince(ctx context.Context, since time.Time) ([]Beatmap, error)
}

// Client fetches beatmaps from the osu! v1 API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// wireBeatmap is the get_beatmaps response record. The API returns every
// field as a string.
type wireBeatmap struct {
	BeatmapID    string `json:"beatmap_id"`
	BeatmapsetID string `json:"beatmapset_id"`
	Artist       string `json:"artist"`
	Title        string `json:"title"`
	Creator      string `json:"creator"`
	Source       string `json:"source"`
	Version      string `json:"version"`
	Approved     string `json:"approved"`
	Mode         string `json:"mode"`
	Tags         string `json:"tags"`
	Difficulty   string `json:"difficultyrating"`
	TotalLength  string `json:"total_length"`
}

var statusNames = map[string]string{
	"-2": "graveyard",
	"-1": "wip",
	"0":  "pending",
	"1":  "ranked",
	"2":  "approved",
	"3":  "qualified",
	"4":  "loved",
}

var modeNames = map[string]string{
	"0": "osu",
	"1": "taiko",
	"2": "catch",
	"3": "mania",
}

func (w *wireBeatmap) toBeatmap() Beatmap {
	stars, _ := strconv.ParseFloat(w.Difficulty, 64)
	length, _ := strconv.Atoi(w.TotalLength)
	status, ok := statusNames[w.Approved]
	if !ok {
		status = w.Approved
	}
	mode, ok := modeNames[w.Mode]
	if !ok {
		mode = w.Mode
	}
	return Beatmap{
		ID:      w.BeatmapID,
		SetID:   w.BeatmapsetID,
		Artist:  w.Artist,
		Title:   w.Title,
		Creator: w.Creator,
		Source:  w.Source,
		Version: w.Version,
		Status:  status,
		Mode:    mode,
		Tags:    w.Tags,
		Stars:   stars,
		Length:  length,
	}
}

// FetchSince requests all beatmaps approved since the given time. The API
// caps responses at 500 rows; within one poll window that is far beyond the
// publish rate, so no paging is done.
func (c *Client) FetchSince(ctx context.Context, since time.Time) ([]Beatmap, error) {
	q := url.Values{}
	q.Set("k", c.apiKey)
	q.Set("since", since.UTC().Format(sinceFormat))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get_beatmaps?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var wire []wireBeatmap
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	out := make([]Beatmap, 0, len(wire))
	for i := range wire {
		out = append(out, wire[i].toBeatmap())
	}
	return out, nil
}
