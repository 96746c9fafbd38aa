package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/i474232898/weather-diary-sync/internal/cryptobox"
	"github.com/i474232898/weather-diary-sync/internal/diary"
	"github.com/sirupsen/logrus"
)

// ErrUnavailable marks any failure to reach the diary service. Callers
// treat it as a signal to degrade to local mode, not as data corruption.
var ErrUnavailable = errors.New("remote: service unavailable")

const (
	requestTimeout      = 10 * time.Second
	defaultPollInterval = 30 * time.Second
)

// Client talks to the diary service. Titles and contents are sealed
// before they leave the process and opened on the way back, so the
// service only ever stores ciphertext.
type Client struct {
	baseURL      string
	userID       string
	http         *http.Client
	box          *cryptobox.Box
	pollInterval time.Duration
}

// NewClient builds a client for one user. baseURL has no trailing slash.
func NewClient(baseURL, userID string, box *cryptobox.Box) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = requestTimeout
	rc.Logger = nil

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		userID:       userID,
		http:         rc.StandardClient(),
		box:          box,
		pollInterval: defaultPollInterval,
	}
}

func (c *Client) entriesURL() string {
	return fmt.Sprintf("%s/users/%s/diaries", c.baseURL, c.userID)
}

// Ping probes reachability without touching diary data.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// List fetches and decrypts every entry, newest first.
func (c *Client) List(ctx context.Context) ([]diary.Entry, error) {
	var entries []diary.Entry
	if err := c.do(ctx, http.MethodGet, c.entriesURL(), nil, &entries); err != nil {
		return nil, err
	}
	entries = c.box.DecryptList(c.userID, entries)
	diary.SortByTimestampDesc(entries)
	return entries, nil
}

// Count reports how many entries the service holds.
func (c *Client) Count(ctx context.Context) (int, error) {
	entries, err := c.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Save uploads one entry, sealed.
func (c *Client) Save(ctx context.Context, e diary.Entry) error {
	sealed, err := c.box.EncryptEntry(c.userID, e)
	if err != nil {
		return fmt.Errorf("seal entry: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.entriesURL(), sealed, nil)
}

// Update replaces one entry, sealed.
func (c *Client) Update(ctx context.Context, e diary.Entry) error {
	sealed, err := c.box.EncryptEntry(c.userID, e)
	if err != nil {
		return fmt.Errorf("seal entry: %w", err)
	}
	return c.do(ctx, http.MethodPut, c.entriesURL()+"/"+e.ID, sealed, nil)
}

// Delete removes one entry. A missing entry is success: the goal state
// is reached either way.
func (c *Client) Delete(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, c.entriesURL()+"/"+id, nil, nil)
	if err != nil && strings.Contains(err.Error(), "status 404") {
		return nil
	}
	return err
}

// Subscribe polls for changes and invokes cb with the fresh decrypted
// list each time the remote set differs from the last observation. The
// returned cancel func stops the watcher.
func (c *Client) Subscribe(cb func([]diary.Entry)) (cancel func()) {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()

		var lastSeen string
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}

			ctx, cancelReq := context.WithTimeout(context.Background(), requestTimeout)
			entries, err := c.List(ctx)
			cancelReq()
			if err != nil {
				logrus.WithError(err).Debug("subscription poll failed")
				continue
			}
			seen := fingerprint(entries)
			if seen == lastSeen {
				continue
			}
			lastSeen = seen
			cb(entries)
		}
	}()
	return func() { close(stop) }
}

func (c *Client) do(ctx context.Context, method, u string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("remote: status %d", resp.StatusCode)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func fingerprint(entries []diary.Entry) string {
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, fmt.Sprintf("%s@%d", e.ID, e.Timestamp))
	}
	sort.Strings(keys)
	return strings.Join(keys, "|")
}
