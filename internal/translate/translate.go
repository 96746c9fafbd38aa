// Package translate localizes provider text best-effort: a local dictionary
// first, then external translation services in sequence, each with its own
// timeout. Total failure returns the input unchanged.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// Domain selects which local dictionary is consulted first.
type Domain int

const (
	DomainWeather Domain = iota
	DomainLocation
)

// CacheTTL bounds how long a service translation is reused.
const CacheTTL = 24 * time.Hour

const (
	myMemoryTimeout = 5 * time.Second
	libreTimeout    = 8 * time.Second
)

const maxResultLen = 50

var quoteTrim = regexp.MustCompile(`^["']|["']$`)
var spaceFold = regexp.MustCompile(`\s+`)

type cached struct {
	result string
	at     time.Time
}

// Translator is safe for concurrent use.
type Translator struct {
	client *http.Client
	now    func() time.Time

	// Overridable in tests; default to the public endpoints.
	MyMemoryURL string
	LibreURL    string

	mu    sync.Mutex
	cache map[string]cached
}

// New builds a translator over the given HTTP client (nil for the default).
func New(client *http.Client) *Translator {
	if client == nil {
		client = http.DefaultClient
	}
	return &Translator{
		client:      client,
		now:         time.Now,
		MyMemoryURL: "https://api.mymemory.translated.net/get",
		LibreURL:    "https://libretranslate.de/translate",
		cache:       make(map[string]cached),
	}
}

// Translate localizes text for the domain. It never fails: on total miss the
// original text comes back unchanged.
func (t *Translator) Translate(ctx context.Context, text string, domain Domain) string {
	if text == "" {
		return text
	}

	if hit := lookupDict(text, domain); hit != "" {
		return hit
	}

	cacheKey := fmt.Sprintf("%d_%s", domain, text)
	t.mu.Lock()
	if c, ok := t.cache[cacheKey]; ok && t.now().Sub(c.at) < CacheTTL {
		t.mu.Unlock()
		return c.result
	}
	t.mu.Unlock()

	for _, svc := range []func(context.Context, string) (string, error){t.myMemory, t.libre} {
		translated, err := svc(ctx, text)
		if err != nil || translated == "" || translated == text {
			continue
		}
		translated = cleanResult(translated)
		t.mu.Lock()
		t.cache[cacheKey] = cached{result: translated, at: t.now()}
		t.mu.Unlock()
		return translated
	}

	if domain == DomainLocation {
		return rewriteSuffix(text)
	}
	return text
}

func lookupDict(text string, domain Domain) string {
	switch domain {
	case DomainWeather:
		if hit, ok := weatherTerms[text]; ok {
			return hit
		}
	case DomainLocation:
		if hit, ok := locationNames[text]; ok {
			return hit
		}
	}
	return ""
}

func (t *Translator) myMemory(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, myMemoryTimeout)
	defer cancel()

	u := fmt.Sprintf("%s?q=%s&langpair=en|zh", t.MyMemoryURL, url.QueryEscape(text))
	body, err := t.get(ctx, u)
	if err != nil {
		return "", err
	}

	if gjson.GetBytes(body, "responseStatus").Int() != 200 {
		return "", fmt.Errorf("mymemory: bad response status")
	}
	return gjson.GetBytes(body, "responseData.translatedText").String(), nil
}

func (t *Translator) libre(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, libreTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{
		"q":      text,
		"source": "en",
		"target": "zh",
		"format": "text",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.LibreURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("libretranslate: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(body, "translatedText").String(), nil
}

func (t *Translator) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("translate: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func cleanResult(s string) string {
	s = strings.TrimSpace(s)
	s = quoteTrim.ReplaceAllString(s, "")
	s = spaceFold.ReplaceAllString(s, " ")
	if runes := []rune(s); len(runes) > maxResultLen {
		s = string(runes[:maxResultLen])
	}
	return s
}

func rewriteSuffix(name string) string {
	for _, r := range suffixRewrites {
		if strings.HasSuffix(name, r.suffix) {
			return strings.TrimSuffix(name, r.suffix) + r.repl
		}
	}
	return name
}

// FormatLocation joins the non-empty parts with a comma separator, falling
// back to a placeholder so empty geocode results never render as ", ".
func FormatLocation(parts ...string) string {
	valid := parts[:0:0]
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return "未知位置"
	}
	return strings.Join(valid, ", ")
}
