// Package instagram resolves post links to their media and downloads the
// underlying resources. It talks to Instagram's public web endpoints with
// browser-like headers; anything requiring a logged-in session is reported
// as a typed error rather than retried.
package instagram

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/ya95-png/instarelay/internal/logger"
)

const defaultBaseURL = "https://www.instagram.com"

var (
	linkPattern      = regexp.MustCompile(`https?://(?:www\.)?instagram\.com/[^\s]+`)
	shortcodePattern = regexp.MustCompile(`/(?:p|reels|reel|tv)/([A-Za-z0-9_-]+)`)
	codeOnlyPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ExtractURL pulls the first Instagram URL out of free-form message text,
// stripping trailing punctuation users tend to paste along.
func ExtractURL(text string) (string, bool) {
	m := linkPattern.FindString(text)
	if m == "" {
		return "", false
	}
	return strings.TrimRight(m, ").,!?"), true
}

// ShortcodeFromURL extracts the stable post identifier from a post, reel or
// IGTV link.
func ShortcodeFromURL(rawURL string) (string, error) {
	m := shortcodePattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", &Error{
			Type:    ErrorTypeParsing,
			Message: fmt.Sprintf("no post shortcode in %q", rawURL),
		}
	}
	return m[1], nil
}

// ValidShortcode reports whether s is a well-formed shortcode. Callback
// payloads round-trip through Telegram, so this guards against tampering.
func ValidShortcode(s string) bool {
	return s != "" && len(s) <= 64 && codeOnlyPattern.MatchString(s)
}

// Client fetches post metadata and media resources.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
}

// NewClient creates a client with browser-like headers and the given
// request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			"Accept":          "application/json",
			"Accept-Language": "en-US,en;q=0.9",
		},
	}
}

// SetBaseURL overrides the endpoint root, used by tests.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = strings.TrimRight(base, "/")
}

// FetchPost resolves a shortcode to post metadata.
func (c *Client) FetchPost(shortcode string) (*Post, error) {
	endpoint := fmt.Sprintf("%s/p/%s/?__a=1&__d=dis", c.baseURL, shortcode)

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &Error{Type: ErrorTypeNetwork, Message: err.Error()}
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Type: ErrorTypeNetwork, Message: fmt.Sprintf("network error: %v", err)}
	}
	defer resp.Body.Close()

	logger.Debug("Post metadata request completed", map[string]interface{}{
		"shortcode": shortcode,
		"status":    resp.StatusCode,
		"duration":  time.Since(start).String(),
	})

	// Instagram redirects anonymous clients to the login page for gated posts.
	if strings.Contains(resp.Request.URL.Path, "/accounts/login") {
		return nil, &Error{Type: ErrorTypeLoginRequired, Message: "redirected to login page", Code: resp.StatusCode}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &Error{Type: ErrorTypeNotFound, Message: "post not found", Code: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{Type: ErrorTypeRateLimit, Message: "rate limited by Instagram", Code: resp.StatusCode}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &Error{Type: ErrorTypeLoginRequired, Message: "access denied", Code: resp.StatusCode}
	case resp.StatusCode >= 500:
		return nil, &Error{Type: ErrorTypeServerError, Message: "server error", Code: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return nil, &Error{Type: ErrorTypeNetwork, Message: "unexpected status", Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Type: ErrorTypeNetwork, Message: fmt.Sprintf("reading body: %v", err)}
	}

	var payload postResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &Error{Type: ErrorTypeParsing, Message: fmt.Sprintf("decoding response: %v", err)}
	}
	if payload.RequiresToLogin {
		return nil, &Error{Type: ErrorTypeLoginRequired, Message: "post requires login", Code: resp.StatusCode}
	}

	media := payload.Graphql.ShortcodeMedia
	if media.ID == "" {
		return nil, &Error{Type: ErrorTypePrivate, Message: "post is private or unavailable", Code: resp.StatusCode}
	}

	post := &Post{
		ID:            media.ID,
		Shortcode:     media.Shortcode,
		OwnerUsername: media.Owner.Username,
		Likes:         media.LikeEdge.Count,
		Comments:      media.CommentEdge.Count,
		IsVideo:       media.IsVideo,
		DisplayURL:    media.DisplayURL,
		VideoURL:      media.VideoURL,
	}
	for _, edge := range media.Sidecar.Edges {
		post.Items = append(post.Items, MediaItem{
			URL:     edge.Node.sourceURL(),
			IsVideo: edge.Node.IsVideo,
		})
	}

	return post, nil
}

func (n sidecarNode) sourceURL() string {
	if n.IsVideo && n.VideoURL != "" {
		return n.VideoURL
	}
	return n.DisplayURL
}

// DownloadResource fetches a media URL into dir and returns the file path.
// The caller owns the file and is responsible for removing it.
func (c *Client) DownloadResource(resourceURL, dir string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, resourceURL, nil)
	if err != nil {
		return "", &Error{Type: ErrorTypeNetwork, Message: err.Error()}
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Type: ErrorTypeNetwork, Message: fmt.Sprintf("network error: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &Error{Type: ErrorTypeNetwork, Message: "unexpected status downloading resource", Code: resp.StatusCode}
	}

	filename := resourceFilename(resourceURL)
	out, err := os.CreateTemp(dir, "ig-*-"+filename)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("writing %s: %w", out.Name(), err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("closing %s: %w", out.Name(), err)
	}

	logger.Debug("Resource downloaded", map[string]interface{}{
		"url":  resourceURL,
		"path": out.Name(),
	})

	return out.Name(), nil
}

// resourceFilename derives a safe local filename from a media URL.
func resourceFilename(resourceURL string) string {
	u, err := url.Parse(resourceURL)
	if err != nil {
		return "media"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "media"
	}
	return name
}
