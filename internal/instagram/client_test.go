package instagram

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func TestExtractURL(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
		found    bool
	}{
		{
			name:     "bare link",
			text:     "https://www.instagram.com/p/Cabc123_-/",
			expected: "https://www.instagram.com/p/Cabc123_-/",
			found:    true,
		},
		{
			name:     "link inside message",
			text:     "look at this https://instagram.com/reel/Xyz789 so cool",
			expected: "https://instagram.com/reel/Xyz789",
			found:    true,
		},
		{
			name:     "trailing punctuation stripped",
			text:     "https://www.instagram.com/p/Cabc123/!?",
			expected: "https://www.instagram.com/p/Cabc123/",
			found:    true,
		},
		{
			name:  "no link",
			text:  "hello there",
			found: false,
		},
		{
			name:  "empty text",
			text:  "",
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractURL(tt.text)
			if ok != tt.found {
				t.Fatalf("found = %v, want %v", ok, tt.found)
			}
			if ok && got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestShortcodeFromURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
		wantErr  bool
	}{
		{name: "post", url: "https://www.instagram.com/p/Cabc123_-/", expected: "Cabc123_-"},
		{name: "reel", url: "https://www.instagram.com/reel/Xyz789/", expected: "Xyz789"},
		{name: "reels plural", url: "https://instagram.com/reels/Qwe456", expected: "Qwe456"},
		{name: "igtv", url: "https://www.instagram.com/tv/Tv0001/", expected: "Tv0001"},
		{name: "profile link", url: "https://www.instagram.com/someuser/", wantErr: true},
		{name: "not instagram at all", url: "https://example.com/p/abc", expected: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ShortcodeFromURL(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if TypeOf(err) != ErrorTypeParsing {
					t.Errorf("expected parsing error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestValidShortcode(t *testing.T) {
	valid := []string{"Cabc123_-", "X", "abc_DEF-123"}
	for _, s := range valid {
		if !ValidShortcode(s) {
			t.Errorf("%q should be valid", s)
		}
	}

	invalid := []string{"", "has space", "semi;colon", "slash/code", "a\nb"}
	for _, s := range invalid {
		if ValidShortcode(s) {
			t.Errorf("%q should be invalid", s)
		}
	}
}

const singlePhotoFixture = `{
  "graphql": {
    "shortcode_media": {
      "id": "314159",
      "__typename": "GraphImage",
      "shortcode": "Cabc123",
      "display_url": "https://cdn.example.com/photo.jpg",
      "is_video": false,
      "owner": {"username": "someuser"},
      "edge_media_preview_like": {"count": 42},
      "edge_media_to_parent_comment": {"count": 7}
    }
  },
  "status": "ok"
}`

const albumFixture = `{
  "graphql": {
    "shortcode_media": {
      "id": "271828",
      "__typename": "GraphSidecar",
      "shortcode": "Calbum1",
      "display_url": "https://cdn.example.com/cover.jpg",
      "is_video": false,
      "owner": {"username": "albumuser"},
      "edge_media_preview_like": {"count": 10},
      "edge_media_to_parent_comment": {"count": 2},
      "edge_sidecar_to_children": {
        "edges": [
          {"node": {"id": "1", "display_url": "https://cdn.example.com/1.jpg", "is_video": false}},
          {"node": {"id": "2", "display_url": "https://cdn.example.com/2.jpg", "video_url": "https://cdn.example.com/2.mp4", "is_video": true}},
          {"node": {"id": "3", "display_url": "https://cdn.example.com/3.jpg", "is_video": false}}
        ]
      }
    }
  },
  "status": "ok"
}`

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(5 * time.Second)
	client.SetBaseURL(server.URL)
	return client, server
}

func TestFetchPostSinglePhoto(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/p/Cabc123/" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fmt.Fprint(w, singlePhotoFixture)
	}))
	defer server.Close()

	post, err := client.FetchPost("Cabc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if post.OwnerUsername != "someuser" {
		t.Errorf("owner = %q", post.OwnerUsername)
	}
	if post.Likes != 42 || post.Comments != 7 {
		t.Errorf("likes/comments = %d/%d", post.Likes, post.Comments)
	}
	if post.IsAlbum() {
		t.Error("single photo should not be an album")
	}
	if post.SourceURL() != "https://cdn.example.com/photo.jpg" {
		t.Errorf("source = %q", post.SourceURL())
	}
}

func TestFetchPostAlbum(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, albumFixture)
	}))
	defer server.Close()

	post, err := client.FetchPost("Calbum1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !post.IsAlbum() {
		t.Fatal("expected album")
	}
	if len(post.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(post.Items))
	}
	if !post.Items[1].IsVideo || post.Items[1].URL != "https://cdn.example.com/2.mp4" {
		t.Errorf("video item should use video_url, got %+v", post.Items[1])
	}
	if post.Items[0].URL != "https://cdn.example.com/1.jpg" {
		t.Errorf("photo item should use display_url, got %+v", post.Items[0])
	}
}

func TestFetchPostErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected ErrorType
	}{
		{name: "not found", status: http.StatusNotFound, expected: ErrorTypeNotFound},
		{name: "rate limited", status: http.StatusTooManyRequests, expected: ErrorTypeRateLimit},
		{name: "forbidden", status: http.StatusForbidden, expected: ErrorTypeLoginRequired},
		{name: "server error", status: http.StatusInternalServerError, expected: ErrorTypeServerError},
		{name: "garbage body", status: http.StatusOK, body: "<html>nope</html>", expected: ErrorTypeParsing},
		{name: "requires login", status: http.StatusOK, body: `{"requires_to_login": true}`, expected: ErrorTypeLoginRequired},
		{name: "empty media", status: http.StatusOK, body: `{"graphql": {"shortcode_media": {}}}`, expected: ErrorTypePrivate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := client.FetchPost("Cabc123")
			if err == nil {
				t.Fatal("expected error")
			}
			if TypeOf(err) != tt.expected {
				t.Errorf("expected %s error, got %v", tt.expected, err)
			}
		})
	}
}

func TestDownloadResource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("media-bytes"))
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	dir := t.TempDir()

	path, err := client.DownloadResource(server.URL+"/photo.jpg", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(data) != "media-bytes" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestDownloadResourceBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	dir := t.TempDir()

	if _, err := client.DownloadResource(server.URL+"/gone.jpg", dir); err == nil {
		t.Fatal("expected error for non-200 response")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("no files should remain after failed download, found %d", len(entries))
	}
}
