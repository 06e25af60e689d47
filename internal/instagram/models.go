package instagram

// postResponse is the top-level payload returned by the post endpoint.
type postResponse struct {
	RequiresToLogin bool    `json:"requires_to_login"`
	Graphql         graphql `json:"graphql"`
	Status          string  `json:"status"`
}

type graphql struct {
	ShortcodeMedia shortcodeMedia `json:"shortcode_media"`
}

// shortcodeMedia is a single post as Instagram describes it.
type shortcodeMedia struct {
	ID          string    `json:"id"`
	Typename    string    `json:"__typename"`
	Shortcode   string    `json:"shortcode"`
	DisplayURL  string    `json:"display_url"`
	VideoURL    string    `json:"video_url"`
	IsVideo     bool      `json:"is_video"`
	Owner       owner     `json:"owner"`
	LikeEdge    countEdge `json:"edge_media_preview_like"`
	CommentEdge countEdge `json:"edge_media_to_parent_comment"`
	Sidecar     sidecar   `json:"edge_sidecar_to_children"`
}

type owner struct {
	Username string `json:"username"`
}

type countEdge struct {
	Count int `json:"count"`
}

type sidecar struct {
	Edges []sidecarEdge `json:"edges"`
}

type sidecarEdge struct {
	Node sidecarNode `json:"node"`
}

type sidecarNode struct {
	ID         string `json:"id"`
	DisplayURL string `json:"display_url"`
	VideoURL   string `json:"video_url"`
	IsVideo    bool   `json:"is_video"`
}

// Post is the resolved view of a single Instagram post that the rest of the
// bot works with.
type Post struct {
	ID            string
	Shortcode     string
	OwnerUsername string
	Likes         int
	Comments      int
	IsVideo       bool
	DisplayURL    string
	VideoURL      string
	Items         []MediaItem // populated for sidecar (album) posts
}

// MediaItem is one downloadable resource inside a post.
type MediaItem struct {
	URL     string
	IsVideo bool
}

// IsAlbum reports whether the post is a multi-item carousel.
func (p *Post) IsAlbum() bool {
	return len(p.Items) > 1
}

// SourceURL returns the best downloadable URL for a single-item post.
// It returns an empty string when the post has no usable source.
func (p *Post) SourceURL() string {
	if p.IsVideo && p.VideoURL != "" {
		return p.VideoURL
	}
	return p.DisplayURL
}
