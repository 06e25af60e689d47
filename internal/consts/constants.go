package consts

// Callback data prefixes
const (
	CallbackDownloadPrefix = "dl_"
	CallbackInfoPrefix     = "info_"
)

// Button Labels with Emojis
const (
	ButtonDownload = "📥 Download"
	ButtonInfo     = "ℹ️ Info"
)

// Status message phases
const (
	StatusReadingLink  = "⏳ Reading link..."
	StatusChooseAction = "Choose what to do with this post:"
	StatusDownloading  = "⏳ Downloading..."
	StatusFetchingInfo = "⏳ Fetching post info..."
	StatusSent         = "✅ Sent"
)

// User-facing error messages
const (
	MsgInvalidLink      = "❌ That doesn't look like an Instagram post link. Send a link to a public post, reel or IGTV."
	MsgUnreadableLink   = "⚠️ Couldn't read that link. Make sure the post is public."
	MsgPrivatePost      = "⚠️ This post is private or unavailable."
	MsgLoginRequired    = "⚠️ Instagram refused the request (login required). Try again later."
	MsgDownloadFailed   = "⚠️ Download failed. Try another link or make sure the post is public."
	MsgNoExtractable    = "⚠️ No downloadable files found in this post."
	MsgTooManyPending   = "⏳ You already have requests in progress. Wait for them to finish first."
	MsgQueueBusy        = "⚠️ The bot is busy right now, try again in a minute."
	MsgProcessingToast  = "Processing..."
	MsgStartGreeting    = "👋 Hi!\nSend me an Instagram link (post, reel or IGTV) and I'll fetch it for you."
	MsgRateLimitedLinks = "🚦 Too many links. Try again in %d seconds."
	MsgRateLimitedTaps  = "🚦 Too many taps. Try again in %d seconds."
)

// Limits
const (
	// Telegram caps media groups at 10 items per sendMediaGroup call.
	MaxAlbumItems = 10
)
