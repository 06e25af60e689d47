package telegram

import (
	"fmt"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ya95-png/instarelay/internal/consts"
	"github.com/ya95-png/instarelay/internal/instagram"
	"github.com/ya95-png/instarelay/internal/logger"
)

// executeJob runs one queued job. Called by the job worker. Handlers report
// their failures to the user through the status message and return nil; a
// non-nil error means the user has not been told yet and the worker should
// notify them.
func (b *Bot) executeJob(job *Job) error {
	switch job.Kind {
	case JobResolve:
		return b.executeResolve(job)
	case JobDownload:
		return b.executeDownload(job)
	case JobInfo:
		return b.executeInfo(job)
	default:
		return fmt.Errorf("unknown job kind %d", job.Kind)
	}
}

// executeResolve turns a raw URL into a shortcode, verifies the post is
// reachable and presents the download/info choice on the status message.
func (b *Bot) executeResolve(job *Job) error {
	shortcode, err := instagram.ShortcodeFromURL(job.Payload)
	if err != nil {
		b.editMessage(job.ChatID, job.StatusMessageID, consts.MsgInvalidLink)
		return nil
	}

	post, err := b.insta.FetchPost(shortcode)
	if err != nil {
		b.editMessage(job.ChatID, job.StatusMessageID, failureMessage(err))
		return nil
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(consts.ButtonDownload, consts.CallbackDownloadPrefix+post.Shortcode),
			tgbotapi.NewInlineKeyboardButtonData(consts.ButtonInfo, consts.CallbackInfoPrefix+post.Shortcode),
		),
	)
	b.editMessageWithKeyboard(job.ChatID, job.StatusMessageID, consts.StatusChooseAction, keyboard)

	logger.Info("Link resolved", map[string]interface{}{
		"chat_id":   job.ChatID,
		"shortcode": post.Shortcode,
		"is_album":  post.IsAlbum(),
	})
	return nil
}

// executeDownload fetches the post media and relays it to the chat. Every
// temporary file is removed on all exit paths, including send failures.
func (b *Bot) executeDownload(job *Job) error {
	post, err := b.insta.FetchPost(job.Payload)
	if err != nil {
		b.editMessage(job.ChatID, job.StatusMessageID, failureMessage(err))
		return nil
	}

	tmpDir, err := os.MkdirTemp(b.tempDir, "igdl-")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if post.IsAlbum() {
		b.relayAlbum(job, post, tmpDir)
		return nil
	}
	b.relaySingle(job, post, tmpDir)
	return nil
}

func (b *Bot) relaySingle(job *Job, post *instagram.Post, tmpDir string) {
	sourceURL := post.SourceURL()
	if sourceURL == "" {
		b.editMessage(job.ChatID, job.StatusMessageID, consts.MsgNoExtractable)
		return
	}

	path, err := b.insta.DownloadResource(sourceURL, tmpDir)
	if err != nil {
		b.editMessage(job.ChatID, job.StatusMessageID, failureMessage(err))
		return
	}

	var msg tgbotapi.Chattable
	if post.IsVideo {
		video := tgbotapi.NewVideo(job.ChatID, tgbotapi.FilePath(path))
		video.Caption = consts.StatusSent
		msg = video
	} else {
		photo := tgbotapi.NewPhoto(job.ChatID, tgbotapi.FilePath(path))
		photo.Caption = consts.StatusSent
		msg = photo
	}

	if _, err := b.rateLimitedSend(job.ChatID, msg); err != nil {
		b.sendResponse(job.ChatID, fmt.Sprintf("⚠️ Sending failed:\n%v", err))
		b.editMessage(job.ChatID, job.StatusMessageID, consts.MsgDownloadFailed)
		return
	}

	b.editMessage(job.ChatID, job.StatusMessageID, consts.StatusSent)
}

func (b *Bot) relayAlbum(job *Job, post *instagram.Post, tmpDir string) {
	items := post.Items
	if len(items) > consts.MaxAlbumItems {
		items = items[:consts.MaxAlbumItems]
	}

	var files []albumFile
	for _, item := range items {
		if item.URL == "" {
			continue
		}
		path, err := b.insta.DownloadResource(item.URL, tmpDir)
		if err != nil {
			logger.Warn("Skipping album item", map[string]interface{}{
				"chat_id": job.ChatID,
				"url":     item.URL,
				"error":   err.Error(),
			})
			continue
		}
		files = append(files, albumFile{path: path, isVideo: item.IsVideo})
	}

	if len(files) == 0 {
		b.editMessage(job.ChatID, job.StatusMessageID, consts.MsgNoExtractable)
		return
	}

	group := tgbotapi.MediaGroupConfig{
		ChatID: job.ChatID,
		Media:  buildMediaGroup(files, consts.StatusSent),
	}
	if _, err := b.rateLimitedSendMediaGroup(job.ChatID, group); err != nil {
		b.sendResponse(job.ChatID, fmt.Sprintf("⚠️ Sending failed:\n%v", err))
		b.editMessage(job.ChatID, job.StatusMessageID, consts.MsgDownloadFailed)
		return
	}

	b.editMessage(job.ChatID, job.StatusMessageID, consts.StatusSent)
}

type albumFile struct {
	path    string
	isVideo bool
}

// buildMediaGroup assembles the sendMediaGroup payload. Telegram shows a
// media group's caption from its first item, so only that one carries it.
func buildMediaGroup(files []albumFile, caption string) []interface{} {
	media := make([]interface{}, 0, len(files))
	for i, f := range files {
		itemCaption := ""
		if i == 0 {
			itemCaption = caption
		}
		if f.isVideo {
			video := tgbotapi.NewInputMediaVideo(tgbotapi.FilePath(f.path))
			video.Caption = itemCaption
			media = append(media, video)
		} else {
			photo := tgbotapi.NewInputMediaPhoto(tgbotapi.FilePath(f.path))
			photo.Caption = itemCaption
			media = append(media, photo)
		}
	}
	return media
}

// executeInfo edits the status message into a compact post summary.
func (b *Bot) executeInfo(job *Job) error {
	post, err := b.insta.FetchPost(job.Payload)
	if err != nil {
		b.editMessage(job.ChatID, job.StatusMessageID, failureMessage(err))
		return nil
	}

	summary := fmt.Sprintf("👤 Posted by: %s\n❤️ Likes: %d\n💬 Comments: %d",
		post.OwnerUsername, post.Likes, post.Comments)
	b.editMessage(job.ChatID, job.StatusMessageID, summary)
	return nil
}

// failureMessage maps a resolver error to the user-facing phrasing.
func failureMessage(err error) string {
	switch instagram.TypeOf(err) {
	case instagram.ErrorTypeNotFound, instagram.ErrorTypePrivate:
		return consts.MsgPrivatePost
	case instagram.ErrorTypeLoginRequired, instagram.ErrorTypeRateLimit:
		return consts.MsgLoginRequired
	case instagram.ErrorTypeParsing:
		return consts.MsgUnreadableLink
	default:
		return fmt.Sprintf("⚠️ %v", err)
	}
}
