package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ya95-png/instarelay/internal/consts"
	"github.com/ya95-png/instarelay/internal/instagram"
	"github.com/ya95-png/instarelay/internal/logger"
)

// dispatchUpdate routes one inbound update. Called by the ingress consumer.
func (b *Bot) dispatchUpdate(update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return b.handleCallbackQuery(update.CallbackQuery)
	}
	if update.Message != nil {
		return b.handleMessage(update.Message)
	}
	logger.Debug("Update has no message or callback, skipping", map[string]interface{}{
		"update_id": update.UpdateID,
	})
	return nil
}

func (b *Bot) handleMessage(message *tgbotapi.Message) error {
	if message.Text == "" {
		return nil
	}

	if message.IsCommand() {
		return b.handleCommand(message)
	}

	if strings.Contains(message.Text, "instagram.com") {
		return b.handleInstagramLink(message)
	}

	b.sendResponse(message.Chat.ID, consts.MsgStartGreeting)
	return nil
}

func (b *Bot) handleCommand(message *tgbotapi.Message) error {
	switch message.Command() {
	case "start", "help":
		b.sendResponse(message.Chat.ID, consts.MsgStartGreeting)
	default:
		b.sendResponse(message.Chat.ID, consts.MsgStartGreeting)
	}
	return nil
}

// handleInstagramLink validates quota and rate limits, then enqueues a
// resolve job. All Instagram traffic happens in the job worker, never here.
func (b *Bot) handleInstagramLink(message *tgbotapi.Message) error {
	chatID := message.Chat.ID

	url, ok := instagram.ExtractURL(message.Text)
	if !ok {
		b.sendResponse(chatID, consts.MsgInvalidLink)
		return nil
	}
	if _, err := instagram.ShortcodeFromURL(url); err != nil {
		b.sendResponse(chatID, consts.MsgInvalidLink)
		return nil
	}

	if allowed, retryAfter := b.linkLimiter.Allow(chatID); !allowed {
		b.metrics.RecordRateLimitDenial("links")
		b.sendResponse(chatID, fmt.Sprintf(consts.MsgRateLimitedLinks, retryAfter))
		return nil
	}

	if !b.pending.TryAdmit(chatID) {
		b.metrics.RecordPendingDenial()
		b.sendResponse(chatID, consts.MsgTooManyPending)
		return nil
	}

	statusMessageID := b.sendResponseAndGetMessageID(chatID, consts.StatusReadingLink)

	job := &Job{
		Kind:            JobResolve,
		ChatID:          chatID,
		UserID:          chatID,
		Payload:         url,
		StatusMessageID: statusMessageID,
	}
	if err := b.jobs.Enqueue(job); err != nil {
		b.pending.Release(chatID)
		b.editMessage(chatID, statusMessageID, consts.MsgQueueBusy)
		return nil
	}

	logger.Info("Resolve job enqueued", map[string]interface{}{
		"chat_id": chatID,
		"url":     url,
	})
	return nil
}

func (b *Bot) handleCallbackQuery(callback *tgbotapi.CallbackQuery) error {
	if callback.Message == nil {
		return fmt.Errorf("callback %s has no message", callback.ID)
	}
	chatID := callback.Message.Chat.ID

	if b.isDuplicateCallback(callback.ID) {
		logger.Debug("Duplicate callback detected, skipping", map[string]interface{}{
			"callback_id": callback.ID,
		})
		// Still answer the callback to prevent the client-side spinner.
		b.rateLimitedRequest(chatID, tgbotapi.NewCallback(callback.ID, ""))
		return nil
	}
	b.markCallbackProcessed(callback.ID)

	if _, err := b.rateLimitedRequest(chatID, tgbotapi.NewCallback(callback.ID, consts.MsgProcessingToast)); err != nil {
		logger.Error("Failed to answer callback query", map[string]interface{}{
			"error": err.Error(),
		})
	}

	var kind JobKind
	var shortcode string
	switch {
	case strings.HasPrefix(callback.Data, consts.CallbackDownloadPrefix):
		kind = JobDownload
		shortcode = strings.TrimPrefix(callback.Data, consts.CallbackDownloadPrefix)
	case strings.HasPrefix(callback.Data, consts.CallbackInfoPrefix):
		kind = JobInfo
		shortcode = strings.TrimPrefix(callback.Data, consts.CallbackInfoPrefix)
	default:
		return fmt.Errorf("unknown callback data %q", callback.Data)
	}

	// Callback payloads round-trip through Telegram clients; never trust them.
	if !instagram.ValidShortcode(shortcode) {
		b.sendResponse(chatID, consts.MsgInvalidLink)
		return nil
	}

	if allowed, retryAfter := b.actionLimiter.Allow(chatID); !allowed {
		b.metrics.RecordRateLimitDenial("actions")
		b.sendResponse(chatID, fmt.Sprintf(consts.MsgRateLimitedTaps, retryAfter))
		return nil
	}

	if !b.pending.TryAdmit(chatID) {
		b.metrics.RecordPendingDenial()
		b.sendResponse(chatID, consts.MsgTooManyPending)
		return nil
	}

	statusText := consts.StatusDownloading
	if kind == JobInfo {
		statusText = consts.StatusFetchingInfo
	}
	statusMessageID := b.sendResponseAndGetMessageID(chatID, statusText)

	job := &Job{
		Kind:            kind,
		ChatID:          chatID,
		UserID:          chatID,
		Payload:         shortcode,
		StatusMessageID: statusMessageID,
	}
	if err := b.jobs.Enqueue(job); err != nil {
		b.pending.Release(chatID)
		b.editMessage(chatID, statusMessageID, consts.MsgQueueBusy)
		return nil
	}

	logger.Info("Job enqueued from callback", map[string]interface{}{
		"kind":      kind.String(),
		"chat_id":   chatID,
		"shortcode": shortcode,
	})
	return nil
}
