package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ya95-png/instarelay/internal/config"
	"github.com/ya95-png/instarelay/internal/instagram"
	"github.com/ya95-png/instarelay/internal/limiter"
	"github.com/ya95-png/instarelay/internal/logger"
	"github.com/ya95-png/instarelay/internal/metrics"
	"golang.org/x/time/rate"
)

// telegramSender is the slice of the Bot API the handlers need. The concrete
// *tgbotapi.BotAPI satisfies it; tests substitute a fake.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMediaGroup(cfg tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
}

type Bot struct {
	api     *tgbotapi.BotAPI
	sender  telegramSender
	config  *config.Config
	insta   *instagram.Client
	metrics *metrics.Collector

	// Per-user admission controls
	linkLimiter   *limiter.Window
	actionLimiter *limiter.Window
	pending       *limiter.PendingTracker

	// Consumer loops
	ingress *UpdateQueue
	jobs    *JobQueue

	// Base directory for per-job temp dirs; empty means the system default.
	tempDir string

	// Outbound Telegram API throttling
	globalLimiter  *rate.Limiter
	userLimiters   map[int64]*rate.Limiter
	userLimitersMu sync.RWMutex

	// Callback deduplication
	processedCallbacks map[string]time.Time
	callbacksMu        sync.RWMutex
}

func NewBot(cfg *config.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	b := &Bot{
		api:     api,
		sender:  api,
		config:  cfg,
		insta:   instagram.NewClient(30 * time.Second),
		metrics: metrics.NewCollector(),

		linkLimiter:   limiter.NewWindow(cfg.LinkRateCapacity, cfg.RateWindow),
		actionLimiter: limiter.NewWindow(cfg.ActionRateCapacity, cfg.RateWindow),
		pending:       limiter.NewPendingTracker(cfg.PendingCap),

		// Telegram allows about 30 messages per second overall and is
		// stricter per chat.
		globalLimiter: rate.NewLimiter(rate.Limit(30), 30),
		userLimiters:  make(map[int64]*rate.Limiter),

		processedCallbacks: make(map[string]time.Time),
	}

	b.ingress = NewUpdateQueue(b, b.metrics, 256)
	b.jobs = NewJobQueue(b, b.pending, b.metrics, 128, cfg.JobCooldownMin, cfg.JobCooldownMax)

	return b, nil
}

// Start launches the consumer loops and then blocks serving updates, either
// from the webhook HTTP listener or from long polling.
func (b *Bot) Start() error {
	logger.Info("Bot authorized and starting", map[string]interface{}{
		"username":     b.api.Self.UserName,
		"polling_mode": b.config.PollingMode,
		"pending_cap":  b.config.PendingCap,
		"rate_window":  b.config.RateWindow.String(),
	})

	if err := b.ingress.Start(); err != nil {
		return err
	}
	if err := b.jobs.Start(); err != nil {
		return err
	}

	if b.config.PollingMode {
		b.removeWebhook()
		return b.pollUpdates()
	}

	b.registerWebhook()
	return b.startWebhookServer()
}

// Stop shuts down the consumer loops cooperatively.
func (b *Bot) Stop() error {
	logger.InfoMsg("Stopping bot...")

	var firstErr error
	if b.ingress != nil {
		if err := b.ingress.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if b.jobs != nil {
		if err := b.jobs.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if firstErr == nil {
		logger.InfoMsg("Bot stopped successfully")
	}
	return firstErr
}

// pollUpdates feeds long-polled updates into the ingress queue.
func (b *Bot) pollUpdates() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := b.api.GetUpdatesChan(u)
	for update := range updates {
		b.metrics.RecordUpdateReceived("polling")
		if err := b.ingress.Enqueue(update); err != nil {
			logger.Warn("Failed to enqueue polled update", map[string]interface{}{
				"update_id": update.UpdateID,
				"error":     err.Error(),
			})
		}
	}
	return nil
}

// Outbound rate limiting (global + per-chat)

// getUserRateLimiter gets or creates an outbound limiter for a chat.
func (b *Bot) getUserRateLimiter(chatID int64) *rate.Limiter {
	b.userLimitersMu.RLock()
	lim, exists := b.userLimiters[chatID]
	b.userLimitersMu.RUnlock()

	if !exists {
		b.userLimitersMu.Lock()
		// Double-check in case another goroutine created it
		if lim, exists = b.userLimiters[chatID]; !exists {
			// Telegram tolerates roughly one message per second per chat.
			lim = rate.NewLimiter(rate.Limit(1), 3)
			b.userLimiters[chatID] = lim
		}
		b.userLimitersMu.Unlock()
	}

	return lim
}

// rateLimitedSend sends a message after clearing both outbound limiters.
func (b *Bot) rateLimitedSend(chatID int64, msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := b.globalLimiter.Wait(context.Background()); err != nil {
		return tgbotapi.Message{}, fmt.Errorf("global rate limiter error: %w", err)
	}
	if err := b.getUserRateLimiter(chatID).Wait(context.Background()); err != nil {
		return tgbotapi.Message{}, fmt.Errorf("user rate limiter error: %w", err)
	}

	return b.sender.Send(msg)
}

// rateLimitedRequest answers callback queries after clearing the limiters.
func (b *Bot) rateLimitedRequest(chatID int64, req tgbotapi.CallbackConfig) (*tgbotapi.APIResponse, error) {
	if err := b.globalLimiter.Wait(context.Background()); err != nil {
		return nil, fmt.Errorf("global rate limiter error: %w", err)
	}
	if err := b.getUserRateLimiter(chatID).Wait(context.Background()); err != nil {
		return nil, fmt.Errorf("user rate limiter error: %w", err)
	}

	return b.sender.Request(req)
}

// rateLimitedSendMediaGroup sends an album after clearing the limiters.
func (b *Bot) rateLimitedSendMediaGroup(chatID int64, cfg tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error) {
	if err := b.globalLimiter.Wait(context.Background()); err != nil {
		return nil, fmt.Errorf("global rate limiter error: %w", err)
	}
	if err := b.getUserRateLimiter(chatID).Wait(context.Background()); err != nil {
		return nil, fmt.Errorf("user rate limiter error: %w", err)
	}

	return b.sender.SendMediaGroup(cfg)
}

// Send helpers

func (b *Bot) sendResponse(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.rateLimitedSend(chatID, msg); err != nil {
		logger.Error("Failed to send message", map[string]interface{}{
			"error":   err.Error(),
			"chat_id": chatID,
		})
	}
}

func (b *Bot) sendResponseAndGetMessageID(chatID int64, text string) int {
	msg := tgbotapi.NewMessage(chatID, text)
	response, err := b.rateLimitedSend(chatID, msg)
	if err != nil {
		logger.Error("Failed to send message", map[string]interface{}{
			"error":   err.Error(),
			"chat_id": chatID,
		})
		return 0
	}
	return response.MessageID
}

func (b *Bot) editMessage(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := b.rateLimitedSend(chatID, edit); err != nil {
		logger.Error("Failed to edit message", map[string]interface{}{
			"error":      err.Error(),
			"chat_id":    chatID,
			"message_id": messageID,
		})
	}
}

func (b *Bot) editMessageWithKeyboard(chatID int64, messageID int, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, keyboard)
	if _, err := b.rateLimitedSend(chatID, edit); err != nil {
		logger.Error("Failed to edit message with keyboard", map[string]interface{}{
			"error":      err.Error(),
			"chat_id":    chatID,
			"message_id": messageID,
		})
	}
}

// notifyJobFailure is the worker's report-and-continue helper: it attempts a
// user notification and swallows any failure of the notification itself.
func (b *Bot) notifyJobFailure(chatID int64, err error) {
	b.sendResponse(chatID, fmt.Sprintf("⚠️ Something went wrong:\n%v", err))
}

// Callback deduplication (Telegram redelivers callbacks on slow answers)

func (b *Bot) isDuplicateCallback(callbackID string) bool {
	b.callbacksMu.RLock()
	_, exists := b.processedCallbacks[callbackID]
	b.callbacksMu.RUnlock()
	return exists
}

func (b *Bot) markCallbackProcessed(callbackID string) {
	b.callbacksMu.Lock()
	b.processedCallbacks[callbackID] = time.Now()
	b.callbacksMu.Unlock()

	// Forget the ID after 30 seconds to keep the map bounded.
	go func() {
		time.Sleep(30 * time.Second)
		b.callbacksMu.Lock()
		delete(b.processedCallbacks, callbackID)
		b.callbacksMu.Unlock()
	}()
}
