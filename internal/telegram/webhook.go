package telegram

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ya95-png/instarelay/internal/logger"
)

// registerWebhook points Telegram at the public webhook URL. A failure is
// logged but not fatal; long polling remains available as a fallback mode.
func (b *Bot) registerWebhook() {
	b.removeWebhook()

	wh, err := tgbotapi.NewWebhook(b.config.WebhookURL())
	if err != nil {
		logger.Error("Failed to build webhook config", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	wh.AllowedUpdates = []string{"message", "callback_query"}

	if _, err := b.api.Request(wh); err != nil {
		logger.Error("Failed to register webhook", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	logger.Info("Webhook registered", map[string]interface{}{
		"url": b.config.WebhookURL(),
	})
}

func (b *Bot) removeWebhook() {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		logger.Warn("Failed to remove webhook", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// startWebhookServer serves the webhook endpoint plus liveness and metrics
// routes. It blocks until the listener fails.
func (b *Bot) startWebhookServer() error {
	mux := http.NewServeMux()
	mux.HandleFunc(b.config.WebhookPath(), b.handleWebhook)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "Bot is Alive!")
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         ":" + b.config.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info("Webhook server listening", map[string]interface{}{
		"port": b.config.Port,
	})
	return srv.ListenAndServe()
}

// handleWebhook validates and parses an incoming Telegram update and hands
// it to the ingress queue. A full queue still answers 200: failing the
// request would only make Telegram redeliver the same update.
func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		logger.Warn("Webhook request with wrong content type", map[string]interface{}{
			"content_type": r.Header.Get("Content-Type"),
			"remote_addr":  r.RemoteAddr,
		})
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		logger.Warn("Webhook body is not a Telegram update", map[string]interface{}{
			"error": err.Error(),
		})
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	b.metrics.RecordUpdateReceived("webhook")
	if err := b.ingress.Enqueue(update); err != nil {
		logger.Warn("Dropping webhook update", map[string]interface{}{
			"update_id": update.UpdateID,
			"error":     err.Error(),
		})
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}
