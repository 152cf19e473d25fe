package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wallet-alerts/internal/event"
)

// ToastSink renders a payment event to the user. Implementations own their
// dismissal lifecycle; the engine hands over the event and forgets it.
type ToastSink interface {
	Show(ctx context.Context, ev event.PaymentEvent) error
}

// ConsoleToaster 将通知写入结构化日志，作为默认的展示通道。
type ConsoleToaster struct {
	logger zerolog.Logger
}

// NewConsoleToaster constructs the logging toast sink.
func NewConsoleToaster(logger zerolog.Logger) *ConsoleToaster {
	return &ConsoleToaster{logger: logger.With().Str("component", "toast_console").Logger()}
}

// Show logs the event at info level.
func (c *ConsoleToaster) Show(_ context.Context, ev event.PaymentEvent) error {
	entry := c.logger.Info().
		Str("type", string(ev.Type)).
		Str("symbol", ev.Symbol).
		Str("amount", ev.AmountFormatted).
		Str("address", ev.Address)
	if ev.TxID != "" {
		entry = entry.Str("txid", ev.TxID)
	}
	if ev.ValueUSD != nil {
		entry = entry.Str("value_usd", ev.ValueUSD.StringFixed(2))
	}
	entry.Msg("payment notification")
	return nil
}

// TelegramToaster 通过 Telegram Bot API 推送通知。
type TelegramToaster struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramToaster 构造 Telegram 通知器。
func NewTelegramToaster(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramToaster {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramToaster{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "toast_telegram").Logger(),
	}
}

// Show 调用 sendMessage API 推送文本。
func (t *TelegramToaster) Show(ctx context.Context, ev event.PaymentEvent) error {
	payload := map[string]string{
		"chat_id": t.chatID,
		"text":    renderMessage(ev),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	t.logger.Info().
		Str("type", string(ev.Type)).
		Str("symbol", ev.Symbol).
		Msg("通知已发送 (Telegram)")
	return nil
}

func renderMessage(ev event.PaymentEvent) string {
	builder := strings.Builder{}
	switch ev.Type {
	case event.TypeBalanceUpdated:
		builder.WriteString("[Balance Updated]\n")
	default:
		builder.WriteString("[Payment Received]\n")
	}
	builder.WriteString(fmt.Sprintf("Amount: %s\n", ev.AmountFormatted))
	if ev.ValueUSD != nil {
		builder.WriteString(fmt.Sprintf("Value: $%s\n", ev.ValueUSD.StringFixed(2)))
	}
	builder.WriteString(fmt.Sprintf("Address: %s\n", ev.Address))
	builder.WriteString(fmt.Sprintf("Network: %s\n", ev.NetworkID))
	if ev.TxID != "" {
		builder.WriteString(fmt.Sprintf("Tx: %s\n", ev.TxID))
	}
	builder.WriteString(fmt.Sprintf("Detected: %s UTC\n", ev.Time().UTC().Format(time.RFC3339)))
	return builder.String()
}

var (
	_ ToastSink = (*ConsoleToaster)(nil)
	_ ToastSink = (*TelegramToaster)(nil)
)
