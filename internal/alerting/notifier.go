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
	"github.com/shopspring/decimal"
)

// Notification 封装宏观告警上下文。
type Notification struct {
	Bucket       time.Time
	Reasons      []string
	LatestPct    decimal.Decimal
	PredictedPct decimal.Decimal
	ThresholdPct decimal.Decimal
	Direction    string
	Model        string
	YieldSpread  decimal.Decimal
	RiskLevel    string
	RiskColor    string
	Channels     []string
	Note         string
}

// Reason returns the joined trigger reasons.
func (n Notification) Reason() string {
	return strings.Join(n.Reasons, "; ")
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": n.chatID,
		"text":    RenderMessage(note),
	})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("telegram 返回 ok=false: %s", result.Description)
	}

	n.logger.Info().Time("bucket", note.Bucket).
		Str("risk_color", note.RiskColor).
		Str("reason", note.Reason()).
		Msg("告警已发送 (Telegram)")
	return nil
}

// LogNotifier writes alerts to the structured log only.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier 构造日志告警器。
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify logs the notification at warn level.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Warn().
		Time("bucket", note.Bucket).
		Str("reason", note.Reason()).
		Str("predicted_pct", note.PredictedPct.StringFixed(2)).
		Str("yield_spread", note.YieldSpread.StringFixed(2)).
		Str("risk_level", note.RiskLevel).
		Str("risk_color", note.RiskColor).
		Msg("宏观告警")
	return nil
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

// Notify delivers to all notifiers, continuing past failures.
func (m Multi) Notify(ctx context.Context, note Notification) error {
	var failures []string
	for _, notifier := range m {
		if err := notifier.Notify(ctx, note); err != nil {
			failures = append(failures, err.Error())
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("notify: %s", strings.Join(failures, "; "))
	}
	return nil
}

// RenderMessage formats a notification as plain text.
func RenderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[MacroPulse Alert]\n")
	builder.WriteString(fmt.Sprintf("Bucket: %s UTC\n", note.Bucket.UTC().Format(time.RFC3339)))
	if len(note.Reasons) > 0 {
		builder.WriteString(fmt.Sprintf("Reason: %s\n", note.Reason()))
	}
	builder.WriteString(fmt.Sprintf("Latest inflation: %s%%\n", note.LatestPct.StringFixed(2)))
	forecast := fmt.Sprintf("Forecast: %s%% %s", note.PredictedPct.StringFixed(2), note.Direction)
	if note.ThresholdPct.IsPositive() {
		forecast += fmt.Sprintf(" (threshold %s%%)", note.ThresholdPct.StringFixed(2))
	}
	builder.WriteString(forecast + "\n")
	if note.Model != "" {
		builder.WriteString(fmt.Sprintf("Model: %s\n", note.Model))
	}
	builder.WriteString(fmt.Sprintf("Yield spread: %s (%s, %s)\n", note.YieldSpread.StringFixed(2), note.RiskLevel, note.RiskColor))
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	if note.Note != "" {
		builder.WriteString(note.Note)
	}
	return builder.String()
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = Multi(nil)
)
