package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func sampleNotification() Notification {
	return Notification{
		Bucket:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Reasons:      []string{"risk color red", "forecast above threshold"},
		LatestPct:    decimal.RequireFromString("3.4"),
		PredictedPct: decimal.RequireFromString("6.125"),
		ThresholdPct: decimal.NewFromInt(5),
		Direction:    "UP",
		Model:        "XGBoost",
		YieldSpread:  decimal.RequireFromString("-0.5"),
		RiskLevel:    "High Risk (Inverted)",
		RiskColor:    "red",
		Channels:     []string{"telegram"},
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken/sendMessage" {
			t.Errorf("路径不正确: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL+"/", time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("Telegram Notify 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	if !strings.Contains(received["text"], "Forecast: 6.13% UP") {
		t.Fatalf("text 缺少预测: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	err := notifier.Notify(context.Background(), sampleNotification())
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("ok=false 应报错, 实际 %v", err)
	}
}

func TestTelegramNotifierStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleNotification()); err == nil {
		t.Fatal("502 应报错")
	}
}

func TestRenderMessage(t *testing.T) {
	msg := RenderMessage(sampleNotification())
	for _, want := range []string{
		"[MacroPulse Alert]",
		"Bucket: 2024-03-01T12:00:00Z UTC",
		"Reason: risk color red; forecast above threshold",
		"Latest inflation: 3.40%",
		"(threshold 5.00%)",
		"Yield spread: -0.50 (High Risk (Inverted), red)",
		"Channels: telegram",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("消息缺少 %q:\n%s", want, msg)
		}
	}
}

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) Notify(context.Context, Notification) error {
	s.calls++
	return s.err
}

func TestMultiContinuesPastFailures(t *testing.T) {
	failing := &stubNotifier{err: errors.New("boom")}
	ok := &stubNotifier{}
	multi := Multi{failing, NewLogNotifier(testLogger()), ok}

	err := multi.Notify(context.Background(), sampleNotification())
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("应返回聚合错误, 实际 %v", err)
	}
	if failing.calls != 1 || ok.calls != 1 {
		t.Fatalf("每个通知器都应被调用: %d %d", failing.calls, ok.calls)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
