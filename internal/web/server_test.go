package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"macropulse/internal/config"
	"macropulse/internal/dashboard"
	"macropulse/internal/macroapi"
	"macropulse/internal/metrics"
)

const (
	historyJSON = `[
		{"date":"2024-01-01","cpi_value":308.4,"inflation_yoy_pct":3.1},
		{"date":"2024-02-01","cpi_value":310.3,"inflation_yoy_pct":3.2}
	]`
	predictionJSON = `{"model":"XGBoost","last_actual_inflation":3.2,"predicted_next_inflation":3.45,"direction":"UP"}`
	riskJSON       = `{"yield_spread":-0.52,"level":"High Risk (Inverted)","color":"red"}`
	phillipsJSON   = `[{"unemployment":3.5,"inflation":6.1},{"unemployment":4.0,"inflation":3.2},{"unemployment":5.5,"inflation":-0.4}]`
)

type fakeAPI struct {
	*httptest.Server

	mu        sync.Mutex
	routes    map[string]http.HandlerFunc
	posts     atomic.Int32
	postRates []float64
	predicted float64
	predictOK bool
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{predicted: 6.1, predictOK: true}
	api.routes = map[string]http.HandlerFunc{
		macroapi.PathInflation:     jsonBody(historyJSON),
		macroapi.PathPredict:       jsonBody(predictionJSON),
		macroapi.PathRisk:          jsonBody(riskJSON),
		macroapi.PathPhillipsCurve: jsonBody(phillipsJSON),
	}
	api.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == macroapi.PathPredict {
			api.handlePredict(w, r)
			return
		}
		api.mu.Lock()
		route, ok := api.routes[r.URL.Path]
		api.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		route(w, r)
	}))
	t.Cleanup(api.Close)
	return api
}

func (a *fakeAPI) handlePredict(w http.ResponseWriter, r *http.Request) {
	a.posts.Add(1)
	var req macroapi.PredictRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	a.mu.Lock()
	a.postRates = append(a.postRates, req.UnemploymentRate)
	ok, predicted := a.predictOK, a.predicted
	a.mu.Unlock()

	if !ok {
		http.Error(w, `{"detail":"model unavailable"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(macroapi.PredictResponse{PredictedInflation: predicted})
}

func (a *fakeAPI) setRoute(path string, h http.HandlerFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.routes[path] = h
}

func (a *fakeAPI) setPredict(predicted float64, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.predicted, a.predictOK = predicted, ok
}

func jsonBody(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func newTestServer(t *testing.T, api *fakeAPI, renderWait time.Duration, opts ...Option) *Server {
	t.Helper()
	client := macroapi.NewClient(macroapi.Options{BaseURL: api.URL, Timeout: 2 * time.Second}, zerolog.Nop())
	srv, err := NewServer(config.ServerConfig{Addr: ":0", RenderWait: renderWait}, client, zerolog.Nop(), opts...)
	if err != nil {
		t.Fatalf("NewServer 失败: %v", err)
	}
	return srv
}

func get(t *testing.T, srv *Server, path string) (*httptest.ResponseRecorder, *goquery.Document) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec, parse(t, rec)
}

func postForm(t *testing.T, srv *Server, value string) (*httptest.ResponseRecorder, *goquery.Document) {
	t.Helper()
	form := url.Values{"unemployment_rate": {value}}
	req := httptest.NewRequest(http.MethodPost, "/phillips", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec, parse(t, rec)
}

func parse(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rec.Body.String()))
	if err != nil {
		t.Fatalf("解析 HTML 失败: %v", err)
	}
	return doc
}

func TestDashboardRendersCards(t *testing.T) {
	api := newFakeAPI(t)
	srv := newTestServer(t, api, 2*time.Second)

	rec, doc := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("期望 200, 实际 %d", rec.Code)
	}

	if got := strings.TrimSpace(doc.Find("#current-inflation").Text()); got != "3.20%" {
		t.Fatalf("current inflation 不正确: %q", got)
	}
	if got := strings.TrimSpace(doc.Find("#forecast").Text()); got != "3.45%" {
		t.Fatalf("forecast 不正确: %q", got)
	}
	direction := doc.Find("#forecast-direction")
	if !direction.HasClass("alarm") || !strings.Contains(direction.Text(), "↑") {
		t.Fatalf("UP 预测应为 alarm 且带 ↑: %q", direction.Text())
	}
	if !doc.Find("#risk-level").HasClass("alarm") || !doc.Find("#risk-icon").HasClass("alarm") {
		t.Fatal("red 风险应为 alarm")
	}
	if got := strings.TrimSpace(doc.Find("#yield-spread").Text()); got != "-0.52" {
		t.Fatalf("yield spread 不正确: %q", got)
	}
	if doc.Find("#chart svg").Length() != 1 {
		t.Fatal("图表应渲染 SVG")
	}
	points := doc.Find("#chart .points li")
	if points.Length() != 2 {
		t.Fatalf("期望 2 个数据点, 实际 %d", points.Length())
	}
	if title, _ := points.First().Attr("title"); title != "Jan 24: 3.10%" {
		t.Fatalf("tooltip 不正确: %q", title)
	}
	if doc.Find(`meta[http-equiv="refresh"]`).Length() != 0 {
		t.Fatal("加载完成后不应自动刷新")
	}
}

func TestDashboardEmptyHistory(t *testing.T) {
	api := newFakeAPI(t)
	api.setRoute(macroapi.PathInflation, jsonBody(`[]`))
	srv := newTestServer(t, api, 2*time.Second)

	_, doc := get(t, srv, "/")
	if got := strings.TrimSpace(doc.Find("#current-inflation").Text()); got != "0.00%" {
		t.Fatalf("空历史应显示 0.00%%, 实际 %q", got)
	}
	if doc.Find("#chart .message").Length() != 0 {
		t.Fatal("空历史不是错误")
	}
}

func TestDashboardFailureShowsGenericMessage(t *testing.T) {
	api := newFakeAPI(t)
	api.setRoute(macroapi.PathRisk, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := newTestServer(t, api, 2*time.Second)

	rec, doc := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("失败也应返回 200 页面, 实际 %d", rec.Code)
	}
	msg := doc.Find("#chart .message")
	if !msg.HasClass("error") || strings.TrimSpace(msg.Text()) != dashboard.ErrorMessage {
		t.Fatalf("应显示统一错误信息, 实际 %q", msg.Text())
	}
	if doc.Find("#chart svg").Length() != 0 {
		t.Fatal("失败时不应渲染图表")
	}
	if doc.Find("#risk-card .skeleton").Length() != 1 {
		t.Fatal("失败时风险卡片应保持占位")
	}
}

func TestDashboardStillLoading(t *testing.T) {
	api := newFakeAPI(t)
	release := make(chan struct{})
	api.setRoute(macroapi.PathInflation, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		jsonBody(historyJSON)(w, r)
	})
	defer close(release)
	srv := newTestServer(t, api, 50*time.Millisecond)

	_, doc := get(t, srv, "/")
	if got := strings.TrimSpace(doc.Find("#chart .message").Text()); got != dashboard.LoadingMessage {
		t.Fatalf("加载中应显示 %q, 实际 %q", dashboard.LoadingMessage, got)
	}
	if doc.Find(".skeleton").Length() != 3 {
		t.Fatalf("三个卡片都应为占位, 实际 %d", doc.Find(".skeleton").Length())
	}
	if doc.Find(`meta[http-equiv="refresh"]`).Length() != 1 {
		t.Fatal("加载中应自动刷新")
	}
}

func TestPhillipsPage(t *testing.T) {
	api := newFakeAPI(t)
	srv := newTestServer(t, api, 2*time.Second)

	rec, doc := get(t, srv, "/phillips")
	if rec.Code != http.StatusOK {
		t.Fatalf("期望 200, 实际 %d", rec.Code)
	}
	points := doc.Find("#phillips-chart .points li")
	if points.Length() != 3 {
		t.Fatalf("期望 3 个点, 实际 %d", points.Length())
	}
	if title, _ := points.First().Attr("title"); title != "Economic Snapshot | Unemployment: 3.5% | Inflation: 6.1%" {
		t.Fatalf("tooltip 不正确: %q", title)
	}
	if doc.Find("#phillips-chart svg").Length() != 1 {
		t.Fatal("散点图应渲染 SVG")
	}
	if doc.Find("#prediction").Length() != 0 {
		t.Fatal("未提交前不应有预测")
	}
}

func TestPredictAlarm(t *testing.T) {
	api := newFakeAPI(t)
	srv := newTestServer(t, api, 2*time.Second)

	_, doc := postForm(t, srv, "3.5")
	pred := doc.Find("#prediction")
	if got := strings.TrimSpace(pred.Text()); got != "6.1%" {
		t.Fatalf("预测值不正确: %q", got)
	}
	if !pred.HasClass("alarm") {
		t.Fatal("6.1% 应为 alarm")
	}
	if v, _ := doc.Find("#unemployment-rate").Attr("value"); v != "3.5" {
		t.Fatalf("输入值应保留, 实际 %q", v)
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.postRates) != 1 || api.postRates[0] != 3.5 {
		t.Fatalf("后端应收到 3.5, 实际 %v", api.postRates)
	}
}

func TestPredictBelowThresholdIsPositive(t *testing.T) {
	api := newFakeAPI(t)
	api.setPredict(5, true)
	srv := newTestServer(t, api, 2*time.Second)

	_, doc := postForm(t, srv, "6")
	if pred := doc.Find("#prediction"); !pred.HasClass("positive") || strings.TrimSpace(pred.Text()) != "5%" {
		t.Fatalf("5%% 应为 positive, 实际 %q", pred.Text())
	}
}

func TestPredictAcceptsLeadingDecimalPoint(t *testing.T) {
	api := newFakeAPI(t)
	srv := newTestServer(t, api, 2*time.Second)

	_, doc := postForm(t, srv, ".5")
	if got := strings.TrimSpace(doc.Find("#prediction").Text()); got != "6.1%" {
		t.Fatalf(".5 应被接受并显示预测, 实际 %q", got)
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.postRates) != 1 || api.postRates[0] != 0.5 {
		t.Fatalf("后端应收到 0.5, 实际 %v", api.postRates)
	}
}

func TestPredictEmptyDoesNotPost(t *testing.T) {
	api := newFakeAPI(t)
	srv := newTestServer(t, api, 2*time.Second)

	rec, doc := postForm(t, srv, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("期望 200, 实际 %d", rec.Code)
	}
	if api.posts.Load() != 0 {
		t.Fatalf("空输入不应请求后端, 实际 %d 次", api.posts.Load())
	}
	if doc.Find("#prediction").Length() != 0 {
		t.Fatal("空输入不应显示预测")
	}
}

func TestPredictNonNumericDoesNotPost(t *testing.T) {
	api := newFakeAPI(t)
	srv := newTestServer(t, api, 2*time.Second)

	_, doc := postForm(t, srv, "abc")
	if api.posts.Load() != 0 {
		t.Fatal("非数字输入不应请求后端")
	}
	if doc.Find("#prediction").Length() != 0 {
		t.Fatal("非数字输入不应显示预测")
	}
}

func TestPredictFailureIsHidden(t *testing.T) {
	api := newFakeAPI(t)
	api.setPredict(0, false)
	srv := newTestServer(t, api, 2*time.Second)

	rec, doc := postForm(t, srv, "4.2")
	if rec.Code != http.StatusOK {
		t.Fatalf("预测失败也应返回 200, 实际 %d", rec.Code)
	}
	if api.posts.Load() != 1 {
		t.Fatalf("应请求一次后端, 实际 %d", api.posts.Load())
	}
	if doc.Find("#prediction").Length() != 0 {
		t.Fatal("预测失败不应显示结果")
	}
	if doc.Find("#phillips-chart .points li").Length() != 3 {
		t.Fatal("散点仍应渲染")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	api := newFakeAPI(t)
	reg := prometheus.NewRegistry()
	srv := newTestServer(t, api, 2*time.Second, WithMetrics(metrics.New(reg), reg))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz 不正确: %d %q", rec.Code, rec.Body.String())
	}

	get(t, srv, "/")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `macropulse_dashboard_loads_total{outcome="ok"} 1`) {
		t.Fatalf("metrics 缺少 dashboard 计数:\n%s", rec.Body.String())
	}
}

func TestMetricsRouteAbsentWithoutGatherer(t *testing.T) {
	api := newFakeAPI(t)
	srv := newTestServer(t, api, time.Second)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("未配置 metrics 时应 404, 实际 %d", rec.Code)
	}
}
