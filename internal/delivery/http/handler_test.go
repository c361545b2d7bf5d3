package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/ticketbottle-ticketlink/config"
	grpcDelivery "github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/grpc"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/delivery/kafka/producer/producertest"
	redisRepo "github.com/vogiaan1904/ticketbottle-ticketlink/internal/repository/redis"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/rule"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/service"
	pkgGrpc "github.com/vogiaan1904/ticketbottle-ticketlink/pkg/grpc"
	"github.com/vogiaan1904/ticketbottle-ticketlink/pkg/logger"
	"github.com/vogiaan1904/ticketbottle-ticketlink/pkg/util"
)

type testEnv struct {
	router http.Handler
	prod   *producertest.Recorder
	tlSvc  service.TicketLinkService

	mu  sync.Mutex
	now time.Time
}

func (e *testEnv) Now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *testEnv) Advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(d)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	cli := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cli.Close() })

	l := logger.InitializeTestZapLogger()
	env := &testEnv{
		prod: &producertest.Recorder{},
		now:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	authSvc := service.NewAuthService(
		redisRepo.NewRedisUserRepository(cli, l),
		config.JWTConfig{Secret: "test-secret", Expiry: time.Hour},
		l,
	)
	env.tlSvc = service.NewTicketLinkService(
		redisRepo.NewRedisTicketLinkRepository(cli, l),
		env.prod,
		time.UTC,
		l,
		service.WithTicketLinkClock(env.Now),
	)
	env.router = NewHTTPHandler(authSvc, env.tlSvc, l).Routes()

	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request, bearer string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	body := map[string]any{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("%s %s: decode body %q: %v", req.Method, req.URL.Path, rec.Body.String(), err)
	}

	return rec, body
}

func (e *testEnv) get(t *testing.T, path, bearer string) map[string]any {
	t.Helper()

	rec, body := e.do(t, httptest.NewRequest(http.MethodGet, path, nil), bearer)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s: status %d, body %v", path, rec.Code, body)
	}
	return body
}

func (e *testEnv) register(t *testing.T, username, password, role string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	payload := `{"username":"` + username + `","password":"` + password + `","role":"` + role + `"}`
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	return e.do(t, req, "")
}

func (e *testEnv) login(t *testing.T, username, password string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return e.do(t, req, "")
}

// applyRuleResult plays the rule service for every request published so far.
func (e *testEnv) applyRuleResult(t *testing.T, token string) {
	t.Helper()

	results := &producertest.Recorder{}
	engine := rule.NewEngine(
		rule.WithClock(e.Now),
		rule.WithTokenGenerator(func() string { return token }),
		rule.WithLocation(time.UTC),
	)
	ruleSvc := service.NewRuleService(engine, results, time.UTC, logger.InitializeTestZapLogger())

	ctx := context.Background()
	for _, req := range e.prod.Requests {
		if err := ruleSvc.ProcessTicketLinkRequest(ctx, service.TicketLinkRequestInput{
			Username: req.Username,
			Role:     req.Role,
		}); err != nil {
			t.Fatalf("ProcessTicketLinkRequest error: %v", err)
		}
	}

	for _, res := range results.Results {
		from, err := util.ParseDateTime(res.AvailableFrom, time.UTC)
		if err != nil {
			t.Fatalf("ParseDateTime error: %v", err)
		}
		if err := e.tlSvc.HandleTicketLinkResult(ctx, service.TicketLinkResultInput{
			Username:      res.Username,
			AccessToken:   res.AccessToken,
			AvailableFrom: from,
		}); err != nil {
			t.Fatalf("HandleTicketLinkResult error: %v", err)
		}
	}
}

func TestTicketLinkFlow_StandardUser(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.register(t, "sanjay", "kumar", "standard")
	if rec.Code != http.StatusOK || body["username"] != "sanjay" || body["role"] != "standard" {
		t.Fatalf("register: status %d, body %v", rec.Code, body)
	}

	rec, body = env.login(t, "sanjay", "kumar")
	if rec.Code != http.StatusOK || body["token_type"] != "bearer" {
		t.Fatalf("login: status %d, body %v", rec.Code, body)
	}
	token, _ := body["bearer_token"].(string)
	if token == "" {
		t.Fatalf("login returned no bearer token: %v", body)
	}

	if got := env.get(t, "/get_ticketing_link", token)["message"]; got != service.MsgLinkNotAvailable {
		t.Fatalf("poll before request: %v", got)
	}

	if got := env.get(t, "/request_for_ticketing_link", token)["message"]; got != service.MsgLinkRequested {
		t.Fatalf("first request: %v", got)
	}
	if got := env.get(t, "/request_for_ticketing_link", token)["message"]; got != service.MsgAlreadyRequested {
		t.Fatalf("second request: %v", got)
	}
	if env.prod.RequestCount() != 1 {
		t.Fatalf("expected 1 published request, got %d", env.prod.RequestCount())
	}
	if req := env.prod.Requests[0]; req.Username != "sanjay" || req.Role != "standard" {
		t.Fatalf("unexpected request event: %+v", req)
	}

	if got := env.get(t, "/get_ticketing_link", token)["message"]; got != service.MsgUnderProcessing {
		t.Fatalf("poll while pending: %v", got)
	}

	env.applyRuleResult(t, "tok-abc")

	if got := env.get(t, "/get_ticketing_link", token)["link"]; got != "http://example.com/buy_ticket/tok-abc" {
		t.Fatalf("poll after activation: %v", got)
	}

	if got := env.get(t, "/buy_ticket/tok-abc", token)["message"]; got != "Page will be active in 10 minutes and 0 seconds" {
		t.Fatalf("redeem before window: %v", got)
	}
	if got := env.get(t, "/buy_ticket/not-the-token", token)["message"]; got != service.MsgInvalidAccessToken {
		t.Fatalf("redeem with wrong token: %v", got)
	}
	// Someone else holding the link is just a guest.
	if got := env.get(t, "/buy_ticket/tok-abc", "")["message"]; got != service.MsgInvalidAccessToken {
		t.Fatalf("redeem as guest: %v", got)
	}

	env.Advance(9*time.Minute + 15*time.Second)
	if got := env.get(t, "/buy_ticket/tok-abc", token)["message"]; got != "Page will be active in 45 seconds" {
		t.Fatalf("redeem close to window: %v", got)
	}

	env.Advance(45 * time.Second)
	if got := env.get(t, "/buy_ticket/tok-abc", token)["message"]; got != "Hello, sanjay. Welcome to the ticket page" {
		t.Fatalf("redeem in window: %v", got)
	}
}

func TestTicketLinkFlow_Guest(t *testing.T) {
	env := newTestEnv(t)

	if got := env.get(t, "/request_for_ticketing_link", "")["message"]; got != service.MsgLinkRequested {
		t.Fatalf("guest request: %v", got)
	}
	// An unusable credential falls back to the same guest identity.
	if got := env.get(t, "/request_for_ticketing_link", "garbage")["message"]; got != service.MsgAlreadyRequested {
		t.Fatalf("guest request with bad token: %v", got)
	}
	if req := env.prod.Requests[0]; req.Username != "guest" || req.Role != "guest" {
		t.Fatalf("unexpected request event: %+v", req)
	}

	env.applyRuleResult(t, "tok-guest")

	if got := env.get(t, "/buy_ticket/tok-guest", "")["message"]; got != "Page will be available from 2024-05-02 00:00:00" {
		t.Fatalf("guest redeem: %v", got)
	}
}

func TestRegister_GuestIsReserved(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.register(t, "guest", "pw", "premium")
	if rec.Code != http.StatusBadRequest || body["message"] != "Username is reserved" {
		t.Fatalf("register guest: status %d, body %v", rec.Code, body)
	}
	if rec, body := env.login(t, "guest", "pw"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("login guest: status %d, body %v", rec.Code, body)
	}

	// Anonymous callers still get guest timing.
	env.get(t, "/request_for_ticketing_link", "")
	env.applyRuleResult(t, "tok-guest")

	if got := env.get(t, "/buy_ticket/tok-guest", "")["message"]; got != "Page will be available from 2024-05-02 00:00:00" {
		t.Fatalf("guest redeem: %v", got)
	}
}

func TestRegister_Errors(t *testing.T) {
	env := newTestEnv(t)

	if rec, body := env.register(t, "sanjay", "kumar", "standard"); rec.Code != http.StatusOK {
		t.Fatalf("register: status %d, body %v", rec.Code, body)
	}

	rec, body := env.register(t, "sanjay", "other", "premium")
	if rec.Code != http.StatusBadRequest || body["message"] != "Username already registered" {
		t.Fatalf("duplicate register: status %d, body %v", rec.Code, body)
	}

	rec, body = env.register(t, "ravi", "pw", "admin")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid role: status %d, body %v", rec.Code, body)
	}

	rec, body = env.register(t, "ravi", strings.Repeat("a", 80), "standard")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("long password: status %d, body %v", rec.Code, body)
	}

	// 40 runes pass the length tag but hash to more than 72 bytes.
	rec, body = env.register(t, "ravi", strings.Repeat("界", 40), "standard")
	if rec.Code != http.StatusBadRequest || body["message"] != "Password must be at most 72 bytes" {
		t.Fatalf("long multibyte password: status %d, body %v", rec.Code, body)
	}

	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader("{"))
	if rec, _ := env.do(t, req, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: status %d", rec.Code)
	}
}

func TestLogin_Unauthorized(t *testing.T) {
	env := newTestEnv(t)

	if rec, body := env.register(t, "sanjay", "kumar", "standard"); rec.Code != http.StatusOK {
		t.Fatalf("register: status %d, body %v", rec.Code, body)
	}

	rec, body := env.login(t, "sanjay", "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: status %d, body %v", rec.Code, body)
	}
	if rec.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Fatalf("missing WWW-Authenticate header")
	}

	if rec, _ := env.login(t, "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty form: status %d", rec.Code)
	}
}

func TestRequestLink_QueueUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.prod.SetErr(sarama.ErrOutOfBrokers)

	rec, body := env.do(t, httptest.NewRequest(http.MethodGet, "/request_for_ticketing_link", nil), "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d, body %v", rec.Code, body)
	}

	env.prod.SetErr(nil)
	if got := env.get(t, "/request_for_ticketing_link", "")["message"]; got != service.MsgLinkRequested {
		t.Fatalf("retry after outage: %v", got)
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	if got := env.get(t, "/health", "")["status"]; got != "healthy" {
		t.Fatalf("unexpected health status: %v", got)
	}
}

func TestHealthCheck_ReportsRuleService(t *testing.T) {
	lnr, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	l := logger.InitializeTestZapLogger()
	hs := grpcDelivery.NewHealthServer(l, grpcDelivery.RuleServiceName)
	go hs.Serve(lnr)
	t.Cleanup(hs.GracefulStop)

	cli, closeCli, err := pkgGrpc.NewHealthClient(lnr.Addr().String())
	if err != nil {
		t.Fatalf("NewHealthClient: %v", err)
	}
	t.Cleanup(closeCli)

	env := newTestEnv(t)
	router := NewHTTPHandler(nil, env.tlSvc, l, WithRuleHealth(cli)).Routes()

	check := func() map[string]any {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		body := map[string]any{}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return body
	}

	if body := check(); body["status"] != "degraded" || body["rule_service"] != "NOT_SERVING" {
		t.Fatalf("unexpected health before ready: %v", body)
	}

	hs.SetServing(true)
	if body := check(); body["status"] != "healthy" || body["rule_service"] != "SERVING" {
		t.Fatalf("unexpected health when ready: %v", body)
	}
}

func TestBaseURL(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/get_ticketing_link", nil)
	req.Host = "tickets.local:8000"
	if got := baseURL(req); got != "http://tickets.local:8000" {
		t.Fatalf("unexpected base url: %q", got)
	}

	req.Header.Set("X-Forwarded-Proto", "https")
	if got := baseURL(req); got != "https://tickets.local:8000" {
		t.Fatalf("unexpected forwarded base url: %q", got)
	}
}
