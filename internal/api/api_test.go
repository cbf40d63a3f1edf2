package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"wallet_ledger/internal/db"
	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/ledger"
	"wallet_ledger/internal/metrics"
	"wallet_ledger/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	store  *storage.Gorm
	redis  *miniredis.Miniredis
}

func newTestServer(t *testing.T, limits ledger.Limits) *testServer {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := gorm.Open(sqlite.Open("file:api_"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := storage.NewGorm(gdb)
	log, _ := test.NewNullLogger()
	collector := metrics.New()
	engine := ledger.NewEngine(store, ledger.Config{
		Limits:         limits,
		CommissionRate: decimal.RequireFromString("0.005"),
	}, ledger.WithLogger(log), ledger.WithMetrics(collector))

	_, err = db.SeedAdmin(testContext(t), store, "root", "rootpassword", decimal.Zero)
	require.NoError(t, err)

	r := gin.New()
	RegisterRoutes(r, Deps{
		Engine:         engine,
		Store:          store,
		Redis:          rdb,
		JWTSecret:      testSecret,
		InitialBalance: decimal.NewFromInt(50),
		Metrics:        collector.Handler(),
	})
	return &testServer{t: t, router: r, store: store, redis: mr}
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func defaultLimits() ledger.Limits {
	return ledger.Limits{
		DailyAmount:   decimal.NewFromInt(10000),
		DailyCount:    5,
		MonthlyAmount: decimal.NewFromInt(50000),
		MonthlyCount:  20,
	}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type errorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Party     string `json:"party"`
	Limit     string `json:"limit"`
	Cap       string `json:"cap"`
	Remaining string `json:"remaining"`
}

type resultBody struct {
	Message     string             `json:"message"`
	Transaction domain.Transaction `json:"transaction"`
	Wallet      domain.Wallet      `json:"wallet"`
}

type walletBody struct {
	Wallet domain.Wallet `json:"wallet"`
	Cached bool          `json:"cached"`
}

// register creates an account and returns it
func (s *testServer) register(username, role string) domain.User {
	s.t.Helper()
	w := s.do(http.MethodPost, "/user", "", gin.H{"username": username, "password": "password1", "role": role})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[struct {
		User domain.User `json:"user"`
	}](s.t, w).User
}

// login returns a token for username
func (s *testServer) login(username, password string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/user/login", "", gin.H{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return decode[AuthResponse](s.t, w).Token
}

func (s *testServer) balance(token string) decimal.Decimal {
	s.t.Helper()
	w := s.do(http.MethodGet, "/wallet", token, nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return decode[walletBody](s.t, w).Wallet.Balance
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t, defaultLimits())

	alice := s.register("Alice", "")
	assert.Equal(t, "alice", alice.Username)
	assert.Equal(t, domain.RoleUser, alice.Role)
	assert.True(t, alice.IsApproved)
	assertAmount(t, "50", alice.Wallet.Balance)

	agent := s.register("agent", domain.RoleAgent)
	assert.False(t, agent.IsApproved)

	tests := []struct {
		name string
		body gin.H
		want string
	}{
		{"duplicate", gin.H{"username": "ALICE", "password": "password1"}, "Username already exists"},
		{"non alphabetic", gin.H{"username": "al1ce", "password": "password1"}, "Username must be alphabetic only"},
		{"short password", gin.H{"username": "carol", "password": "short"}, "Password must be 8-15 characters"},
		{"long password", gin.H{"username": "carol", "password": "sixteencharacter"}, "Password must be 8-15 characters"},
		{"admin role", gin.H{"username": "carol", "password": "password1", "role": "admin"}, "Role must be user or agent"},
		{"missing fields", gin.H{"username": "carol"}, "Invalid request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/user", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, decode[errorBody](t, w).Error)
		})
	}

	w := s.do(http.MethodPost, "/user/login", "", gin.H{"username": "ALICE", "password": "password1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.RoleUser, decode[AuthResponse](t, w).Role)

	w = s.do(http.MethodPost, "/user/login", "", gin.H{"username": "alice", "password": "password2"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(http.MethodPost, "/user/login", "", gin.H{"username": "nobody", "password": "password1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", decode[errorBody](t, w).Error)
}

func TestUserWalletFlow(t *testing.T) {
	s := newTestServer(t, defaultLimits())
	s.register("alice", "")
	bob := s.register("bob", "")
	alice := s.login("alice", "password1")
	bobToken := s.login("bob", "password1")

	w := s.do(http.MethodGet, "/wallet", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[walletBody](t, w).Cached)
	w = s.do(http.MethodGet, "/wallet", alice, nil)
	assert.True(t, decode[walletBody](t, w).Cached)

	w = s.do(http.MethodPost, "/wallet/add-money", alice, gin.H{"amount": "100"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[resultBody](t, w)
	assert.Equal(t, "Money added successfully", res.Message)
	assert.Equal(t, domain.TypeAddMoney, res.Transaction.Type)
	assertAmount(t, "150", res.Wallet.Balance)

	// The mutation dropped the cached wallet
	w = s.do(http.MethodGet, "/wallet", alice, nil)
	body := decode[walletBody](t, w)
	assert.False(t, body.Cached)
	assertAmount(t, "150", body.Wallet.Balance)

	// Prime bob's history cache, the transfer must invalidate it
	w = s.do(http.MethodGet, "/wallet/transactions", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(decode[map[string]json.RawMessage](t, w)["transactions"]))

	w = s.do(http.MethodPost, "/wallet/send-money", alice, gin.H{"to_username": "Bob", "amount": 30.5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res = decode[resultBody](t, w)
	assert.Equal(t, "Transfer successful", res.Message)
	require.NotNil(t, res.Transaction.ReceiverID)
	assert.Equal(t, bob.ID, *res.Transaction.ReceiverID)
	assertAmount(t, "119.5", res.Wallet.Balance)
	assertAmount(t, "80.5", s.balance(bobToken))

	w = s.do(http.MethodPost, "/wallet/withdraw", alice, gin.H{"amount": "19.5"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Withdrawal successful", decode[resultBody](t, w).Message)

	type history struct {
		Transactions []domain.Transaction `json:"transactions"`
		Total        int64                `json:"total"`
		TotalPages   int                  `json:"total_pages"`
		PageSize     int                  `json:"page_size"`
		Cached       bool                 `json:"cached"`
	}
	w = s.do(http.MethodGet, "/wallet/transactions?page=1&page_size=2", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	h := decode[history](t, w)
	assert.False(t, h.Cached)
	assert.Equal(t, int64(3), h.Total)
	assert.Equal(t, 2, h.TotalPages)
	assert.Equal(t, 2, h.PageSize)
	require.Len(t, h.Transactions, 2)
	assert.Equal(t, domain.TypeWithdraw, h.Transactions[0].Type)
	assert.Equal(t, domain.TypeSendMoney, h.Transactions[1].Type)

	w = s.do(http.MethodGet, "/wallet/transactions?page=1&page_size=2", alice, nil)
	assert.True(t, decode[history](t, w).Cached)

	w = s.do(http.MethodGet, "/wallet/transactions", bobToken, nil)
	h = decode[history](t, w)
	assert.False(t, h.Cached)
	assert.Equal(t, int64(1), h.Total)
}

func TestCommitDropsRacingCacheFill(t *testing.T) {
	s := newTestServer(t, defaultLimits())
	user := s.register("alice", "")
	alice := s.login("alice", "password1")
	key := "wallet:user:" + itoa(user.ID)

	w := s.do(http.MethodPost, "/wallet/add-money", alice, gin.H{"amount": "10"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// A read that loaded the wallet before the commit caches it after the first delete
	require.NoError(t, s.redis.Set(key, `{"id":1,"user_id":1,"balance":"50"}`))

	require.Eventually(t, func() bool { return !s.redis.Exists(key) }, 5*time.Second, 20*time.Millisecond)
	w = s.do(http.MethodGet, "/wallet", alice, nil)
	body := decode[walletBody](t, w)
	assert.False(t, body.Cached)
	assertAmount(t, "60", body.Wallet.Balance)
}

func TestUserWalletFailures(t *testing.T) {
	s := newTestServer(t, defaultLimits())
	s.register("alice", "")
	s.register("bob", "")
	alice := s.login("alice", "password1")

	tests := []struct {
		name   string
		path   string
		body   gin.H
		status int
		kind   string
		party  string
	}{
		{"insufficient funds", "/wallet/withdraw", gin.H{"amount": "50.01"}, http.StatusUnprocessableEntity, "insufficient_funds", "user"},
		{"zero amount", "/wallet/add-money", gin.H{"amount": "0"}, http.StatusBadRequest, "invalid_operation", ""},
		{"missing amount", "/wallet/withdraw", gin.H{}, http.StatusBadRequest, "invalid_operation", ""},
		{"sub-unit amount", "/wallet/add-money", gin.H{"amount": "0.00001"}, http.StatusBadRequest, "invalid_operation", ""},
		{"exponent amount", "/wallet/withdraw", gin.H{"amount": "1e-9"}, http.StatusBadRequest, "invalid_operation", ""},
		{"send to self", "/wallet/send-money", gin.H{"to_username": "alice", "amount": "1"}, http.StatusBadRequest, "invalid_operation", ""},
		{"unknown receiver", "/wallet/send-money", gin.H{"to_username": "carol", "amount": "1"}, http.StatusNotFound, "not_found", ""},
		{"send beyond balance", "/wallet/send-money", gin.H{"to_username": "bob", "amount": "51"}, http.StatusUnprocessableEntity, "insufficient_funds", "sender"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, tt.path, alice, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			body := decode[errorBody](t, w)
			assert.Equal(t, tt.kind, body.Kind)
			assert.Equal(t, tt.party, body.Party)
		})
	}

	// Role and authentication guards
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/wallet/cash-out", alice, gin.H{"user_id": 2, "amount": "1"}).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/wallet", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/wallet", "garbage", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/admin/wallets", alice, nil).Code)

	assertAmount(t, "50", s.balance(alice))
}

func TestAgentFlow(t *testing.T) {
	s := newTestServer(t, defaultLimits())
	alice := s.register("alice", "")
	agent := s.register("agent", domain.RoleAgent)
	admin := s.login("root", "rootpassword")
	agentToken := s.login("agent", "password1")
	aliceToken := s.login("alice", "password1")

	// Unapproved agents are refused
	w := s.do(http.MethodPost, "/wallet/add-money", agentToken, gin.H{"user_id": alice.ID, "amount": "1000"})
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	assert.Equal(t, "forbidden", decode[errorBody](t, w).Kind)

	w = s.do(http.MethodPatch, "/admin/agents/"+itoa(agent.ID)+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(http.MethodPatch, "/admin/agents/"+itoa(agent.ID)+"/approve", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodPatch, "/admin/agents/"+itoa(alice.ID)+"/approve", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodPatch, "/admin/agents/999/approve", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/wallet/add-money", agentToken, gin.H{"amount": "1000"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "user_id is required for cash-in", decode[errorBody](t, w).Error)

	w = s.do(http.MethodPost, "/wallet/add-money", agentToken, gin.H{"user_id": alice.ID, "amount": "1000"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[resultBody](t, w)
	assert.Equal(t, "Cash-in successful", res.Message)
	assert.Equal(t, domain.TypeCashIn, res.Transaction.Type)
	assertAmount(t, "5", res.Transaction.Commission)
	assertAmount(t, "1050", res.Wallet.Balance)

	w = s.do(http.MethodPost, "/wallet/cash-out", agentToken, gin.H{"user_id": alice.ID, "amount": "333"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res = decode[resultBody](t, w)
	assert.Equal(t, "Cash-out successful", res.Message)
	assertAmount(t, "1.665", res.Transaction.Commission)
	assertAmount(t, "717", res.Wallet.Balance)
	assertAmount(t, "56.665", s.balance(agentToken))
	assertAmount(t, "717", s.balance(aliceToken))

	w = s.do(http.MethodPatch, "/admin/agents/"+itoa(agent.ID)+"/suspend", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/wallet/cash-out", agentToken, gin.H{"user_id": alice.ID, "amount": "1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Agents cannot use user-only operations
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/wallet/withdraw", agentToken, gin.H{"amount": "1"}).Code)
}

func TestLimitExceededResponse(t *testing.T) {
	limits := defaultLimits()
	limits.DailyCount = 1
	s := newTestServer(t, limits)
	s.register("alice", "")
	alice := s.login("alice", "password1")

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/wallet/withdraw", alice, gin.H{"amount": "1"}).Code)

	w := s.do(http.MethodPost, "/wallet/withdraw", alice, gin.H{"amount": "1"})
	require.Equal(t, http.StatusTooManyRequests, w.Code, w.Body.String())
	body := decode[errorBody](t, w)
	assert.Equal(t, "limit_exceeded", body.Kind)
	assert.Equal(t, string(ledger.LimitDailyCount), body.Limit)
	assert.Equal(t, "1", body.Cap)
	assert.Equal(t, "0", body.Remaining)
	assert.Equal(t, "user", body.Party)

	// Credits are not limited
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/wallet/add-money", alice, gin.H{"amount": "1"}).Code)
}

func TestAdminEndpoints(t *testing.T) {
	s := newTestServer(t, defaultLimits())
	alice := s.register("alice", "")
	s.register("bob", "")
	admin := s.login("root", "rootpassword")
	aliceToken := s.login("alice", "password1")

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/wallet/send-money", aliceToken, gin.H{"to_username": "bob", "amount": "5"}).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/wallet/add-money", aliceToken, gin.H{"amount": "5"}).Code)
	s.balance(aliceToken) // cache the wallet

	// Freezing
	blockPath := "/admin/wallets/" + itoa(alice.Wallet.ID) + "/block"
	w := s.do(http.MethodPatch, blockPath, admin, gin.H{"blocked": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[walletBody](t, w).Wallet.IsBlocked)
	assert.False(t, s.redis.Exists("wallet:user:"+itoa(alice.ID)))

	w = s.do(http.MethodPost, "/wallet/withdraw", aliceToken, gin.H{"amount": "1"})
	require.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, "blocked", decode[errorBody](t, w).Kind)
	w = s.do(http.MethodPost, "/wallet/add-money", aliceToken, gin.H{"amount": "1"})
	assert.Equal(t, http.StatusLocked, w.Code)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPatch, blockPath, admin, gin.H{}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPatch, "/admin/wallets/abc/block", admin, gin.H{"blocked": true}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPatch, "/admin/wallets/999/block", admin, gin.H{"blocked": true}).Code)

	w = s.do(http.MethodPatch, blockPath, admin, gin.H{"blocked": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/wallet/withdraw", aliceToken, gin.H{"amount": "1"}).Code)

	// Listings
	type walletList struct {
		Wallets []domain.Wallet `json:"wallets"`
		Total   int64           `json:"total"`
	}
	w = s.do(http.MethodGet, "/admin/wallets?page_size=2", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	wl := decode[walletList](t, w)
	assert.Equal(t, int64(3), wl.Total)
	assert.Len(t, wl.Wallets, 2)

	type txList struct {
		Transactions []domain.Transaction `json:"transactions"`
		Total        int64                `json:"total"`
	}
	w = s.do(http.MethodGet, "/admin/transactions", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(3), decode[txList](t, w).Total)

	w = s.do(http.MethodGet, "/admin/transactions?type=send_money&user_id="+itoa(alice.ID), admin, nil)
	tl := decode[txList](t, w)
	require.Len(t, tl.Transactions, 1)
	assert.Equal(t, domain.TypeSendMoney, tl.Transactions[0].Type)

	w = s.do(http.MethodGet, "/admin/transactions?from=2000-01-01&to=2000-01-31", admin, nil)
	assert.JSONEq(t, `[]`, string(decode[map[string]json.RawMessage](t, w)["transactions"]))

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/admin/transactions?from=yesterday", admin, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/admin/transactions?user_id=x", admin, nil).Code)
}

func TestMetricsRoute(t *testing.T) {
	s := newTestServer(t, defaultLimits())
	s.register("alice", "")
	alice := s.login("alice", "password1")
	s.do(http.MethodPost, "/wallet/add-money", alice, gin.H{"amount": "1"})

	w := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ledger_operations_total")
}

// testContext stands in for t.Context (Go 1.24+): it returns a context that is
// canceled when the test finishes.
func testContext(t testing.TB) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
