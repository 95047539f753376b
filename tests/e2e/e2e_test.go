//go:build integration

package e2e

// e2e_test.go
// End-to-end integration tests using real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./tests/e2e/... -v
//
// Covered flows:
//   - login → open → close balanced → fetch
//   - shortage close → pending → write_off resolve → adjustment row recorded
//   - second open on the same register rejected by the partial unique index
//   - stale version close rejected with the current version in the body
//   - concurrent opens race on the index, exactly one winner

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"tillcore/internal/config"
	"tillcore/internal/infra"
	"tillcore/internal/model"
	"tillcore/internal/repository"
	"tillcore/internal/router"
	"tillcore/internal/worker"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func do(t *testing.T, srv *httptest.Server, method, path string, body *bytes.Buffer, token string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, srv.URL+path, body)
	} else {
		req, err = http.NewRequest(method, srv.URL+path, nil)
	}
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

// ── Test Suite Setup ─────────────────────────────────────────────────────────

type testEnv struct {
	server *httptest.Server
	db     *gorm.DB
	token  string // supervisor JWT
}

// sessionBody is the subset of the session response the tests assert on.
type sessionBody struct {
	ID             string           `json:"id"`
	RegisterID     string           `json:"register_id"`
	Status         string           `json:"status"`
	Version        int              `json:"version"`
	Reconciliation *reconciliation  `json:"reconciliation"`
	Resolution     *json.RawMessage `json:"resolution"`
}

type reconciliation struct {
	ExpectedBalances map[string]int64 `json:"expected_balances"`
	Discrepancies    map[string]int64 `json:"discrepancies"`
	TotalDiscrepancy int64            `json:"total_discrepancy"`
	Severity         string           `json:"severity"`
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("tillcore_test"),
		tcPostgres.WithUsername("tillcore"),
		tcPostgres.WithPassword("tillcore"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Port:               8000,
		Env:                "test",
		JWTSecret:          "test-secret-key",
		JWTExpirationHours: 8,
		JWTRefreshHours:    24,
		DatabaseURL:        pgURL,
		RedisURL:           rdURL,
		WorkerPoolSize:     1,
		// AlertEmail empty: no SMTP in tests, alert enqueue is skipped
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)

	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)

	// Seed a supervisor with a runtime-generated hash
	hash, err := bcrypt.GenerateFromPassword([]byte("tillcore2026"), bcrypt.DefaultCost)
	require.NoError(t, err)
	require.NoError(t, db.Create(&model.Cashier{
		Username:     "supervisor.e2e",
		FullName:     "Supervisor E2E",
		PasswordHash: string(hash),
		Role:         "supervisor",
		Active:       true,
	}).Error)

	// Start the worker pool so write_off adjustments actually land
	workerCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	worker.StartWorkerPool(workerCtx, rdb, &worker.WorkerHandlers{
		Adjustment: worker.NewAdjustmentWorker(repository.NewLedgerRepository(db)),
		Email:      worker.NewEmailWorker(infra.NewMailer(cfg)),
	}, cfg.WorkerPoolSize)

	r := router.New(cfg, db, rdb)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	loginResp := do(t, srv, "POST", "/v1/auth/login",
		jsonBody(t, map[string]string{"username": "supervisor.e2e", "password": "tillcore2026"}),
		"",
	)
	require.Equal(t, http.StatusOK, loginResp.StatusCode)
	var loginBody struct {
		AccessToken string `json:"access_token"`
	}
	decodeJSON(t, loginResp, &loginBody)
	require.NotEmpty(t, loginBody.AccessToken)

	return &testEnv{server: srv, db: db, token: loginBody.AccessToken}
}

func (env *testEnv) openSession(t *testing.T, registerID string, opening map[string]int64) sessionBody {
	t.Helper()
	resp := do(t, env.server, "POST", "/v1/sessions/open",
		jsonBody(t, map[string]any{"register_id": registerID, "opening_balances": opening}),
		env.token,
	)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var s sessionBody
	decodeJSON(t, resp, &s)
	return s
}

func (env *testEnv) seedDelta(t *testing.T, sessionID string, tender string, amount int64) {
	t.Helper()
	require.NoError(t, env.db.Create(&model.TenderDelta{
		SessionID:  uuid.MustParse(sessionID),
		Tender:     model.PaymentMethod(tender),
		Amount:     model.Money(amount),
		OccurredAt: time.Now().UTC(),
	}).Error)
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestE2E_BalancedCycle(t *testing.T) {
	env := setupTestEnv(t)

	s := env.openSession(t, "REG-01", map[string]int64{"cash": 10000})
	assert.Equal(t, "OPEN", s.Status)
	assert.Equal(t, 1, s.Version)

	env.seedDelta(t, s.ID, "cash", 5000)
	env.seedDelta(t, s.ID, "card", 3000)
	env.seedDelta(t, s.ID, "cash", -1000)

	closeResp := do(t, env.server, "POST", "/v1/sessions/"+s.ID+"/close",
		jsonBody(t, map[string]any{
			"expected_version": 1,
			"closing_balances": map[string]int64{"cash": 14000, "card": 3000},
		}), env.token)
	require.Equal(t, http.StatusOK, closeResp.StatusCode)
	var closed sessionBody
	decodeJSON(t, closeResp, &closed)
	assert.Equal(t, "CLOSED_BALANCED", closed.Status)
	assert.Equal(t, 2, closed.Version)
	require.NotNil(t, closed.Reconciliation)
	assert.Equal(t, int64(14000), closed.Reconciliation.ExpectedBalances["cash"])
	assert.Equal(t, int64(0), closed.Reconciliation.TotalDiscrepancy)
	assert.Equal(t, "normal", closed.Reconciliation.Severity)

	getResp := do(t, env.server, "GET", "/v1/sessions/"+s.ID, nil, env.token)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	var fetched sessionBody
	decodeJSON(t, getResp, &fetched)
	assert.Equal(t, "CLOSED_BALANCED", fetched.Status)
}

func TestE2E_WriteOffRecordsAdjustments(t *testing.T) {
	env := setupTestEnv(t)

	s := env.openSession(t, "REG-02", map[string]int64{"cash": 10000})
	env.seedDelta(t, s.ID, "cash", 5000)

	// 500 short on cash
	closeResp := do(t, env.server, "POST", "/v1/sessions/"+s.ID+"/close",
		jsonBody(t, map[string]any{
			"expected_version": 1,
			"closing_balances": map[string]int64{"cash": 14500},
		}), env.token)
	require.Equal(t, http.StatusOK, closeResp.StatusCode)
	var closed sessionBody
	decodeJSON(t, closeResp, &closed)
	require.Equal(t, "DISCREPANCY_PENDING", closed.Status)
	assert.Equal(t, int64(-500), closed.Reconciliation.Discrepancies["cash"])

	resolveResp := do(t, env.server, "POST", "/v1/sessions/"+s.ID+"/resolve",
		jsonBody(t, map[string]any{
			"expected_version": 2,
			"action":           "write_off",
			"notes":            "till miscount confirmed on camera",
		}), env.token)
	require.Equal(t, http.StatusOK, resolveResp.StatusCode)
	var resolved sessionBody
	decodeJSON(t, resolveResp, &resolved)
	assert.Equal(t, "RESOLVED", resolved.Status)
	assert.Equal(t, 3, resolved.Version)

	// Correcting entries are recorded before the resolve response returns
	var count int64
	require.NoError(t, env.db.Model(&model.LedgerAdjustment{}).
		Where("session_id = ? AND status = 'pending'", s.ID).
		Count(&count).Error)
	require.Equal(t, int64(1), count)

	var adj model.LedgerAdjustment
	require.NoError(t, env.db.Where("session_id = ?", s.ID).First(&adj).Error)
	assert.Equal(t, model.TenderCash, adj.Tender)
	assert.Equal(t, model.Money(-500), adj.Amount)
}

func TestE2E_SecondOpenRejected(t *testing.T) {
	env := setupTestEnv(t)

	env.openSession(t, "REG-03", map[string]int64{"cash": 1000})

	resp := do(t, env.server, "POST", "/v1/sessions/open",
		jsonBody(t, map[string]any{"register_id": "REG-03", "opening_balances": map[string]int64{}}),
		env.token)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestE2E_StaleVersionCloseReturnsCurrentVersion(t *testing.T) {
	env := setupTestEnv(t)

	s := env.openSession(t, "REG-04", map[string]int64{"cash": 1000})

	resp := do(t, env.server, "POST", "/v1/sessions/"+s.ID+"/close",
		jsonBody(t, map[string]any{
			"expected_version": 5,
			"closing_balances": map[string]int64{"cash": 1000},
		}), env.token)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var body struct {
		Detail         string `json:"detail"`
		CurrentVersion int    `json:"current_version"`
	}
	decodeJSON(t, resp, &body)
	assert.Equal(t, 1, body.CurrentVersion)
}

func TestE2E_ConcurrentOpenSingleWinner(t *testing.T) {
	env := setupTestEnv(t)

	const attempts = 6
	codes := make(chan int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := do(t, env.server, "POST", "/v1/sessions/open",
				jsonBody(t, map[string]any{"register_id": "REG-05", "opening_balances": map[string]int64{"cash": 100}}),
				env.token)
			resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(codes)

	created, conflicts := 0, 0
	for code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, attempts-1, conflicts)
}
