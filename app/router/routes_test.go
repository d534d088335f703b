package router_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/amirphl/humanflow/app/dto"
	"github.com/amirphl/humanflow/app/handlers"
	"github.com/amirphl/humanflow/app/middleware"
	"github.com/amirphl/humanflow/app/router"
	"github.com/amirphl/humanflow/app/services"
	businessflow "github.com/amirphl/humanflow/business_flow"
	"github.com/amirphl/humanflow/config"
	testingutil "github.com/amirphl/humanflow/testing"
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

const (
	ownerEmail = "ana@example.com"
	jwtSecret  = "router-test-secret-key-32-chars!"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

type testServer struct {
	app   *fiber.App
	store *testingutil.MemorySessionStore
}

func testConfig(allowDegraded bool) *config.ProductionConfig {
	return &config.ProductionConfig{
		Server: config.ServerConfig{BodyLimit: 1 << 20},
		Security: config.SecurityConfig{
			AllowedOrigins:    []string{"http://localhost:3000"},
			AuthRateLimit:     1000,
			GlobalRateLimit:   1000,
			RateLimitWindow:   time.Minute,
			PasswordMinLength: 8,
			BcryptCost:        bcrypt.MinCost,
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Import: config.ImportConfig{
			MinPhoneDigits: config.DefaultMinPhoneDigits,
			NameKeywords:   config.DefaultNameKeywords,
			PhoneKeywords:  config.DefaultPhoneKeywords,
			DefaultName:    config.DefaultNameLabel,
			DefaultStatus:  config.DefaultStatusLabel,
			MaxFileSize:    1 << 20,
			WorkbookTTL:    time.Minute,
		},
		Session:   config.SessionConfig{SaveBatchSize: 50, HistoryLimit: 5},
		Status:    config.StatusConfig{ClosedKeywords: config.DefaultClosedKeywords, Contacted: config.DefaultContactedLabel},
		Messaging: config.MessagingConfig{BaseURL: config.DefaultMessagingURL, DefaultTemplate: config.DefaultTemplate},
		AuthStore: config.AuthStoreConfig{AllowDegraded: allowDegraded},
	}
}

// newTestServer wires the full stack over in-memory stores. Without a store
// the server runs like a deployment with no database configured.
func newTestServer(t *testing.T, withStore bool) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := testConfig(!withStore)

	var (
		memStore *testingutil.MemorySessionStore
		store    businessflow.SessionStore
		creds    businessflow.CredentialStore
	)
	if withStore {
		memStore = testingutil.NewMemorySessionStore()
		memStore.SeedUser(ownerEmail)
		store, creds = memStore, memStore
	}

	tokens, err := services.NewTokenService(15*time.Minute, time.Hour, "humanflow", "humanflow-web", false, "", "", jwtSecret)
	require.NoError(t, err)

	metrics := middleware.NewDomainMetrics(prometheus.NewRegistry())
	templates := businessflow.NewTemplateFlow(store, nil, &config.CacheConfig{}, cfg.Messaging, logger)
	loginFlow := businessflow.NewLoginFlow(businessflow.NewAuthProvider(nil, creds, cfg.AuthStore.AllowDegraded, logger), store, tokens, services.NewLogMailService(logger), cfg.Security, logger)
	importFlow := businessflow.NewImportFlow(businessflow.NewMemoryWorkbookCache(cfg.Import.WorkbookTTL), store, cfg.Import, cfg.Status, metrics, logger)
	campaignFlow := businessflow.NewCampaignFlow(store, businessflow.NewMemorySentSetStore(), templates, nil, cfg.Status, cfg.Messaging, cfg.Session, metrics, logger)

	r := router.NewFiberRouter(cfg, router.Handlers{
		Auth:     handlers.NewAuthHandler(loginFlow, logger),
		Import:   handlers.NewImportHandler(importFlow, logger),
		Campaign: handlers.NewCampaignHandler(campaignFlow, logger),
		Template: handlers.NewTemplateHandler(templates, logger),
	}, middleware.NewAuthMiddleware(tokens), logger)
	r.SetupRoutes()

	return &testServer{app: r.GetApp(), store: memStore}
}

func (s *testServer) do(t *testing.T, req *http.Request) (*http.Response, envelope) {
	t.Helper()
	resp, err := s.app.Test(req, fiber.TestConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	var env envelope
	if resp.Header.Get(fiber.HeaderContentType) == fiber.MIMEApplicationJSON ||
		bytes.HasPrefix(body, []byte("{")) {
		require.NoError(t, json.Unmarshal(body, &env), string(body))
	}
	return resp, env
}

func jsonRequest(t *testing.T, method, path, token string, payload any) *http.Request {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return req
}

func (s *testServer) login(t *testing.T, password string) dto.LoginResponse {
	t.Helper()
	resp, env := s.do(t, jsonRequest(t, http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Email: ownerEmail, Password: password}))
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	var out dto.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func uploadRequest(t *testing.T, token, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/preview", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	return req
}

func sampleCSV(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	require.NoError(t, w.WriteAll(testingutil.SampleGrid()))
	return buf.Bytes()
}

// importSample previews and confirms the sample sheet
func (s *testServer) importSample(t *testing.T, token string) dto.ImportConfirmResponse {
	t.Helper()
	resp, env := s.do(t, uploadRequest(t, token, "leads.csv", sampleCSV(t)))
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	var preview dto.ImportPreviewResponse
	require.NoError(t, json.Unmarshal(env.Data, &preview))
	require.Len(t, preview.Sheets, 1)

	mapping := testingutil.SampleMapping()
	resp, env = s.do(t, jsonRequest(t, http.MethodPost, "/api/v1/imports/confirm", token, dto.ImportConfirmRequest{
		ImportToken:       preview.ImportToken,
		Sheet:             preview.Sheets[0].Name,
		NameColumn:        preview.Sheets[0].Suggestion.NameGuess,
		PhoneColumn:       preview.Sheets[0].Suggestion.PhoneGuess,
		VisibleColumns:    mapping.VisibleColumns,
		FilterableColumns: mapping.FilterableColumns,
	}))
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	var confirmed dto.ImportConfirmResponse
	require.NoError(t, json.Unmarshal(env.Data, &confirmed))
	return confirmed
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t, true)

	resp, env := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestRouter_NotFound(t *testing.T) {
	s := newTestServer(t, true)

	resp, env := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestRouter_Metrics(t *testing.T) {
	s := newTestServer(t, true)

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_Login(t *testing.T) {
	s := newTestServer(t, true)

	t.Run("valid credentials", func(t *testing.T) {
		out := s.login(t, testingutil.TestPassword)
		assert.NotEmpty(t, out.AccessToken)
		assert.NotEmpty(t, out.RefreshToken)
		assert.False(t, out.Degraded)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp, env := s.do(t, jsonRequest(t, http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Email: ownerEmail, Password: "nope-nope"}))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)
		assert.Empty(t, resp.Header.Get(middleware.DegradedHeader))
	})

	t.Run("malformed email", func(t *testing.T) {
		resp, env := s.do(t, jsonRequest(t, http.MethodPost, "/api/v1/auth/login", "", fiber.Map{"email": "not-an-email", "password": "x"}))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	})
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, true)

	resp, env := s.do(t, jsonRequest(t, http.MethodGet, "/api/v1/uploads", "", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "MISSING_AUTHORIZATION_HEADER", env.Error.Code)

	resp, env = s.do(t, jsonRequest(t, http.MethodGet, "/api/v1/template", "garbage", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, env.Success)
}

func TestRouter_ImportSendAndExport(t *testing.T) {
	s := newTestServer(t, true)
	token := s.login(t, testingutil.TestPassword).AccessToken

	confirmed := s.importSample(t, token)
	require.True(t, confirmed.Persisted)
	require.NotNil(t, confirmed.UploadID)
	assert.Len(t, confirmed.Contacts, 3)
	assert.Equal(t, 1, confirmed.Skipped)

	base := "/api/v1/uploads/" + strconv.FormatUint(uint64(*confirmed.UploadID), 10)

	resp, env := s.do(t, jsonRequest(t, http.MethodPost, base+"/contacts/row-0/send", token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	assert.Contains(t, string(env.Data), "https://wa.me/5551112222?text=")
	assert.Equal(t, config.DefaultContactedLabel, s.store.StatusOf(*confirmed.UploadID, "row-0"))

	resp, env = s.do(t, jsonRequest(t, http.MethodGet, base+"/dashboard?view=sent", token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	assert.Contains(t, string(env.Data), `"row-0"`)

	resp, env = s.do(t, jsonRequest(t, http.MethodGet, "/api/v1/uploads", token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	assert.Contains(t, string(env.Data), "leads.csv")

	resp, err := s.app.Test(jsonRequest(t, http.MethodGet, base+"/export", token, nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "leads-humanflow.xlsx")

	resp, env = s.do(t, jsonRequest(t, http.MethodPost, base+"/contacts/row-9/send", token, nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "CONTACT_NOT_FOUND", env.Error.Code)
}

func TestRouter_PreviewRejectsMissingAndEmptyFiles(t *testing.T) {
	s := newTestServer(t, true)
	token := s.login(t, testingutil.TestPassword).AccessToken

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/preview", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, env := s.do(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "FILE_REQUIRED", env.Error.Code)

	resp, env = s.do(t, uploadRequest(t, token, "leads.xlsx", []byte("not a zip archive")))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "WORKBOOK_UNREADABLE", env.Error.Code)
}

func TestRouter_Template(t *testing.T) {
	s := newTestServer(t, true)
	token := s.login(t, testingutil.TestPassword).AccessToken

	resp, env := s.do(t, jsonRequest(t, http.MethodPut, "/api/v1/template", token, dto.SaveTemplateRequest{Content: "Hola {{nombre}}"}))
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	resp, env = s.do(t, jsonRequest(t, http.MethodGet, "/api/v1/template", token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	var tpl dto.TemplateResponse
	require.NoError(t, json.Unmarshal(env.Data, &tpl))
	assert.Equal(t, "Hola {{nombre}}", tpl.Content)
}

func TestRouter_DegradedSession(t *testing.T) {
	s := newTestServer(t, false)

	resp, env := s.do(t, jsonRequest(t, http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Email: ownerEmail, Password: "anything"}))
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	assert.Equal(t, "true", resp.Header.Get(middleware.DegradedHeader))
	var login dto.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &login))
	assert.True(t, login.Degraded)

	confirmed := s.importSample(t, login.AccessToken)
	assert.False(t, confirmed.Persisted)
	assert.Nil(t, confirmed.UploadID)
	assert.Len(t, confirmed.Contacts, 3)

	resp, env = s.do(t, jsonRequest(t, http.MethodGet, "/api/v1/uploads", login.AccessToken, nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "PERSISTENCE_UNAVAILABLE", env.Error.Code)
	assert.Equal(t, "true", resp.Header.Get(middleware.DegradedHeader))
}
