package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/animegate/internal/bot"
	catalogdomain "github.com/smallbiznis/animegate/internal/catalog/domain"
	catalogrepository "github.com/smallbiznis/animegate/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/animegate/internal/catalog/service"
	"github.com/smallbiznis/animegate/internal/clock"
	"github.com/smallbiznis/animegate/internal/config"
	"github.com/smallbiznis/animegate/internal/migration"
	"github.com/smallbiznis/animegate/internal/observability"
	"github.com/smallbiznis/animegate/internal/telegram"
	"github.com/smallbiznis/animegate/pkg/db"
	"github.com/smallbiznis/animegate/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "s3cr3t"

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, ev bot.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

type testServer struct {
	engine     *gin.Engine
	catalog    catalogdomain.Service
	dispatcher *mockDispatcher
}

func newTestServer(t *testing.T, mode string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))
	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	catalog := catalogservice.New(catalogservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  catalogrepository.Provide(),
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	})

	cfg := config.Config{Telegram: config.TelegramConfig{Mode: mode, WebhookSecret: testSecret}}
	dispatcher := &mockDispatcher{}
	engine := NewEngine(observability.Config{LogLevel: "info"}, nil)
	NewServer(ServerParams{
		Gin:        engine,
		Cfg:        cfg,
		Log:        zap.NewNop(),
		CatalogSvc: catalog,
		Intake:     telegram.NewIntake(nil, dispatcher, cfg, zap.NewNop()),
	})

	return &testServer{engine: engine, catalog: catalog, dispatcher: dispatcher}
}

func (s *testServer) do(method, target string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) seed(t *testing.T, name, genre string, views int) catalogdomain.Title {
	t.Helper()
	title, err := s.catalog.CreateTitle(context.Background(), catalogdomain.CreateTitleRequest{
		Name:      name,
		Year:      "2020",
		Genre:     genre,
		MediaRef:  "cover-" + name,
		MediaKind: catalogdomain.MediaKindPhoto,
	})
	require.NoError(t, err)
	for i := 0; i < views; i++ {
		_, err := s.catalog.ViewTitle(context.Background(), title.ID)
		require.NoError(t, err)
	}
	return title
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var body struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Data
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, config.TelegramModePolling)

	w := s.do(http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestWebhookDispatchesUpdate(t *testing.T) {
	s := newTestServer(t, config.TelegramModeWebhook)
	update := []byte(`{"update_id":41,"message":{"message_id":3,"date":0,` +
		`"from":{"id":42,"is_bot":false,"first_name":"Aziz"},` +
		`"chat":{"id":42,"type":"private"},"text":"Naruto"}}`)

	s.dispatcher.On("Dispatch", mock.Anything, mock.MatchedBy(func(ev bot.Event) bool {
		return ev.Kind == bot.EventText && ev.UserID == 42 && ev.Text == "Naruto"
	})).Return(nil).Once()

	w := s.do(http.MethodPost, "/telegram/webhook/"+testSecret, update)

	require.Equal(t, http.StatusOK, w.Code)
	s.dispatcher.AssertExpectations(t)
}

func TestWebhookRejectsWrongSecret(t *testing.T) {
	s := newTestServer(t, config.TelegramModeWebhook)

	w := s.do(http.MethodPost, "/telegram/webhook/guess", []byte(`{"update_id":1}`))

	assert.Equal(t, http.StatusNotFound, w.Code)
	s.dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t, config.TelegramModeWebhook)

	w := s.do(http.MethodPost, "/telegram/webhook/"+testSecret, []byte(`{not json`))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", decodeError(t, w).Type)
	s.dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestWebhookReportsStoppedDispatcher(t *testing.T) {
	s := newTestServer(t, config.TelegramModeWebhook)
	s.dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(bot.ErrDispatcherStopped)
	update := []byte(`{"update_id":7,"callback_query":{"id":"cb","from":{"id":42,"is_bot":false,"first_name":"Aziz"},"data":"page=1=1=1=next"}}`)

	w := s.do(http.MethodPost, "/telegram/webhook/"+testSecret, update)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWebhookRouteAbsentWhenPolling(t *testing.T) {
	s := newTestServer(t, config.TelegramModePolling)

	w := s.do(http.MethodPost, "/telegram/webhook/"+testSecret, []byte(`{"update_id":1}`))

	assert.Equal(t, http.StatusNotFound, w.Code)
	s.dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestListTitlesSorts(t *testing.T) {
	s := newTestServer(t, config.TelegramModePolling)
	s.seed(t, "Naruto", "Action", 5)
	s.seed(t, "Bleach", "Action", 9)
	s.seed(t, "Clannad", "Drama", 1)

	w := s.do(http.MethodGet, "/api/titles?sort=top&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	top := decodeData[[]titleResponse](t, w)
	require.Len(t, top, 2)
	assert.Equal(t, "Bleach", top[0].Name)
	assert.Equal(t, int64(9), top[0].Views)
	assert.Equal(t, "Naruto", top[1].Name)

	w = s.do(http.MethodGet, "/api/titles?q=drama&mode=genre", nil)
	require.Equal(t, http.StatusOK, w.Code)
	found := decodeData[[]titleResponse](t, w)
	require.Len(t, found, 1)
	assert.Equal(t, "Clannad", found[0].Name)
	assert.Equal(t, found[0].ID, found[0].Code)
}

func TestListTitlesPagesByName(t *testing.T) {
	s := newTestServer(t, config.TelegramModePolling)
	s.seed(t, "Naruto", "Action", 0)
	s.seed(t, "Bleach", "Action", 0)
	s.seed(t, "Monster", "Thriller", 0)

	w := s.do(http.MethodGet, "/api/titles?sort=name&page=1&page_size=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data     []titleResponse     `json:"data"`
		PageInfo pagination.PageInfo `json:"page_info"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "Bleach", body.Data[0].Name)
	assert.Equal(t, "Monster", body.Data[1].Name)
	assert.Equal(t, pagination.PageInfo{Page: 1, PageSize: 2, Total: 3, HasMore: true}, body.PageInfo)

	w = s.do(http.MethodGet, "/api/titles?sort=name&page=2&page_size=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "Naruto", body.Data[0].Name)
	assert.False(t, body.PageInfo.HasMore)
}

func TestListTitlesValidatesQuery(t *testing.T) {
	s := newTestServer(t, config.TelegramModePolling)

	cases := []struct {
		target string
		field  string
	}{
		{target: "/api/titles?sort=oldest", field: "sort"},
		{target: "/api/titles?limit=0", field: "limit"},
		{target: "/api/titles?limit=abc", field: "limit"},
		{target: "/api/titles?limit=500", field: "limit"},
		{target: "/api/titles?q=x&mode=year", field: "mode"},
		{target: "/api/titles?sort=name&page_size=0", field: "page_size"},
		{target: "/api/titles?sort=name&page_size=1000", field: "page_size"},
	}
	for _, tc := range cases {
		w := s.do(http.MethodGet, tc.target, nil)
		require.Equal(t, http.StatusBadRequest, w.Code, tc.target)
		payload := decodeError(t, w)
		require.Len(t, payload.Errors, 1, tc.target)
		assert.Equal(t, tc.field, payload.Errors[0].Field, tc.target)
	}
}

func TestGetTitleBySlug(t *testing.T) {
	s := newTestServer(t, config.TelegramModePolling)
	title := s.seed(t, "One Piece", "Adventure", 0)

	w := s.do(http.MethodGet, "/api/titles/"+title.Slug, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeData[titleResponse](t, w)
	assert.Equal(t, "One Piece", got.Name)
	assert.Equal(t, int64(0), got.Views)

	w = s.do(http.MethodGet, "/api/titles/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeError(t, w).Type)
}

func TestCatalogStats(t *testing.T) {
	s := newTestServer(t, config.TelegramModePolling)
	title := s.seed(t, "Naruto", "Action", 0)
	_, err := s.catalog.AppendEpisode(context.Background(), title.ID, "ep-1")
	require.NoError(t, err)

	w := s.do(http.MethodGet, "/api/stats", nil)

	require.Equal(t, http.StatusOK, w.Code)
	stats := decodeData[catalogdomain.Stats](t, w)
	assert.Equal(t, int64(1), stats.Titles)
	assert.Equal(t, int64(1), stats.Episodes)
}

func TestClassifyErrorForLog(t *testing.T) {
	errType, code := classifyErrorForLog(catalogdomain.ErrInvalidQuery)
	assert.Equal(t, "validation_error", errType)
	assert.Equal(t, "invalid_query", code)

	errType, code = classifyErrorForLog(catalogdomain.ErrNotFound)
	assert.Equal(t, "not_found", errType)
	assert.Equal(t, "not_found", code)
}
