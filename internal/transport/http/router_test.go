package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"aliaskit/client/internal/apiclient"
	"aliaskit/client/internal/auth"
	jwtpkg "aliaskit/client/internal/auth/jwt"
	"aliaskit/client/internal/config"
	"aliaskit/client/internal/credential"
	"aliaskit/client/internal/domain"
	"aliaskit/client/internal/health"
	"aliaskit/client/internal/middleware"
	"aliaskit/client/internal/monitoring"
	"aliaskit/client/internal/repository"
	"aliaskit/client/internal/storage/memory"
)

// MockAPI 模拟别名服务，同时满足别名仓库和登录服务的接口
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) ListAliases(ctx context.Context, page int, searchTerm string) ([]domain.Alias, error) {
	args := m.Called(ctx, page, searchTerm)
	aliases, _ := args.Get(0).([]domain.Alias)
	return aliases, args.Error(1)
}

func (m *MockAPI) GetAlias(ctx context.Context, id int64) (domain.Alias, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Alias), args.Error(1)
}

func (m *MockAPI) CreateAlias(ctx context.Context, req domain.AliasCreationRequest) (domain.Alias, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.Alias), args.Error(1)
}

func (m *MockAPI) CreateRandomAlias(ctx context.Context, mode domain.RandomAliasMode, note *string, hostname string) (domain.Alias, error) {
	args := m.Called(ctx, mode, note, hostname)
	return args.Get(0).(domain.Alias), args.Error(1)
}

func (m *MockAPI) UpdateAlias(ctx context.Context, id int64, update domain.AliasUpdate) error {
	return m.Called(ctx, id, update).Error(0)
}

func (m *MockAPI) ToggleAlias(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockAPI) DeleteAlias(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAPI) AliasActivities(ctx context.Context, id int64, page int) ([]domain.AliasActivity, error) {
	args := m.Called(ctx, id, page)
	activities, _ := args.Get(0).([]domain.AliasActivity)
	return activities, args.Error(1)
}

func (m *MockAPI) AliasOptions(ctx context.Context, hostname string) (domain.AliasOptions, error) {
	args := m.Called(ctx, hostname)
	return args.Get(0).(domain.AliasOptions), args.Error(1)
}

func (m *MockAPI) Mailboxes(ctx context.Context) ([]domain.Mailbox, error) {
	args := m.Called(ctx)
	mailboxes, _ := args.Get(0).([]domain.Mailbox)
	return mailboxes, args.Error(1)
}

func (m *MockAPI) Login(ctx context.Context, email, password string) (domain.LoginResult, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(domain.LoginResult), args.Error(1)
}

func (m *MockAPI) VerifyMFA(ctx context.Context, mfaKey, token string) (domain.APIKey, error) {
	args := m.Called(ctx, mfaKey, token)
	return args.Get(0).(domain.APIKey), args.Error(1)
}

func (m *MockAPI) UserInfo(ctx context.Context) (domain.UserInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.UserInfo), args.Error(1)
}

func (m *MockAPI) CheckAPIKey(ctx context.Context, key domain.APIKey) (domain.UserInfo, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(domain.UserInfo), args.Error(1)
}

type testEnv struct {
	router      *gin.Engine
	api         *MockAPI
	repo        *repository.AliasRepository
	credentials *credential.MemoryProvider
	token       string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	api := new(MockAPI)
	store := memory.NewStore()
	repo := repository.NewAliasRepository(api, store, 2, nil, nil)
	credentials := credential.NewMemoryProvider("abcd1234")
	manager, err := jwtpkg.NewManager("test-secret", "aliaskit-test", time.Hour)
	require.NoError(t, err)
	token, err := manager.Issue()
	require.NoError(t, err)

	router := NewRouter(RouterDependencies{
		Config: config.BridgeConfig{
			AllowedOrigins: []string{"http://localhost"},
			SessionTTL:     time.Hour,
		},
		Repository:  repo,
		AuthService: auth.NewService(api, credentials, repo, nil),
		JWTManager:  manager,
		Health:      health.NewHealthChecker(store, nil),
		Metrics:     monitoring.NewMetrics(),
	})

	return &testEnv{
		router:      router,
		api:         api,
		repo:        repo,
		credentials: credentials,
		token:       token.AccessToken,
	}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+e.token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
	}
	return w, resp
}

func testAliases(first int64, n int) []domain.Alias {
	out := make([]domain.Alias, 0, n)
	for i := 0; i < n; i++ {
		id := first + int64(i)
		out = append(out, domain.Alias{
			ID:                id,
			Email:             fmt.Sprintf("alias%d@sl.test", id),
			Enabled:           true,
			CreationTimestamp: 10_000 - id,
		})
	}
	return out
}

func TestRouter_Session(t *testing.T) {
	t.Run("缺少令牌时拒绝访问", func(t *testing.T) {
		env := newTestEnv(t)

		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/aliases", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("健康检查与指标无需令牌", func(t *testing.T) {
		env := newTestEnv(t)

		for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, w.Code, path)
		}
	})

	t.Run("查询参数令牌写入 cookie", func(t *testing.T) {
		env := newTestEnv(t)

		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/session?token="+env.token, nil))
		require.Equal(t, http.StatusOK, w.Code)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, middleware.SessionCookie, cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)

		req := httptest.NewRequest(http.MethodGet, "/api/aliases", nil)
		req.AddCookie(cookies[0])
		w = httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("拒绝非 JSON 请求体", func(t *testing.T) {
		env := newTestEnv(t)

		req := httptest.NewRequest(http.MethodPost, "/api/aliases/search", bytes.NewBufferString("query=shop"))
		req.Header.Set("Content-Type", "text/plain")
		req.Header.Set("Authorization", "Bearer "+env.token)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})
}

func TestRouter_Aliases(t *testing.T) {
	t.Run("加载下一页并返回快照", func(t *testing.T) {
		env := newTestEnv(t)
		env.api.On("ListAliases", mock.Anything, 0, "").Return(testAliases(1, 2), nil).Once()

		w, resp := env.do(t, http.MethodPost, "/api/aliases/fetch", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var snapshot repository.Snapshot
		require.NoError(t, json.Unmarshal(resp.Data, &snapshot))
		assert.Len(t, snapshot.Aliases, 2)
		assert.Equal(t, 1, snapshot.Cursor)
		assert.True(t, snapshot.MoreToLoad)

		w, resp = env.do(t, http.MethodGet, "/api/aliases", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(resp.Data, &snapshot))
		assert.Len(t, snapshot.Aliases, 2)
		env.api.AssertExpectations(t)
	})

	t.Run("搜索从第一页开始", func(t *testing.T) {
		env := newTestEnv(t)
		env.api.On("ListAliases", mock.Anything, 0, "shop").Return(testAliases(7, 1), nil).Once()

		w, resp := env.do(t, http.MethodPost, "/api/aliases/search", gin.H{"query": " shop "})
		require.Equal(t, http.StatusOK, w.Code)

		var snapshot repository.Snapshot
		require.NoError(t, json.Unmarshal(resp.Data, &snapshot))
		assert.Equal(t, "shop", snapshot.Term)
		assert.False(t, snapshot.MoreToLoad)
	})

	t.Run("网络错误返回 503", func(t *testing.T) {
		env := newTestEnv(t)
		env.api.On("ListAliases", mock.Anything, 0, "").Return(nil, apiclient.ErrNetwork).Once()

		w, resp := env.do(t, http.MethodPost, "/api/aliases/fetch", gin.H{"reset": true})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "无法连接别名服务，请检查网络", resp.Msg)
	})

	t.Run("创建前校验前缀", func(t *testing.T) {
		env := newTestEnv(t)

		w, resp := env.do(t, http.MethodPost, "/api/aliases", gin.H{
			"prefix":      "Not Valid",
			"suffix":      gin.H{"suffix": ".x@sl.test", "signed_suffix": "sig"},
			"mailbox_ids": []int64{1},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "别名前缀只能包含小写字母、数字、点、下划线和连字符", resp.Msg)
		env.api.AssertNotCalled(t, "CreateAlias", mock.Anything, mock.Anything)
	})

	t.Run("创建成功后出现在列表头部", func(t *testing.T) {
		env := newTestEnv(t)
		created := testAliases(42, 1)[0]
		env.api.On("CreateAlias", mock.Anything, mock.MatchedBy(func(req domain.AliasCreationRequest) bool {
			return req.Prefix == "shop" && req.Suffix.Signature == "sig"
		})).Return(created, nil).Once()

		w, resp := env.do(t, http.MethodPost, "/api/aliases", gin.H{
			"prefix":      "shop",
			"suffix":      gin.H{"suffix": ".x@sl.test", "signed_suffix": "sig"},
			"mailbox_ids": []int64{1},
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var alias domain.Alias
		require.NoError(t, json.Unmarshal(resp.Data, &alias))
		assert.Equal(t, int64(42), alias.ID)
		assert.Equal(t, int64(42), env.repo.Snapshot().Aliases[0].ID)
	})

	t.Run("重复别名返回 409", func(t *testing.T) {
		env := newTestEnv(t)
		env.api.On("CreateAlias", mock.Anything, mock.Anything).Return(domain.Alias{}, apiclient.ErrDuplicatedAlias).Once()

		w, resp := env.do(t, http.MethodPost, "/api/aliases", gin.H{
			"prefix":      "shop",
			"suffix":      gin.H{"suffix": ".x@sl.test", "signed_suffix": "sig"},
			"mailbox_ids": []int64{1},
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "该别名已存在，请更换前缀", resp.Msg)
	})

	t.Run("随机别名模式校验", func(t *testing.T) {
		env := newTestEnv(t)

		w, _ := env.do(t, http.MethodPost, "/api/aliases/random", gin.H{"mode": "emoji"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		env.api.On("CreateRandomAlias", mock.Anything, domain.RandomAliasWord, (*string)(nil), "example.com").
			Return(testAliases(9, 1)[0], nil).Once()
		w, _ = env.do(t, http.MethodPost, "/api/aliases/random", gin.H{"mode": "word", "hostname": "example.com"})
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("切换返回服务端的值", func(t *testing.T) {
		env := newTestEnv(t)
		env.api.On("ToggleAlias", mock.Anything, int64(5)).Return(false, nil).Once()

		w, resp := env.do(t, http.MethodPost, "/api/aliases/5/toggle", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var result toggleResponse
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		assert.Equal(t, toggleResponse{ID: 5, Enabled: false}, result)
	})

	t.Run("非法 ID", func(t *testing.T) {
		env := newTestEnv(t)

		w, resp := env.do(t, http.MethodDelete, "/api/aliases/abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, MsgInvalidAliasID, resp.Msg)
	})

	t.Run("空更新被拒绝", func(t *testing.T) {
		env := newTestEnv(t)

		w, resp := env.do(t, http.MethodPatch, "/api/aliases/5", gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "没有需要更新的字段", resp.Msg)
	})

	t.Run("删除后从列表移除", func(t *testing.T) {
		env := newTestEnv(t)
		env.api.On("ListAliases", mock.Anything, 0, "").Return(testAliases(1, 2), nil).Once()
		env.api.On("DeleteAlias", mock.Anything, int64(1)).Return(nil).Once()

		w, _ := env.do(t, http.MethodPost, "/api/aliases/fetch", nil)
		require.Equal(t, http.StatusOK, w.Code)
		w, _ = env.do(t, http.MethodDelete, "/api/aliases/1", nil)
		require.Equal(t, http.StatusOK, w.Code)

		snapshot := env.repo.Snapshot()
		require.Len(t, snapshot.Aliases, 1)
		assert.Equal(t, int64(2), snapshot.Aliases[0].ID)
	})

	t.Run("离线读取缓存", func(t *testing.T) {
		env := newTestEnv(t)
		env.api.On("ListAliases", mock.Anything, 0, "").Return(testAliases(1, 2), nil).Once()
		w, _ := env.do(t, http.MethodPost, "/api/aliases/fetch", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w, resp := env.do(t, http.MethodGet, "/api/aliases/cached?page=0&query=alias2", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var aliases []domain.Alias
		require.NoError(t, json.Unmarshal(resp.Data, &aliases))
		require.Len(t, aliases, 1)
		assert.Equal(t, int64(2), aliases[0].ID)

		w, _ = env.do(t, http.MethodGet, "/api/aliases/cached?page=-1", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("活动记录", func(t *testing.T) {
		env := newTestEnv(t)
		env.api.On("AliasActivities", mock.Anything, int64(3), 1).
			Return([]domain.AliasActivity{{From: "a@example.com", To: "alias3@sl.test"}}, nil).Once()

		w, resp := env.do(t, http.MethodGet, "/api/aliases/3/activities?page=1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var activities []domain.AliasActivity
		require.NoError(t, json.Unmarshal(resp.Data, &activities))
		assert.Len(t, activities, 1)
	})

	t.Run("创建页上下文", func(t *testing.T) {
		env := newTestEnv(t)
		env.api.On("AliasOptions", mock.Anything, "").
			Return(domain.AliasOptions{CanCreate: true, Suffixes: []domain.Suffix{{Value: ".x@sl.test", Signature: "sig"}}}, nil).Once()
		env.api.On("Mailboxes", mock.Anything).
			Return([]domain.Mailbox{{ID: 2, Email: "z@example.com"}, {ID: 1, Email: "a@example.com"}}, nil).Once()

		w, resp := env.do(t, http.MethodGet, "/api/creation-context", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var result repository.CreationContext
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		assert.True(t, result.Options.CanCreate)
		require.Len(t, result.Mailboxes, 2)
		assert.Equal(t, "a@example.com", result.Mailboxes[0].Email)
	})
}

func TestRouter_Account(t *testing.T) {
	t.Run("开启 MFA 时返回 mfa_key", func(t *testing.T) {
		env := newTestEnv(t)
		env.api.On("Login", mock.Anything, "me@example.com", "pw").
			Return(domain.LoginResult{MFAEnabled: true, MFAKey: "mfa-key"}, nil).Once()

		w, resp := env.do(t, http.MethodPost, "/api/account/login", gin.H{"email": "me@example.com", "password": "pw"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, MsgMFARequired, resp.Msg)

		var result loginResponse
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		assert.True(t, result.MFAEnabled)
		assert.Equal(t, "mfa-key", result.MFAKey)
	})

	t.Run("登录响应不包含 API Key", func(t *testing.T) {
		env := newTestEnv(t)
		env.api.On("Login", mock.Anything, "me@example.com", "pw").
			Return(domain.LoginResult{Email: "me@example.com", APIKey: "secret-key-1234"}, nil).Once()

		w, _ := env.do(t, http.MethodPost, "/api/account/login", gin.H{"email": "me@example.com", "password": "pw"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "secret-key-1234")

		key, err := env.credentials.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.APIKey("secret-key-1234"), key)
	})

	t.Run("切换到无效的 API Key 时保留原会话", func(t *testing.T) {
		env := newTestEnv(t)
		env.api.On("CheckAPIKey", mock.Anything, domain.APIKey("wrong-key")).
			Return(domain.UserInfo{}, apiclient.ErrInvalidAPIKey).Once()

		w, _ := env.do(t, http.MethodPost, "/api/account/api-key", gin.H{"api_key": "wrong-key"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		key, err := env.credentials.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.APIKey("abcd1234"), key)
	})

	t.Run("API Key 失效返回 401", func(t *testing.T) {
		env := newTestEnv(t)
		env.api.On("UserInfo", mock.Anything).Return(domain.UserInfo{}, apiclient.ErrInvalidAPIKey).Once()

		w, resp := env.do(t, http.MethodGet, "/api/account/me", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "API Key 无效或已失效，请重新登录", resp.Msg)
	})

	t.Run("登出后未登录", func(t *testing.T) {
		env := newTestEnv(t)

		w, resp := env.do(t, http.MethodPost, "/api/account/logout", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, MsgLoggedOut, resp.Msg)

		w, _ = env.do(t, http.MethodGet, "/api/account/me", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestGetErrorMessage(t *testing.T) {
	t.Run("每个类别都有唯一消息", func(t *testing.T) {
		seen := make(map[string]apiclient.Kind)
		for kind, m := range kindMessages {
			other, dup := seen[m.msg]
			assert.False(t, dup, "%s and %s share a message", kind, other)
			seen[m.msg] = kind
		}
	})

	t.Run("未知状态码带上状态码", func(t *testing.T) {
		status, msg := GetErrorMessage(&apiclient.APIError{Kind: apiclient.KindUnknownStatusCode, StatusCode: 418})
		assert.Equal(t, http.StatusBadGateway, status)
		assert.Contains(t, msg, "418")
	})

	t.Run("包装后的本地错误", func(t *testing.T) {
		status, msg := GetErrorMessage(fmt.Errorf("wrapped: %w", repository.ErrEmptyUpdate))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "没有需要更新的字段", msg)
	})

	t.Run("未知错误", func(t *testing.T) {
		status, msg := GetErrorMessage(fmt.Errorf("boom"))
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, MsgInternalError, msg)
	})
}
