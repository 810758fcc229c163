package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybercongress/cyberauth/core"
	"github.com/cybercongress/cyberauth/internal/config"
	"github.com/cybercongress/cyberauth/internal/cosmos/cosmostest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Addr: ":0"},
		Auth: config.AuthConfig{
			HRP:          "bostrom",
			ChallengeTTL: 10 * time.Minute,
			Identity:     config.IdentityStatic,
		},
		JWT:   config.JWTConfig{Secret: "secret", Expiry: time.Hour},
		Store: config.StoreConfig{Backend: config.BackendMemory, Timeout: time.Second},
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.JWT.Secret = ""

	_, err := New(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestNew_Backends(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{"memory", func(c *config.Config) {}},
		{"sqlite", func(c *config.Config) {
			c.Store.Backend = config.BackendSQLite
			c.SQLite.Path = filepath.Join(t.TempDir(), "auth.db")
		}},
		{"redis with events", func(c *config.Config) {
			c.Store.Backend = config.BackendRedis
			c.Redis.URL = "redis://" + mr.Addr()
			c.Events.Enabled = true
			c.Events.Topic = "test.authenticated"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)

			a, err := New(context.Background(), cfg, nil)
			require.NoError(t, err)
			defer a.Close()

			loginThroughRouter(t, a)
		})
	}
}

// loginThroughRouter performs a full challenge/verify round trip against the wired router
func loginThroughRouter(t *testing.T, a *App) {
	t.Helper()
	router := a.Router()
	wallet := cosmostest.MustNewWallet(a.Config.Auth.HRP)

	post := func(path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		req := httptest.NewRequest(http.MethodPost, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := post("/auth/web3/challenge", map[string]string{"wallet_address": wallet.Address})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var ch struct{ Nonce, Message string }
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ch))

	w = post("/auth/web3/verify", map[string]string{
		"wallet_address": wallet.Address,
		"pub_key":        wallet.PubKeyB64,
		"signature":      wallet.Sign(ch.Message),
		"nonce":          ch.Nonce,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success     bool   `json:"success"`
		Error       string `json:"error"`
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success, resp.Error)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestServer(t *testing.T) {
	cfg := baseConfig()
	cfg.Server.ReadTimeout = 3 * time.Second

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	srv := a.Server()
	assert.Equal(t, ":0", srv.Addr)
	assert.Equal(t, 3*time.Second, srv.ReadTimeout)
	assert.NotNil(t, srv.Handler)
}

func TestRouter_HealthTracksRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	cfg := baseConfig()
	cfg.Store.Backend = config.BackendRedis
	cfg.Redis.URL = "redis://" + mr.Addr()

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()
	router := a.Router()

	health := func() int {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, health())

	mr.Close()
	assert.Equal(t, http.StatusServiceUnavailable, health())
}
