package server_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-token-broker/cache"
	"github.com/jrsteele09/go-token-broker/dataapi"
	"github.com/jrsteele09/go-token-broker/internal/config"
	"github.com/jrsteele09/go-token-broker/server"
	"github.com/jrsteele09/go-token-broker/server/authflowrepo"
	"github.com/jrsteele09/go-token-broker/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testClientID = "test-client"
	frontendURL  = "http://frontend.test"
	loggedOutMsg = `{"status":"failed","message":"internal server error","data":"logged out"}`
)

// fakeProvider stands in for the authorization server and the data APIs.
type fakeProvider struct {
	*httptest.Server

	mu            sync.Mutex
	signingKey    *rsa.PrivateKey
	nonce         string
	revoked       []string
	lastPageToken string
	lastVerifier  string
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseForm()) {
			return
		}
		if r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		p.mu.Lock()
		p.lastVerifier = r.PostForm.Get("code_verifier")
		key, nonce := p.signingKey, p.nonce
		p.mu.Unlock()

		body := map[string]any{
			"access_token":  "access-123",
			"token_type":    "Bearer",
			"refresh_token": "refresh-456",
			"expires_in":    3600,
			"scope":         "https://www.googleapis.com/auth/gmail.readonly",
		}
		if key != nil {
			claims := jwt.MapClaims{
				"iss":   p.URL,
				"aud":   testClientID,
				"sub":   "user-1",
				"nonce": nonce,
				"iat":   time.Now().Unix(),
				"exp":   time.Now().Add(time.Hour).Unix(),
			}
			signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
			if !assert.NoError(t, err) {
				return
			}
			body["id_token"] = signed
		}
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(body))
	})

	mux.HandleFunc("GET /gmail/v1/users/me/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"unauthenticated"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"emailAddress":"user@example.com","messagesTotal":12}`)
	})

	mux.HandleFunc("GET /v1/people/me/connections", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.lastPageToken = r.URL.Query().Get("pageToken")
		p.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"connections":[{"resourceName":"people/1"}],"nextPageToken":"page-2"}`)
	})

	mux.HandleFunc("POST /revoke", func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseForm()) {
			return
		}
		p.mu.Lock()
		p.revoked = append(p.revoked, r.PostForm.Get("token"))
		p.mu.Unlock()
	})

	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Close)
	return p
}

func (p *fakeProvider) revokedTokens() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.revoked...)
}

func (p *fakeProvider) pageToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPageToken
}

func (p *fakeProvider) codeVerifier() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastVerifier
}

func (p *fakeProvider) setNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nonce = nonce
}

func (p *fakeProvider) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     testClientID,
		ClientSecret: "secret",
		RedirectURL:  "http://broker.test/auth/google/callback",
		Scopes:       []string{"https://www.googleapis.com/auth/gmail.readonly"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.URL + "/auth",
			TokenURL:  p.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

type harness struct {
	mr       *miniredis.Miniredis
	store    *cache.Client
	provider *fakeProvider
	srv      *httptest.Server
	client   *http.Client
}

type harnessOption func(*server.Deps, *fakeProvider)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	reg := prometheus.NewRegistry()
	store, err := cache.New(mr.Addr(), cache.WithMetrics(cache.NewMetrics(reg)), cache.WithOpTimeout(500*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg, err := config.NewFromMap(map[string]string{
		"ENV":          "TEST",
		"APP_NAME":     "broker-test",
		"FRONTEND_URL": frontendURL,
		"STATE_SECRET": "state-secret-for-tests",
	})
	require.NoError(t, err)

	provider := newFakeProvider(t)
	oauthConfig := provider.oauthConfig()
	deps := server.Deps{
		Broker:  sessions.NewBroker(store),
		Flows:   authflowrepo.NewCacheRepo(store, cfg.GetStateTTL()),
		OAuth:   oauthConfig,
		API:     dataapi.New(oauthConfig, provider.URL, provider.URL, dataapi.WithRevokeURL(provider.URL+"/revoke")),
		Health:  store,
		Metrics: reg,
		Logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&deps, provider)
	}

	s, err := server.New(cfg, deps)
	require.NoError(t, err)
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	return &harness{
		mr:       mr,
		store:    store,
		provider: provider,
		srv:      srv,
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}
}

func (h *harness) get(t *testing.T, path string, header http.Header) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, h.srv.URL+path, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

// signIn runs the redirect leg and returns the provider authorization URL.
func (h *harness) signIn(t *testing.T) *url.URL {
	t.Helper()
	resp, _ := h.get(t, "/", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	return loc
}

func (h *harness) callback(t *testing.T, code, state string) (*http.Response, string) {
	t.Helper()
	q := url.Values{"code": {code}, "state": {state}}
	return h.get(t, "/auth/google/callback?"+q.Encode(), nil)
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == "user-id" {
			return c
		}
	}
	return nil
}

func withSession(id string) http.Header {
	return http.Header{"User-Id": {id}}
}

func TestServer_SignInFlow(t *testing.T) {
	h := newHarness(t)

	authURL := h.signIn(t)
	require.Equal(t, h.provider.URL+"/auth", authURL.Scheme+"://"+authURL.Host+authURL.Path)
	q := authURL.Query()
	require.Equal(t, testClientID, q.Get("client_id"))
	require.Equal(t, "offline", q.Get("access_type"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.NotEmpty(t, q.Get("code_challenge"))
	require.Empty(t, q.Get("nonce"))
	state := q.Get("state")
	require.NotEmpty(t, state)

	resp, _ := h.callback(t, "good-code", state)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, frontendURL, resp.Header.Get("Location"))
	require.NotEmpty(t, h.provider.codeVerifier())

	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	sessionID := cookie.Value
	require.NotEmpty(t, sessionID)

	t.Run("credentials are stored under the session id", func(t *testing.T) {
		raw, err := h.mr.Get(sessions.Key(sessionID))
		require.NoError(t, err)
		var stored map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &stored))
		require.Equal(t, "access-123", stored["access_token"])
		require.Equal(t, "refresh-456", stored["refresh_token"])
	})

	t.Run("flow state is consumed", func(t *testing.T) {
		keys, err := h.store.SearchKeys(context.Background(), "authflow:*")
		require.NoError(t, err)
		require.Empty(t, keys)

		resp, _ := h.callback(t, "good-code", state)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("info returns the provider profile", func(t *testing.T) {
		resp, body := h.get(t, "/info", withSession(sessionID))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.JSONEq(t, `{"status":"success","message":null,"data":{"emailAddress":"user@example.com","messagesTotal":12}}`, body)
	})

	t.Run("session cookie is accepted in place of the header", func(t *testing.T) {
		resp, _ := h.get(t, "/info", http.Header{"Cookie": {"user-id=" + sessionID}})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("contacts passes the page token through", func(t *testing.T) {
		resp, body := h.get(t, "/contacts?nextPageToken=page-1", withSession(sessionID))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, body, `"nextPageToken":"page-2"`)
		require.Equal(t, "page-1", h.provider.pageToken())
	})

	t.Run("logout is not reachable with GET", func(t *testing.T) {
		resp, _ := h.get(t, "/auth/logout", withSession(sessionID))
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		require.True(t, h.mr.Exists(sessions.Key(sessionID)))
		require.Empty(t, h.provider.revokedTokens())
	})

	t.Run("logout revokes and clears the session", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, h.srv.URL+"/auth/logout", nil)
		require.NoError(t, err)
		req.Header.Set("user-id", sessionID)
		resp, err := h.client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, []string{"refresh-456"}, h.provider.revokedTokens())
		require.False(t, h.mr.Exists(sessions.Key(sessionID)))

		resp, body := h.get(t, "/info", withSession(sessionID))
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		require.JSONEq(t, loggedOutMsg, body)
	})
}

func TestServer_ReturnURL(t *testing.T) {
	h := newHarness(t)

	for _, tc := range []struct {
		name     string
		returnTo string
		expected string
	}{
		{name: "frontend path kept", returnTo: frontendURL + "/inbox", expected: frontendURL + "/inbox"},
		{name: "foreign host replaced", returnTo: "https://evil.test/steal", expected: frontendURL},
	} {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := h.get(t, "/?return_to="+url.QueryEscape(tc.returnTo), nil)
			require.Equal(t, http.StatusFound, resp.StatusCode)
			loc, err := url.Parse(resp.Header.Get("Location"))
			require.NoError(t, err)

			resp, _ = h.callback(t, "good-code", loc.Query().Get("state"))
			require.Equal(t, http.StatusFound, resp.StatusCode)
			require.Equal(t, tc.expected, resp.Header.Get("Location"))
		})
	}
}

func TestServer_CallbackRejections(t *testing.T) {
	h := newHarness(t)

	t.Run("provider error", func(t *testing.T) {
		resp, body := h.get(t, "/auth/google/callback?error=access_denied", nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Contains(t, body, "access_denied")
	})

	t.Run("missing code", func(t *testing.T) {
		resp, _ := h.get(t, "/auth/google/callback?state=abc", nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("forged state", func(t *testing.T) {
		resp, _ := h.callback(t, "good-code", "not-a-signed-state")
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Nil(t, sessionCookie(resp))
	})

	t.Run("bad code", func(t *testing.T) {
		state := h.signIn(t).Query().Get("state")
		resp, _ := h.callback(t, "bad-code", state)
		require.Equal(t, http.StatusBadGateway, resp.StatusCode)
		require.Nil(t, sessionCookie(resp))
	})
}

func TestServer_ConcurrentCallbacksShareOneState(t *testing.T) {
	h := newHarness(t)
	state := h.signIn(t).Query().Get("state")
	target := h.srv.URL + "/auth/google/callback?" + url.Values{"code": {"good-code"}, "state": {state}}.Encode()

	const callers = 8
	statuses := make(chan int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := h.client.Get(target)
			if !assert.NoError(t, err) {
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	counts := map[int]int{}
	for code := range statuses {
		counts[code]++
	}
	require.Equal(t, map[int]int{http.StatusFound: 1, http.StatusBadRequest: callers - 1}, counts)

	keys, err := h.store.SearchKeys(context.Background(), "session:*")
	require.NoError(t, err)
	require.Len(t, keys, 1)
}

func TestServer_LoggedOutResponses(t *testing.T) {
	h := newHarness(t)

	for _, tc := range []struct {
		name   string
		header http.Header
		setup  func()
	}{
		{name: "no session presented"},
		{name: "unknown session", header: withSession("does-not-exist")},
		{
			name:   "corrupt session",
			header: withSession("corrupt"),
			setup:  func() { require.NoError(t, h.mr.Set(sessions.Key("corrupt"), "not json")) },
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setup != nil {
				tc.setup()
			}
			for _, path := range []string{"/info", "/contacts"} {
				resp, body := h.get(t, path, tc.header)
				require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
				require.JSONEq(t, loggedOutMsg, body)
			}
		})
	}

	t.Run("store unavailable", func(t *testing.T) {
		h.mr.SetError("ERR down")
		defer h.mr.SetError("")
		resp, body := h.get(t, "/info", withSession("anything"))
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		require.JSONEq(t, loggedOutMsg, body)
	})
}

func TestServer_ProviderFailure(t *testing.T) {
	h := newHarness(t)

	id, err := sessions.NewBroker(h.store).CreateSession(context.Background(), sessions.Credentials{AccessToken: "expired"})
	require.NoError(t, err)

	resp, body := h.get(t, "/info", withSession(id))
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var result struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    string `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &result))
	require.Equal(t, "failed", result.Status)
	require.Equal(t, "internal server error", result.Message)
	require.Contains(t, result.Data, "401")
}

func TestServer_SaveFailure(t *testing.T) {
	flows := authflowrepo.NewInMemoryRepo()
	h := newHarness(t, func(d *server.Deps, _ *fakeProvider) { d.Flows = flows })

	state := h.signIn(t).Query().Get("state")
	h.mr.SetError("ERR read only")
	defer h.mr.SetError("")

	resp, body := h.callback(t, "good-code", state)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.JSONEq(t, `{"status":"failed","message":"error in saving credentials","data":null}`, body)
	require.Nil(t, sessionCookie(resp))
}

func TestServer_IDTokenVerification(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	h := newHarness(t, func(d *server.Deps, p *fakeProvider) {
		p.signingKey = key
		keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
		d.Verifier = oidc.NewVerifier(p.URL, keySet, &oidc.Config{ClientID: testClientID})
	})

	t.Run("matching nonce creates a session", func(t *testing.T) {
		q := h.signIn(t).Query()
		require.NotEmpty(t, q.Get("nonce"))
		h.provider.setNonce(q.Get("nonce"))

		resp, _ := h.callback(t, "good-code", q.Get("state"))
		require.Equal(t, http.StatusFound, resp.StatusCode)
		cookie := sessionCookie(resp)
		require.NotNil(t, cookie)

		raw, err := h.mr.Get(sessions.Key(cookie.Value))
		require.NoError(t, err)
		require.Contains(t, raw, `"id_token"`)
	})

	t.Run("nonce mismatch is rejected", func(t *testing.T) {
		q := h.signIn(t).Query()
		h.provider.setNonce("replayed-nonce")

		resp, _ := h.callback(t, "good-code", q.Get("state"))
		require.Equal(t, http.StatusBadGateway, resp.StatusCode)
		require.Nil(t, sessionCookie(resp))
	})
}

func TestServer_HealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.get(t, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := h.get(t, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "tokenbroker_cache_operations_total")

	h.mr.SetError("ERR down")
	defer h.mr.SetError("")
	resp, _ = h.get(t, "/healthz", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_CORSPreflight(t *testing.T) {
	h := newHarness(t)

	req, err := http.NewRequest(http.MethodOptions, h.srv.URL+"/info", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", frontendURL)
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "user-id")
}

func TestNew_RequiresDependencies(t *testing.T) {
	cfg, err := config.NewFromMap(nil)
	require.NoError(t, err)
	_, err = server.New(cfg, server.Deps{})
	require.Error(t, err)
}
