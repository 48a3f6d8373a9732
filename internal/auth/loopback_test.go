package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newExchangeServer(t *testing.T, wantCode string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != wantCode || r.Form.Get("code_verifier") == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_request"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"exchanged-access","refresh_token":"exchanged-refresh","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type authResult struct {
	tok *oauth2.Token
	err error
}

// startFlow runs Authorize in the background and returns the consent URL it produced.
func startFlow(t *testing.T, tokenURL string) (*url.URL, <-chan authResult) {
	t.Helper()
	cfg := &oauth2.Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.example.test/o/oauth2/auth",
			TokenURL: tokenURL,
		},
		Scopes: DefaultScopes,
	}

	urlCh := make(chan string, 1)
	ctx := WithPrompter(context.Background(), func(_ context.Context, u string) error {
		urlCh <- u
		return nil
	})

	a := &LoopbackAuthorizer{Timeout: 10 * time.Second, Logger: discardLogger()}
	resCh := make(chan authResult, 1)
	go func() {
		tok, err := a.Authorize(ctx, cfg)
		resCh <- authResult{tok, err}
	}()

	select {
	case raw := <-urlCh:
		u, err := url.Parse(raw)
		require.NoError(t, err)
		return u, resCh
	case <-time.After(5 * time.Second):
		t.Fatal("consent URL was never delivered")
		return nil, nil
	}
}

func callbackURL(t *testing.T, authURL *url.URL, params url.Values) string {
	t.Helper()
	cb, err := url.Parse(authURL.Query().Get("redirect_uri"))
	require.NoError(t, err)
	cb.Host = strings.Replace(cb.Host, "localhost", "127.0.0.1", 1)
	cb.RawQuery = params.Encode()
	return cb.String()
}

func TestLoopbackAuthorizer_CompletesFlow(t *testing.T) {
	tokenSrv := newExchangeServer(t, "auth-code")
	authURL, resCh := startFlow(t, tokenSrv.URL)

	q := authURL.Query()
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))

	resp, err := http.Get(callbackURL(t, authURL, url.Values{
		"code":  {"auth-code"},
		"state": {q.Get("state")},
	}))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	res := <-resCh
	require.NoError(t, res.err)
	assert.Equal(t, "exchanged-access", res.tok.AccessToken)
	assert.Equal(t, "exchanged-refresh", res.tok.RefreshToken)
}

func TestLoopbackAuthorizer_RejectsForgedState(t *testing.T) {
	tokenSrv := newExchangeServer(t, "auth-code")
	authURL, resCh := startFlow(t, tokenSrv.URL)

	forged, _, err := newSignedState(time.Minute)
	require.NoError(t, err)

	resp, err := http.Get(callbackURL(t, authURL, url.Values{
		"code":  {"auth-code"},
		"state": {forged},
	}))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	res := <-resCh
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "state rejected")
}

func TestLoopbackAuthorizer_UserDenied(t *testing.T) {
	tokenSrv := newExchangeServer(t, "auth-code")
	authURL, resCh := startFlow(t, tokenSrv.URL)

	resp, err := http.Get(callbackURL(t, authURL, url.Values{
		"error": {"access_denied"},
		"state": {authURL.Query().Get("state")},
	}))
	require.NoError(t, err)
	resp.Body.Close()

	res := <-resCh
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "access_denied")
}

func TestVerifyState(t *testing.T) {
	state, key, err := newSignedState(time.Minute)
	require.NoError(t, err)

	assert.NoError(t, verifyState(state, key))
	assert.Error(t, verifyState("", key))
	assert.Error(t, verifyState(state, []byte("another key entirely, 32 bytes!!")))

	expired, expKey, err := newSignedState(-time.Minute)
	require.NoError(t, err)
	assert.Error(t, verifyState(expired, expKey))
}

func TestHeadlessAuthorizer(t *testing.T) {
	_, err := HeadlessAuthorizer{}.Authorize(context.Background(), &oauth2.Config{})
	assert.ErrorIs(t, err, ErrInteractiveUnavailable)
}
