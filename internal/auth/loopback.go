package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// ErrInteractiveUnavailable is returned where no operator can complete a consent flow.
var ErrInteractiveUnavailable = errors.New("interactive authorization is not available in this deployment")

// DefaultAuthTimeout bounds how long the loopback flow waits for consent.
const DefaultAuthTimeout = 5 * time.Minute

// callbackPath is the HTTP path the OAuth2 redirect hits on the local server.
const callbackPath = "/"

// shutdownTimeout is how long to wait for the callback server to drain.
const shutdownTimeout = 5 * time.Second

// stateKeyBytes is the size of the per-flow HMAC key signing the state parameter.
const stateKeyBytes = 32

type callbackResult struct {
	code string
	err  error
}

// LoopbackAuthorizer runs the installed-app authorization code flow with
// PKCE against a localhost callback listener.
type LoopbackAuthorizer struct {
	// Port is the callback listener port; 0 picks a free one.
	Port    int
	Timeout time.Duration
	// Out receives the consent URL for the operator at the terminal.
	Out    io.Writer
	Logger *slog.Logger
}

// Authorize blocks until the user approves access in a browser, the flow
// fails, or the timeout passes.
func (a *LoopbackAuthorizer) Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultAuthTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()

	srv, port, err := a.startCallbackServer(ctx, mux, resultCh)
	if err != nil {
		return nil, err
	}
	defer a.shutdownCallbackServer(srv)

	flowCfg := *cfg
	flowCfg.RedirectURL = fmt.Sprintf("http://localhost:%d%s", port, callbackPath)

	state, key, err := newSignedState(timeout)
	if err != nil {
		return nil, fmt.Errorf("generating state token: %w", err)
	}
	mux.HandleFunc("GET "+callbackPath+"{$}", func(w http.ResponseWriter, r *http.Request) {
		handleOAuthCallback(w, r, key, resultCh)
	})

	verifier := oauth2.GenerateVerifier()
	authURL := flowCfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)
	a.prompt(ctx, authURL)

	code, err := waitForCallback(ctx, resultCh)
	if err != nil {
		return nil, err
	}

	a.log().Info("received authorization code, exchanging for token")
	tok, err := flowCfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	return tok, nil
}

func (a *LoopbackAuthorizer) log() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

func (a *LoopbackAuthorizer) prompt(ctx context.Context, authURL string) {
	a.log().Info("waiting for user consent")
	if a.Out != nil {
		fmt.Fprintf(a.Out, "Open this URL in your browser to authorize Google Drive access:\n%s\n", authURL)
	}
	if p := prompterFrom(ctx); p != nil {
		if err := p(ctx, authURL); err != nil {
			a.log().Warn("failed to deliver consent URL", slog.String("error", err.Error()))
		}
	}
}

// startCallbackServer binds 127.0.0.1 and serves mux in the background.
func (a *LoopbackAuthorizer) startCallbackServer(ctx context.Context, mux *http.ServeMux, resultCh chan<- callbackResult) (*http.Server, int, error) {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("127.0.0.1:%d", a.Port))
	if err != nil {
		return nil, 0, fmt.Errorf("binding localhost listener: %w", err)
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return nil, 0, fmt.Errorf("listener address is not TCP")
	}
	a.log().Info("callback server listening", slog.Int("port", tcpAddr.Port))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}
	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			select {
			case resultCh <- callbackResult{err: fmt.Errorf("callback server error: %w", serveErr)}:
			default:
			}
		}
	}()

	return srv, tcpAddr.Port, nil
}

func (a *LoopbackAuthorizer) shutdownCallbackServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.log().Warn("callback server shutdown error", slog.String("error", err.Error()))
	}
}

// handleOAuthCallback validates the signed state, extracts the code and sends the result.
func handleOAuthCallback(w http.ResponseWriter, r *http.Request, key []byte, resultCh chan<- callbackResult) {
	send := func(res callbackResult) {
		select {
		case resultCh <- res:
		default:
		}
	}

	q := r.URL.Query()
	if err := verifyState(q.Get("state"), key); err != nil {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		send(callbackResult{err: fmt.Errorf("OAuth2 state rejected: %w", err)})
		return
	}

	if errParam := q.Get("error"); errParam != "" {
		http.Error(w, "Authorization failed: "+errParam, http.StatusBadRequest)
		send(callbackResult{err: fmt.Errorf("authorization failed: %s: %s", errParam, q.Get("error_description"))})
		return
	}

	code := q.Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		send(callbackResult{err: fmt.Errorf("callback missing authorization code")})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h1>Authorization complete</h1>"+
		"<p>You can close this window; uploads will continue in the chat.</p></body></html>")
	send(callbackResult{code: code})
}

func waitForCallback(ctx context.Context, resultCh <-chan callbackResult) (string, error) {
	select {
	case result := <-resultCh:
		if result.err != nil {
			return "", result.err
		}
		return result.code, nil
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for consent: %w", ctx.Err())
	}
}

// newSignedState issues a short-lived HS256 token used as the OAuth2 state.
// The key never leaves the process, so only this flow's callback verifies it.
func newSignedState(ttl time.Duration) (string, []byte, error) {
	key := make([]byte, stateKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return "", nil, err
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", nil, err
	}
	return signed, key, nil
}

func verifyState(state string, key []byte) error {
	if state == "" {
		return errors.New("missing state")
	}
	_, err := jwt.Parse(state, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	return err
}

// HeadlessAuthorizer refuses interactive authorization. Lambda deployments
// use it; the operator authorizes once with the CLI against the shared store.
type HeadlessAuthorizer struct{}

func (HeadlessAuthorizer) Authorize(context.Context, *oauth2.Config) (*oauth2.Token, error) {
	return nil, ErrInteractiveUnavailable
}
