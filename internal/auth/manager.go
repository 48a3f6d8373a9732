// Package auth implements the OAuth2 credential lifecycle for the Drive
// session: load the persisted record, then reuse, refresh or interactively
// authorize it, and persist the result.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	googleoauth2 "google.golang.org/api/oauth2/v2"

	"github.com/habat-tech/todrive/internal/credential"
	"github.com/habat-tech/todrive/internal/lease"
	"github.com/habat-tech/todrive/internal/model"
)

// DefaultScopes lets the relay create files it owns and read the account email.
var DefaultScopes = []string{
	drive.DriveFileScope,
	googleoauth2.UserinfoEmailScope,
}

// leaseKey names the lease guarding the credential transition.
const leaseKey = "credential-session"

const leasePoll = 500 * time.Millisecond

var (
	// ErrInvalidClientConfig is returned when the uploaded client configuration cannot be parsed.
	ErrInvalidClientConfig = errors.New("invalid client configuration")

	// ErrRefreshRejected is returned when the authorization server refuses the stored refresh token.
	ErrRefreshRejected = errors.New("refresh token rejected")
)

// Authorizer obtains a fresh token through user consent.
type Authorizer interface {
	Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)
}

// AccountLookup resolves the account email for a token source.
type AccountLookup func(ctx context.Context, ts oauth2.TokenSource) (string, error)

// Session is an authorized credential record bound to an HTTP client.
type Session struct {
	Record *model.CredentialRecord
	Client *http.Client
}

// Manager implements the credential lifecycle.
type Manager struct {
	sessions        credential.SessionStore
	clientConfigs   credential.ClientConfigStore
	authorizer      Authorizer
	logger          *slog.Logger
	locker          lease.Locker
	lookupAccount   AccountLookup
	httpClient      *http.Client
	scopes          []string
	clientConfigRef string
	now             func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLocker serializes transitions across invocations through l.
func WithLocker(l lease.Locker) Option {
	return func(m *Manager) { m.locker = l }
}

// WithAccountLookup records the account email after interactive authorization.
func WithAccountLookup(fn AccountLookup) Option {
	return func(m *Manager) { m.lookupAccount = fn }
}

// WithHTTPClient sets the client used for token endpoint calls.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

// WithScopes overrides DefaultScopes.
func WithScopes(scopes ...string) Option {
	return func(m *Manager) { m.scopes = scopes }
}

// WithClientConfigRef sets the client configuration location written into records.
func WithClientConfigRef(ref string) Option {
	return func(m *Manager) { m.clientConfigRef = ref }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager.
func NewManager(sessions credential.SessionStore, clientConfigs credential.ClientConfigStore, authorizer Authorizer, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		sessions:      sessions,
		clientConfigs: clientConfigs,
		authorizer:    authorizer,
		logger:        logger,
		scopes:        DefaultScopes,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ObtainSession returns an authorized session, running whichever transition
// the persisted record calls for and persisting the result.
func (m *Manager) ObtainSession(ctx context.Context) (*Session, error) {
	cfg, err := m.OAuthConfig(ctx)
	if err != nil {
		return nil, err
	}

	if m.locker != nil {
		release, err := lease.Wait(ctx, m.locker, leaseKey, uuid.NewString(), leasePoll)
		if err != nil {
			return nil, fmt.Errorf("auth: %w", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("releasing credential lease", slog.String("error", err.Error()))
			}
		}()
	}

	rec, err := m.sessions.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: loading session: %w", err)
	}

	opCtx := m.withHTTPClient(ctx)
	state := Classify(rec, m.now())

	var tok *oauth2.Token
	var consented bool
	for state != StateAuthorized {
		action := Plan(state)
		m.logger.Info("credential transition",
			slog.String("state", state.String()),
			slog.String("action", action.String()),
		)

		var actErr error
		switch action {
		case ActionReuse:
			tok = tokenFromRecord(rec)
		case ActionRefresh:
			tok, actErr = m.refresh(opCtx, cfg, rec)
		case ActionAuthorize:
			tok, actErr = m.authorize(opCtx, cfg)
			consented = actErr == nil
		}

		outcome := OutcomeOK
		if actErr != nil {
			outcome = OutcomeFailed
			if errors.Is(actErr, ErrRefreshRejected) {
				outcome = OutcomeRejected
			}
		}

		next := Next(state, outcome)
		if next == state {
			return nil, actErr
		}
		if outcome == OutcomeRejected {
			m.logger.Warn("stored refresh token rejected, falling back to interactive authorization",
				slog.String("error", actErr.Error()),
			)
			rec = nil
		}
		state = next
	}

	updated := m.recordFrom(tok, rec)
	// Reuse and refresh keep whatever account the record already names.
	if consented && m.lookupAccount != nil {
		if account, err := m.lookupAccount(opCtx, cfg.TokenSource(opCtx, tok)); err != nil {
			m.logger.Warn("account lookup failed", slog.String("error", err.Error()))
		} else {
			updated.Account = account
		}
	}

	if err := m.sessions.Save(ctx, updated); err != nil {
		return nil, fmt.Errorf("auth: saving session: %w", err)
	}

	m.logger.Info("drive session authorized",
		slog.String("account", updated.Account),
		slog.Time("expiry", updated.ExpiresAt),
	)

	return &Session{
		Record: updated,
		Client: m.client(m.withHTTPClient(context.WithoutCancel(ctx)), cfg, tok, updated),
	}, nil
}

// Status loads the persisted record and classifies it without any transition.
func (m *Manager) Status(ctx context.Context) (State, *model.CredentialRecord, error) {
	rec, err := m.sessions.Load(ctx)
	if err != nil {
		return StateNoRecord, nil, fmt.Errorf("auth: loading session: %w", err)
	}
	return Classify(rec, m.now()), rec, nil
}

// OAuthConfig parses the stored client configuration.
func (m *Manager) OAuthConfig(ctx context.Context) (*oauth2.Config, error) {
	data, err := m.clientConfigs.ClientConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, m.scopes...)
	if err != nil {
		return nil, fmt.Errorf("auth: %w: %v", ErrInvalidClientConfig, err)
	}
	return cfg, nil
}

func (m *Manager) refresh(ctx context.Context, cfg *oauth2.Config, rec *model.CredentialRecord) (*oauth2.Token, error) {
	stale := tokenFromRecord(rec)
	stale.Expiry = m.now().Add(-time.Hour) // force the token source to hit the token endpoint

	tok, err := cfg.TokenSource(ctx, stale).Token()
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) && rErr.ErrorCode == "invalid_grant" {
			return nil, fmt.Errorf("auth: %w: %v", ErrRefreshRejected, err)
		}
		return nil, fmt.Errorf("auth: refreshing token: %w", err)
	}
	return tok, nil
}

func (m *Manager) authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	tok, err := m.authorizer.Authorize(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("auth: interactive authorization: %w", err)
	}
	return tok, nil
}

// withHTTPClient carries the configured HTTP client to oauth2 token calls.
func (m *Manager) withHTTPClient(ctx context.Context) context.Context {
	if m.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	}
	return ctx
}

func (m *Manager) recordFrom(tok *oauth2.Token, prev *model.CredentialRecord) *model.CredentialRecord {
	rec := &model.CredentialRecord{
		AccessToken:      tok.AccessToken,
		RefreshToken:     tok.RefreshToken,
		TokenType:        tok.TokenType,
		ExpiresAt:        tok.Expiry,
		ClientConfigPath: m.clientConfigRef,
		UpdatedAt:        m.now(),
	}
	if prev != nil {
		if rec.RefreshToken == "" {
			rec.RefreshToken = prev.RefreshToken
		}
		rec.Account = prev.Account
	}
	return rec
}

// client builds the session HTTP client. ctx must outlive the client, so the
// caller passes a detached context. Tokens refreshed silently during an upload
// are written back to the store.
func (m *Manager) client(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token, rec *model.CredentialRecord) *http.Client {
	src := &persistingSource{
		src:  cfg.TokenSource(ctx, tok),
		last: tok.AccessToken,
		save: func(t *oauth2.Token) {
			next := m.recordFrom(t, rec)
			if err := m.sessions.Save(ctx, next); err != nil {
				m.logger.Warn("failed to persist refreshed token", slog.String("error", err.Error()))
			}
		},
	}
	return oauth2.NewClient(ctx, src)
}

func tokenFromRecord(rec *model.CredentialRecord) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		TokenType:    rec.TokenType,
		Expiry:       rec.ExpiresAt,
	}
}

type persistingSource struct {
	mu   sync.Mutex
	src  oauth2.TokenSource
	last string
	save func(*oauth2.Token)
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, err := p.src.Token()
	if err != nil {
		return nil, err
	}
	if t.AccessToken != p.last {
		p.last = t.AccessToken
		p.save(t)
	}
	return t, nil
}
