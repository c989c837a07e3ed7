package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/oauth2/endpoints"

	"evalo/internal/config"
	"evalo/internal/logging"
	"evalo/internal/services"
)

const tokenRefreshLeeway = 5 * time.Minute

// ErrNotSignedIn is returned when an operation needs a signed-in principal.
var ErrNotSignedIn = services.Wrap(services.ErrAuthorization, "identity", "", "not signed in; run `evalo login`", nil)

// ManagerOption customises Manager construction.
type ManagerOption func(*Manager)

// WithHTTPClient overrides the HTTP client used for provider calls.
func WithHTTPClient(client *http.Client) ManagerOption {
	return func(m *Manager) {
		m.httpClient = client
	}
}

// WithSessionStore injects a custom persistence layer.
func WithSessionStore(store SessionStore) ManagerOption {
	return func(m *Manager) {
		m.store = store
	}
}

// WithGoogleFlow replaces the Google sign-in flow.
func WithGoogleFlow(flow *GoogleFlow) ManagerOption {
	return func(m *Manager) {
		m.google = flow
	}
}

// WithClock overrides the time source used for token expiry.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager owns the signed-in principal and its persisted session.
type Manager struct {
	httpClient *http.Client
	client     *restClient
	store      SessionStore
	google     *GoogleFlow
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	session Session

	listenerMu   sync.Mutex
	listeners    map[int]func(*Principal)
	nextListener int
}

// NewManager builds a Manager from configuration and loads any persisted session.
func NewManager(cfg *config.Config, logger *slog.Logger, opts ...ManagerOption) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	logger = logging.NewComponentLogger(logger, "identity")
	mgr := &Manager{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		store:      NewFileSessionStore(cfg.SessionPath()),
		logger:     logger,
		now:        time.Now,
		listeners:  make(map[int]func(*Principal)),
	}
	if cfg.GoogleSignInConfigured() {
		mgr.google = &GoogleFlow{
			ClientID:     cfg.Identity.GoogleClientID,
			ClientSecret: cfg.Identity.GoogleClientSecret,
			Issuer:       cfg.Identity.GoogleIssuer,
			Endpoint:     endpoints.Google,
			Timeout:      cfg.LoginTimeout(),
			OpenBrowser:  browser.OpenURL,
			Logger:       logger,
		}
	}
	for _, opt := range opts {
		opt(mgr)
	}
	if mgr.httpClient == nil {
		mgr.httpClient = http.DefaultClient
	}
	if mgr.google != nil && mgr.google.HTTPClient == nil {
		mgr.google.HTTPClient = mgr.httpClient
	}
	mgr.client = &restClient{
		baseURL:  strings.TrimRight(cfg.Identity.BaseURL, "/"),
		tokenURL: cfg.Identity.TokenURL,
		apiKey:   cfg.Identity.APIKey,
		http:     mgr.httpClient,
	}

	session, err := mgr.store.Load()
	if err != nil {
		return nil, err
	}
	if session.Valid() {
		mgr.session = session
	}
	return mgr, nil
}

// SetGooglePrompt sets the callback that displays the Google consent URL.
func (m *Manager) SetGooglePrompt(prompt func(url string)) {
	if m.google != nil {
		m.google.Prompt = prompt
	}
}

// Current returns the signed-in principal or nil.
func (m *Manager) Current() *Principal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked()
}

// Require returns the signed-in principal or ErrNotSignedIn.
func (m *Manager) Require() (Principal, error) {
	if p := m.Current(); p != nil {
		return *p, nil
	}
	return Principal{}, ErrNotSignedIn
}

// Session returns a copy of the current session.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// OnAuthStateChanged calls fn with the current principal (nil when signed
// out) and again after every sign-in, profile update, or sign-out. The
// returned func unsubscribes.
func (m *Manager) OnAuthStateChanged(fn func(*Principal)) func() {
	m.listenerMu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	m.listenerMu.Unlock()

	fn(m.Current())

	var once sync.Once
	return func() {
		once.Do(func() {
			m.listenerMu.Lock()
			delete(m.listeners, id)
			m.listenerMu.Unlock()
		})
	}
}

// SignInWithEmailAndPassword authenticates with email credentials.
func (m *Manager) SignInWithEmailAndPassword(ctx context.Context, email, password string) (Principal, error) {
	if err := validateCredentials(email, password); err != nil {
		return Principal{}, err
	}
	resp, err := m.client.signInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return Principal{}, err
	}
	return m.establish(resp, "password")
}

// CreateUserWithEmailAndPassword registers a new account and signs it in.
// A non-empty displayName is applied to the new profile.
func (m *Manager) CreateUserWithEmailAndPassword(ctx context.Context, email, password, displayName string) (Principal, error) {
	if err := validateCredentials(email, password); err != nil {
		return Principal{}, err
	}
	resp, err := m.client.signUp(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return Principal{}, err
	}
	principal, err := m.establish(resp, "password")
	if err != nil {
		return Principal{}, err
	}
	if strings.TrimSpace(displayName) == "" {
		return principal, nil
	}
	return m.UpdateProfile(ctx, displayName)
}

// UpdateProfile changes the display name of the signed-in user.
func (m *Manager) UpdateProfile(ctx context.Context, displayName string) (Principal, error) {
	idToken, err := m.IDToken(ctx)
	if err != nil {
		return Principal{}, err
	}
	resp, err := m.client.updateProfile(ctx, idToken, strings.TrimSpace(displayName))
	if err != nil {
		return Principal{}, err
	}

	m.mu.Lock()
	session := m.session
	session.Principal.DisplayName = resp.DisplayName
	if resp.PhotoURL != "" {
		session.Principal.PhotoURL = resp.PhotoURL
	}
	if resp.IDToken != "" {
		session.IDToken = resp.IDToken
		session.ExpiresAt = expiresAt(m.now(), resp.ExpiresIn, resp.IDToken)
	}
	if resp.RefreshToken != "" {
		session.RefreshToken = resp.RefreshToken
	}
	m.mu.Unlock()

	if err := m.commit(session); err != nil {
		return Principal{}, err
	}
	return session.Principal, nil
}

// SignInWithGoogle runs the browser consent flow and exchanges the Google ID
// token with the identity provider.
func (m *Manager) SignInWithGoogle(ctx context.Context) (Principal, error) {
	if m.google == nil {
		return Principal{}, services.Wrap(services.ErrConfiguration, "identity", "google sign-in",
			"set identity.google_client_id and identity.google_client_secret", nil)
	}
	googleIDToken, err := m.google.Run(ctx)
	if err != nil {
		return Principal{}, err
	}
	resp, err := m.client.signInWithIdp(ctx, googleIDToken)
	if err != nil {
		return Principal{}, err
	}
	return m.establish(resp, "google.com")
}

// SignOut forgets the session locally.
func (m *Manager) SignOut() error {
	if err := m.store.Clear(); err != nil {
		return err
	}
	m.mu.Lock()
	wasSignedIn := m.session.Valid()
	m.session = Session{}
	m.mu.Unlock()
	if wasSignedIn {
		m.logger.Info("signed out")
	}
	m.notify(nil)
	return nil
}

// IDToken returns a current ID token, refreshing it when it is about to expire.
func (m *Manager) IDToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if !session.Valid() {
		return "", ErrNotSignedIn
	}
	if session.IDToken != "" && session.ExpiresAt.Sub(m.now()) > tokenRefreshLeeway {
		return session.IDToken, nil
	}

	resp, err := m.client.refresh(ctx, session.RefreshToken)
	if err != nil {
		if errors.Is(err, services.ErrAuthorization) {
			logging.WarnWithContext(m.logger, "session refresh rejected", "session_expired",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run evalo login again"),
			)
		}
		return "", err
	}
	session.IDToken = resp.IDToken
	if resp.RefreshToken != "" {
		session.RefreshToken = resp.RefreshToken
	}
	session.ExpiresAt = expiresAt(m.now(), resp.ExpiresIn, resp.IDToken)
	if err := m.store.Save(session); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.session = session
	m.mu.Unlock()
	return session.IDToken, nil
}

func (m *Manager) establish(resp authResponse, provider string) (Principal, error) {
	if resp.IDToken == "" || resp.RefreshToken == "" {
		return Principal{}, services.Wrap(services.ErrDecode, "identity", "sign-in", "response missing tokens", nil)
	}
	principal := Principal{
		UID:         resp.LocalID,
		DisplayName: resp.DisplayName,
		Email:       resp.Email,
		PhotoURL:    resp.PhotoURL,
		Provider:    provider,
	}
	if claims, err := parseClaims(resp.IDToken); err == nil {
		if principal.UID == "" {
			principal.UID = claims.uid()
		}
		if principal.Email == "" {
			principal.Email = claims.Email
		}
		if principal.DisplayName == "" {
			principal.DisplayName = claims.Name
		}
		if principal.PhotoURL == "" {
			principal.PhotoURL = claims.Picture
		}
	}
	if principal.UID == "" {
		return Principal{}, services.Wrap(services.ErrDecode, "identity", "sign-in", "response missing user id", nil)
	}

	session := Session{
		Principal:    principal,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    expiresAt(m.now(), resp.ExpiresIn, resp.IDToken),
	}
	if err := m.commit(session); err != nil {
		return Principal{}, err
	}
	m.logger.Info("signed in",
		logging.String("email", principal.Email),
		logging.String("provider", provider),
	)
	return principal, nil
}

func (m *Manager) commit(session Session) error {
	if err := m.store.Save(session); err != nil {
		return err
	}
	m.mu.Lock()
	m.session = session
	current := m.currentLocked()
	m.mu.Unlock()
	m.notify(current)
	return nil
}

func (m *Manager) currentLocked() *Principal {
	if !m.session.Valid() {
		return nil
	}
	p := m.session.Principal
	return &p
}

func (m *Manager) notify(p *Principal) {
	m.listenerMu.Lock()
	fns := make([]func(*Principal), 0, len(m.listeners))
	for i := 0; i < m.nextListener; i++ {
		if fn, ok := m.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	m.listenerMu.Unlock()
	for _, fn := range fns {
		var copied *Principal
		if p != nil {
			c := *p
			copied = &c
		}
		fn(copied)
	}
}

func validateCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return services.Wrap(services.ErrValidation, "identity", "sign-in", "email and password are required", nil)
	}
	return nil
}
