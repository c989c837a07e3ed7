package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"evalo/internal/logging"
	"evalo/internal/services"
)

const callbackPath = "/callback"

// IDTokenVerifier checks a Google ID token. *oidc.IDTokenVerifier satisfies it.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// GoogleFlow runs the installed-app OAuth flow: it opens the consent page in
// the user's browser and waits for the redirect on a loopback listener.
type GoogleFlow struct {
	ClientID     string
	ClientSecret string
	Issuer       string
	Endpoint     oauth2.Endpoint
	HTTPClient   *http.Client
	Timeout      time.Duration
	// OpenBrowser launches the consent URL. Prompt is always called with the
	// same URL so the user can open it manually.
	OpenBrowser func(url string) error
	Prompt      func(url string)
	Verifier    IDTokenVerifier
	Logger      *slog.Logger
}

type callbackResult struct {
	code string
	err  error
}

// Run completes the flow and returns the verified Google ID token.
func (f *GoogleFlow) Run(ctx context.Context) (string, error) {
	logger := logging.NewComponentLogger(f.Logger, "identity")
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if f.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.HTTPClient)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", services.Wrap(services.ErrTransport, "identity", "google sign-in", "start loopback listener", err)
	}

	conf := &oauth2.Config{
		ClientID:     f.ClientID,
		ClientSecret: f.ClientSecret,
		Endpoint:     f.Endpoint,
		RedirectURL:  fmt.Sprintf("http://%s%s", listener.Addr().String(), callbackPath),
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}
	state := uuid.NewString()
	pkce := oauth2.GenerateVerifier()
	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(pkce))

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		var res callbackResult
		switch {
		case query.Get("state") != state:
			res.err = errors.New("state mismatch in OAuth callback")
		case query.Get("error") != "":
			res.err = fmt.Errorf("consent denied: %s", query.Get("error"))
		case query.Get("code") == "":
			res.err = errors.New("OAuth callback missing code")
		default:
			res.code = query.Get("code")
		}
		if res.err != nil {
			http.Error(w, "Sign-in failed. You can close this window.", http.StatusBadRequest)
		} else {
			_, _ = fmt.Fprintln(w, "Signed in to evalo. You can close this window.")
		}
		select {
		case results <- res:
		default:
		}
	})
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Debug("loopback server stopped", logging.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
		defer stop()
		_ = server.Shutdown(shutdownCtx)
	}()

	if f.Prompt != nil {
		f.Prompt(authURL)
	}
	if f.OpenBrowser != nil {
		if err := f.OpenBrowser(authURL); err != nil {
			logging.WarnWithContext(logger, "could not open browser", "browser_open_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "open the printed URL manually"),
			)
		}
	}

	var res callbackResult
	select {
	case res = <-results:
	case <-ctx.Done():
		return "", services.Wrap(services.ErrAuthorization, "identity", "google sign-in", "timed out waiting for consent", ctx.Err())
	}
	if res.err != nil {
		return "", services.Wrap(services.ErrAuthorization, "identity", "google sign-in", "", res.err)
	}

	token, err := conf.Exchange(ctx, res.code, oauth2.VerifierOption(pkce))
	if err != nil {
		return "", services.Wrap(services.ErrAuthorization, "identity", "google sign-in", "exchange code", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", services.Wrap(services.ErrDecode, "identity", "google sign-in", "token response missing id_token", nil)
	}

	verifier, err := f.verifier(ctx)
	if err != nil {
		return "", err
	}
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return "", services.Wrap(services.ErrAuthorization, "identity", "google sign-in", "verify id token", err)
	}
	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", services.Wrap(services.ErrDecode, "identity", "google sign-in", "read id token claims", err)
	}
	logger.Debug("google id token verified",
		logging.String("email", claims.Email),
		logging.Bool("email_verified", claims.EmailVerified),
	)
	return rawIDToken, nil
}

func (f *GoogleFlow) verifier(ctx context.Context) (IDTokenVerifier, error) {
	if f.Verifier != nil {
		return f.Verifier, nil
	}
	provider, err := oidc.NewProvider(ctx, f.Issuer)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "identity", "google sign-in", "discover issuer", err)
	}
	return provider.Verifier(&oidc.Config{ClientID: f.ClientID}), nil
}
