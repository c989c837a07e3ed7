package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"evalo/internal/services"
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// ProviderError is an error payload returned by the identity provider.
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("identity provider returned %d: %s", e.Status, e.Code)
}

// authResponse covers the union of fields returned by the account endpoints.
type authResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	ProviderID   string `json:"providerId"`
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

type restClient struct {
	baseURL  string
	tokenURL string
	apiKey   string
	http     HTTPDoer
}

func (c *restClient) signInWithPassword(ctx context.Context, email, password string) (authResponse, error) {
	var resp authResponse
	err := c.postJSON(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	return resp, err
}

func (c *restClient) signUp(ctx context.Context, email, password string) (authResponse, error) {
	var resp authResponse
	err := c.postJSON(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	return resp, err
}

func (c *restClient) updateProfile(ctx context.Context, idToken, displayName string) (authResponse, error) {
	var resp authResponse
	err := c.postJSON(ctx, "accounts:update", map[string]any{
		"idToken":           idToken,
		"displayName":       displayName,
		"returnSecureToken": true,
	}, &resp)
	return resp, err
}

func (c *restClient) signInWithIdp(ctx context.Context, googleIDToken string) (authResponse, error) {
	postBody := url.Values{
		"id_token":   {googleIDToken},
		"providerId": {"google.com"},
	}
	var resp authResponse
	err := c.postJSON(ctx, "accounts:signInWithIdp", map[string]any{
		"postBody":            postBody.Encode(),
		"requestUri":          "http://localhost",
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}, &resp)
	return resp, err
}

func (c *restClient) refresh(ctx context.Context, refreshToken string) (refreshResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	endpoint := c.tokenURL + "?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return refreshResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var resp refreshResponse
	if err := c.do(req, "refresh", &resp); err != nil {
		return refreshResponse{}, err
	}
	return resp, nil
}

func (c *restClient) postJSON(ctx context.Context, method string, body any, out any) error {
	if strings.TrimSpace(c.apiKey) == "" {
		return services.Wrap(services.ErrConfiguration, "identity", method, "identity.api_key is not set", nil)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	endpoint := fmt.Sprintf("%s/%s?key=%s", c.baseURL, method, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, method, out)
}

func (c *restClient) do(req *http.Request, method string, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransport, "identity", method, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifyProviderError(method, decodeProviderError(resp.StatusCode, bodyBytes))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrDecode, "identity", method, "decode response", err)
	}
	return nil
}

func decodeProviderError(status int, body []byte) *ProviderError {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	perr := &ProviderError{Status: status}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		// Messages look like "WEAK_PASSWORD : Password should be at least 6 characters".
		code, detail, _ := strings.Cut(payload.Error.Message, ":")
		perr.Code = strings.TrimSpace(code)
		perr.Message = strings.TrimSpace(detail)
	} else {
		var flat struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &flat) == nil {
			perr.Code = strings.ToUpper(flat.Error)
		}
	}
	if perr.Message == "" {
		perr.Message = friendlyMessage(perr.Code)
	}
	return perr
}

func friendlyMessage(code string) string {
	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return "invalid email or password"
	case "USER_DISABLED":
		return "this account has been disabled"
	case "EMAIL_EXISTS":
		return "an account already exists for this email"
	case "INVALID_EMAIL":
		return "the email address is badly formatted"
	case "WEAK_PASSWORD":
		return "password should be at least 6 characters"
	case "TOKEN_EXPIRED", "INVALID_REFRESH_TOKEN", "INVALID_GRANT", "USER_NOT_FOUND", "INVALID_ID_TOKEN", "CREDENTIAL_TOO_OLD_LOGIN_AGAIN":
		return "session expired; sign in again"
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return "too many attempts; try again later"
	case "":
		return ""
	default:
		return strings.ToLower(strings.ReplaceAll(code, "_", " "))
	}
}

func classifyProviderError(method string, perr *ProviderError) error {
	marker := services.ErrTransport
	switch perr.Code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED",
		"TOKEN_EXPIRED", "INVALID_REFRESH_TOKEN", "INVALID_GRANT", "USER_NOT_FOUND", "INVALID_ID_TOKEN",
		"CREDENTIAL_TOO_OLD_LOGIN_AGAIN":
		marker = services.ErrAuthorization
	case "EMAIL_EXISTS", "INVALID_EMAIL", "WEAK_PASSWORD", "MISSING_PASSWORD", "MISSING_EMAIL":
		marker = services.ErrValidation
	case "API_KEY_INVALID", "INVALID_API_KEY", "CONFIGURATION_NOT_FOUND", "OPERATION_NOT_ALLOWED":
		marker = services.ErrConfiguration
	}
	return services.Wrap(marker, "identity", method, "", perr)
}

func expiresAt(now time.Time, expiresIn, idToken string) time.Time {
	if seconds, err := strconv.Atoi(strings.TrimSpace(expiresIn)); err == nil && seconds > 0 {
		return now.Add(time.Duration(seconds) * time.Second)
	}
	if claims, err := parseClaims(idToken); err == nil {
		if exp := claims.expiry(); !exp.IsZero() {
			return exp
		}
	}
	return now.Add(time.Hour)
}
