package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/abem93/progress-widgets/internal/apperr"
)

const identityToolkitURL = "https://identitytoolkit.googleapis.com/v1/accounts:signInWithEmailLink"

// FirebaseProvider delegates links to Firebase Authentication. Firebase mints
// the link; delivery goes through our own mailer.
type FirebaseProvider struct {
	client     *firebaseauth.Client
	mailer     LinkMailer
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

func NewFirebaseProvider(client *firebaseauth.Client, mailer LinkMailer, apiKey string) *FirebaseProvider {
	return &FirebaseProvider{
		client:     client,
		mailer:     mailer,
		apiKey:     apiKey,
		endpoint:   identityToolkitURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithEndpoint points verification at another Identity Toolkit endpoint,
// such as the auth emulator.
func (p *FirebaseProvider) WithEndpoint(endpoint string) *FirebaseProvider {
	p.endpoint = endpoint
	return p
}

func (p *FirebaseProvider) SendLink(ctx context.Context, email, returnURL string) error {
	link, err := p.client.EmailSignInLink(ctx, email, &firebaseauth.ActionCodeSettings{
		URL:             returnURL,
		HandleCodeInApp: true,
	})
	if err != nil {
		return apperr.Wrap(apperr.CodeDelivery, "identity provider rejected the address", err)
	}
	if err := p.mailer.SendLoginLink(ctx, email, link); err != nil {
		return apperr.Wrap(apperr.CodeDelivery, "could not send sign-in link", err)
	}
	return nil
}

type emailLinkRequest struct {
	Email   string `json:"email"`
	OOBCode string `json:"oobCode"`
}

type emailLinkResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
}

type identityToolkitError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *FirebaseProvider) VerifyLink(ctx context.Context, email, currentURL string) (Identity, error) {
	parsed, err := url.Parse(strings.TrimSpace(currentURL))
	if err != nil {
		return Identity{}, apperr.Verification("sign-in link is invalid")
	}
	query := parsed.Query()
	if mode := query.Get("mode"); mode != "" && mode != "signIn" {
		return Identity{}, apperr.Verification("sign-in link is invalid")
	}
	oobCode := query.Get("oobCode")
	if oobCode == "" {
		return Identity{}, apperr.Verification("sign-in link is invalid")
	}

	body, err := json.Marshal(emailLinkRequest{Email: email, OOBCode: oobCode})
	if err != nil {
		return Identity{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"?key="+url.QueryEscape(p.apiKey), bytes.NewReader(body))
	if err != nil {
		return Identity{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Identity{}, apperr.Wrap(apperr.CodeVerification, "could not reach identity provider", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr identityToolkitError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return Identity{}, verificationFailure(apiErr.Error.Message, resp.StatusCode)
	}

	var out emailLinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Identity{}, apperr.Wrap(apperr.CodeVerification, "decode identity provider response", err)
	}
	if out.LocalID == "" {
		return Identity{}, apperr.Verification("identity provider returned no account")
	}
	if out.Email == "" {
		out.Email = email
	}
	return Identity{UID: out.LocalID, Email: strings.ToLower(out.Email)}, nil
}

func verificationFailure(code string, status int) error {
	switch {
	case strings.HasPrefix(code, "EXPIRED_OOB_CODE"):
		return apperr.Verification("sign-in link has expired")
	case strings.HasPrefix(code, "INVALID_OOB_CODE"):
		return apperr.Verification("sign-in link is invalid or was already used")
	case strings.HasPrefix(code, "INVALID_EMAIL"):
		return apperr.Verification("sign-in link was issued for a different email")
	case code != "":
		return apperr.Verification("sign-in failed: %s", code)
	default:
		return apperr.Verification("sign-in failed with status %d", status)
	}
}

// SignOut revokes the refresh tokens Firebase issued for uid.
func (p *FirebaseProvider) SignOut(ctx context.Context, uid string) error {
	if err := p.client.RevokeRefreshTokens(ctx, uid); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}
