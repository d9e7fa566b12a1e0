// Package linkedin wraps the LinkedIn OAuth endpoints used to connect a
// member account for publishing.
package linkedin

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const oauthScopes = "openid profile w_member_social"

// stateTTL bounds how old a state parameter may be when the callback
// presents it.
const stateTTL = 10 * time.Minute

// Config carries the OAuth application credentials. StateSecret keys the
// HMAC over the state parameter.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	StateSecret  []byte
}

// Client talks to the LinkedIn OAuth and userinfo endpoints.
type Client struct {
	cfg     Config
	authURL string
	apiURL  string
	client  *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:     cfg,
		authURL: "https://www.linkedin.com/oauth/v2",
		apiURL:  "https://api.linkedin.com/v2",
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// State is the round-tripped OAuth state parameter carrying the initiating
// user. On the wire it is base64 JSON plus an HMAC; the callback arrives
// unauthenticated, so the signature is the only thing binding the grant to
// the user who started the flow.
type State struct {
	UserID    string `json:"userId"`
	Nonce     string `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
}

// EncodeState packs and signs the state for the authorize URL.
func (c *Client) EncodeState(userID string, now time.Time) string {
	nonce := make([]byte, 16)
	_, _ = rand.Read(nonce)

	raw, _ := json.Marshal(State{
		UserID:    userID,
		Nonce:     base64.RawURLEncoding.EncodeToString(nonce),
		Timestamp: now.UnixMilli(),
	})
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + c.signState(payload)
}

// DecodeState verifies and unpacks the state parameter from a callback.
// Tampered or stale states are rejected.
func (c *Client) DecodeState(s string, now time.Time) (State, error) {
	payload, sig, ok := strings.Cut(s, ".")
	if !ok {
		return State{}, errors.New("linkedin: malformed state")
	}
	if !hmac.Equal([]byte(sig), []byte(c.signState(payload))) {
		return State{}, errors.New("linkedin: state signature mismatch")
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return State{}, fmt.Errorf("linkedin: decode state: %w", err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, fmt.Errorf("linkedin: decode state: %w", err)
	}

	if now.Sub(time.UnixMilli(st.Timestamp)) > stateTTL {
		return State{}, errors.New("linkedin: state expired")
	}
	return st, nil
}

func (c *Client) signState(payload string) string {
	mac := hmac.New(sha256.New, c.cfg.StateSecret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// AuthorizeURL builds the LinkedIn authorization redirect for a user.
func (c *Client) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURI)
	q.Set("state", state)
	q.Set("scope", oauthScopes)
	return c.authURL + "/authorization?" + q.Encode()
}

// Tokens is the result of redeeming an authorization code.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

// ExchangeCode redeems an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code string) (Tokens, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.cfg.RedirectURI)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.authURL+"/accessToken", strings.NewReader(form.Encode()))
	if err != nil {
		return Tokens{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return Tokens{}, fmt.Errorf("linkedin: token exchange: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Tokens{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Tokens{}, fmt.Errorf("linkedin: token exchange failed: status %d: %s", resp.StatusCode, body)
	}

	var tokens Tokens
	if err := json.Unmarshal(body, &tokens); err != nil {
		return Tokens{}, fmt.Errorf("linkedin: decode token response: %w", err)
	}
	return tokens, nil
}

// Profile is the subset of the OIDC userinfo response we keep.
type Profile struct {
	URN   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// GetProfile fetches the member's userinfo with a bearer token.
func (c *Client) GetProfile(ctx context.Context, accessToken string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/userinfo", nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("linkedin: userinfo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Profile{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("linkedin: userinfo failed: status %d: %s", resp.StatusCode, body)
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return Profile{}, fmt.Errorf("linkedin: decode userinfo: %w", err)
	}
	return profile, nil
}

type sharePayload struct {
	Author          string         `json:"author"`
	LifecycleState  string         `json:"lifecycleState"`
	SpecificContent map[string]any `json:"specificContent"`
	Visibility      map[string]any `json:"visibility"`
}

// SharePost publishes a text post as the member identified by memberURN.
// Requires a token granted the w_member_social scope.
func (c *Client) SharePost(ctx context.Context, accessToken, memberURN, text string) error {
	// The userinfo sub is a bare member ID; the shares API wants a URN.
	author := memberURN
	if !strings.HasPrefix(author, "urn:") {
		author = "urn:li:person:" + author
	}

	payload := sharePayload{
		Author:         author,
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]any{
			"com.linkedin.ugc.ShareContent": map[string]any{
				"shareCommentary":    map[string]string{"text": text},
				"shareMediaCategory": "NONE",
			},
		},
		Visibility: map[string]any{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiURL+"/ugcPosts", strings.NewReader(string(raw)))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("linkedin: share post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("linkedin: share post failed: status %d: %s", resp.StatusCode, body)
	}
	return nil
}
