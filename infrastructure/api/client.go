// Package api talks to the badge platform backend to create and remove the
// fixtures browser flows depend on.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds every request
const DefaultTimeout = 25 * time.Second

const (
	clientID    = "public"
	tokenScope  = "rw:profile rw:issuer rw:backpack"
	revokeNote  = "automated deletion"
	tokenCookie = "access_token"
)

// StatusError is returned for every non-2xx response
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Token is an OAuth password grant result
type Token struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// Issuer is kept as a generic object so that updates send back every field
// the backend returned
type Issuer map[string]interface{}

// Name returns the issuer name
func (i Issuer) Name() string {
	s, _ := i["name"].(string)
	return s
}

// Slug returns the issuer slug
func (i Issuer) Slug() string {
	s, _ := i["slug"].(string)
	return s
}

// User is the profile of the token owner
type User map[string]interface{}

// Badge is a badge class
type Badge struct {
	EntityID string `json:"entityId"`
	Name     string `json:"name"`
	Issuer   string `json:"issuer"`
}

// Assertion is an awarded badge
type Assertion struct {
	EntityID string `json:"entityId"`
	Revoked  bool   `json:"revoked"`
}

type resultEnvelope[T any] struct {
	Result []T `json:"result"`
}

// Client is a retrying REST client for the backend
type Client struct {
	baseURL string
	http    *retryablehttp.Client
	logger  *logrus.Logger
}

// NewClient - creates new backend client. Requests time out after timeout,
// DefaultTimeout when zero.
func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = timeout
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = leveledLogger{logger: logger}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    rc,
		logger:  logger,
	}
}

// RequestToken - runs the password grant. An access_token cookie, when the
// backend sets one, takes precedence over the token in the body.
func (c *Client) RequestToken(ctx context.Context, username, password string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", clientID)
	form.Set("scope", tokenScope)
	form.Set("username", username)
	form.Set("password", password)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/o/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := c.checkResponse(req.Method, req.URL.String(), resp)
	if err != nil {
		return nil, err
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == tokenCookie && cookie.Value != "" {
			token.AccessToken = cookie.Value
		}
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response for %s carried no access token", username)
	}
	return &token, nil
}

// GetIssuer - fetches an issuer by slug
func (c *Client) GetIssuer(ctx context.Context, token *Token, slug string) (Issuer, error) {
	var issuer Issuer
	if err := c.do(ctx, token, http.MethodGet, "/v1/issuer/issuers/"+url.PathEscape(slug), nil, &issuer); err != nil {
		return nil, err
	}
	return issuer, nil
}

// FindIssuer - returns the issuer called name, nil if there is none
func (c *Client) FindIssuer(ctx context.Context, token *Token, name string) (Issuer, error) {
	var issuers []Issuer
	if err := c.do(ctx, token, http.MethodGet, "/v1/issuer/issuers", nil, &issuers); err != nil {
		return nil, err
	}
	for _, issuer := range issuers {
		if issuer.Name() == name {
			return issuer, nil
		}
	}
	return nil, nil
}

// VerifyIssuer - marks an issuer verified
func (c *Client) VerifyIssuer(ctx context.Context, token *Token, slug string) error {
	issuer, err := c.GetIssuer(ctx, token, slug)
	if err != nil {
		return err
	}
	issuer["verified"] = true
	// an echoed image is rejected by the backend
	delete(issuer, "image")

	return c.do(ctx, token, http.MethodPut, "/v1/issuer/issuers/"+url.PathEscape(slug), issuer, nil)
}

// DeleteIssuer - deletes an issuer by slug
func (c *Client) DeleteIssuer(ctx context.Context, token *Token, slug string) error {
	return c.do(ctx, token, http.MethodDelete, "/v1/issuer/issuers/"+url.PathEscape(slug), nil, nil)
}

// GetUser - fetches the profile of the token owner
func (c *Client) GetUser(ctx context.Context, token *Token) (User, error) {
	var user User
	if err := c.do(ctx, token, http.MethodGet, "/v1/user/profile", nil, &user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser - deletes the token owner
func (c *Client) DeleteUser(ctx context.Context, token *Token) error {
	return c.do(ctx, token, http.MethodDelete, "/v1/user/profile", nil, nil)
}

func (c *Client) badges(ctx context.Context, token *Token) ([]Badge, error) {
	var env resultEnvelope[Badge]
	if err := c.do(ctx, token, http.MethodGet, "/v2/badgeclasses", nil, &env); err != nil {
		return nil, err
	}
	return env.Result, nil
}

// FindBadge - returns the badge called name, nil if there is none
func (c *Client) FindBadge(ctx context.Context, token *Token, name string) (*Badge, error) {
	badges, err := c.badges(ctx, token)
	if err != nil {
		return nil, err
	}
	for i := range badges {
		if badges[i].Name == name {
			return &badges[i], nil
		}
	}
	return nil, nil
}

// FindBadges - returns every badge named query, or whose name contains query
// ignoring case when contains is set
func (c *Client) FindBadges(ctx context.Context, token *Token, query string, contains bool) ([]Badge, error) {
	badges, err := c.badges(ctx, token)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	found := make([]Badge, 0, len(badges))
	for _, badge := range badges {
		if badge.Name == query || (contains && strings.Contains(strings.ToLower(badge.Name), needle)) {
			found = append(found, badge)
		}
	}
	return found, nil
}

// FindAssertions - returns the unrevoked assertions of a badge
func (c *Client) FindAssertions(ctx context.Context, token *Token, badgeID string) ([]Assertion, error) {
	var env resultEnvelope[Assertion]
	path := "/v2/badgeclasses/" + url.PathEscape(badgeID) + "/assertions?include_revoked=false"
	if err := c.do(ctx, token, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	return env.Result, nil
}

// RevokeAssertion - revokes one assertion
func (c *Client) RevokeAssertion(ctx context.Context, token *Token, assertionID string) error {
	body := map[string]string{"revocation_reason": revokeNote}
	return c.do(ctx, token, http.MethodDelete, "/v2/assertions/"+url.PathEscape(assertionID), body, nil)
}

// RevokeAssertions - revokes every assertion, attempting all of them and
// returning the first failure
func (c *Client) RevokeAssertions(ctx context.Context, token *Token, assertions []Assertion) error {
	var first error
	for _, a := range assertions {
		if err := c.RevokeAssertion(ctx, token, a.EntityID); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// DeleteBadge - deletes a badge class
func (c *Client) DeleteBadge(ctx context.Context, token *Token, entityID string) error {
	return c.do(ctx, token, http.MethodDelete, "/v2/badgeclasses/"+url.PathEscape(entityID), nil, nil)
}

// do sends an authorized JSON request and decodes the response into out
func (c *Client) do(ctx context.Context, token *Token, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if token != nil {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token.AccessToken))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := c.checkResponse(method, req.URL.String(), resp)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) checkResponse(method, target string, resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(data),
		}).Errorf("Request to '%s' failed", target)
		return nil, &StatusError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}
