// Package api implements the REST client for the parley chat backend.
// It covers authentication, conversation CRUD, message history, and
// streaming-credential issuance. Streaming itself lives in internal/stream.
package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"parley/internal/logger"
	"parley/pkg/chattypes"
)

// chatIDHeader identifies the target conversation on chat-scoped endpoints.
const chatIDHeader = "X-Chat-Id"

// TokenSource supplies the bearer token for authenticated requests.
// The session store is the only implementation outside of tests.
type TokenSource interface {
	AccessToken() string
}

// Client is a thin, stateless wrapper over the backend REST endpoints.
// All methods classify non-2xx responses into the package error taxonomy.
type Client struct {
	rest    *resty.Client
	baseURL string
	tokens  TokenSource
}

// New creates a Client for the given base URL. A token source must be set
// before calling authenticated endpoints.
func New(baseURL string, timeout time.Duration) *Client {
	rest := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("User-Agent", "parley-client/1.0")

	// Correlate requests in backend logs
	rest.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		r.SetHeader("X-Request-Id", uuid.NewString())
		return nil
	})

	return &Client{
		rest:    rest,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// SetTokenSource wires the bearer token supplier for authenticated calls.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// tokenResponse is the body of POST /user/token.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges credentials for a bearer token via the password grant.
// It is the only endpoint that does not use bearer authentication.
func (c *Client) Login(ctx context.Context, phone, password string) (string, error) {
	var out tokenResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username":   phone,
			"password":   password,
			"grant_type": "password",
		}).
		SetResult(&out).
		Post("/user/token")
	if err := c.check(resp, err, "POST", "/user/token"); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", &ServiceError{Status: resp.StatusCode(), Err: fmt.Errorf("login response missing access_token")}
	}
	return out.AccessToken, nil
}

// GetProfile fetches the authenticated user's profile record.
func (c *Client) GetProfile(ctx context.Context) (chattypes.UserProfile, error) {
	var out chattypes.UserProfile
	resp, err := c.authed(ctx).
		SetResult(&out).
		Get("/user")
	if err := c.check(resp, err, "GET", "/user"); err != nil {
		return chattypes.UserProfile{}, err
	}
	return out, nil
}

// ListChats fetches all conversations owned by the current identity.
func (c *Client) ListChats(ctx context.Context) ([]chattypes.Conversation, error) {
	var out []chattypes.Conversation
	resp, err := c.authed(ctx).
		SetResult(&out).
		Get("/chat")
	if err := c.check(resp, err, "GET", "/chat"); err != nil {
		return nil, err
	}
	return out, nil
}

// GetChat fetches a single conversation by id. The backend responds with a
// one-element list for an id-filtered query.
func (c *Client) GetChat(ctx context.Context, chatID string) (chattypes.Conversation, error) {
	var out []chattypes.Conversation
	resp, err := c.authed(ctx).
		SetQueryParam("id", chatID).
		SetResult(&out).
		Get("/chat")
	if err := c.check(resp, err, "GET", "/chat"); err != nil {
		return chattypes.Conversation{}, err
	}
	if len(out) == 0 {
		return chattypes.Conversation{}, &ValidationError{Status: 404, Message: fmt.Sprintf("chat %s not found", chatID)}
	}
	return out[0], nil
}

// CreateChat requests a new conversation. The server assigns the
// authoritative id; an empty name is allowed and means "unnamed".
func (c *Client) CreateChat(ctx context.Context, name string) (chattypes.Conversation, error) {
	body := map[string]string{}
	if name != "" {
		body["name"] = name
	}
	var out chattypes.Conversation
	resp, err := c.authed(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/chat")
	if err := c.check(resp, err, "POST", "/chat"); err != nil {
		return chattypes.Conversation{}, err
	}
	return out, nil
}

// RenameChat updates a conversation's name. The response body carries no
// guarantee; callers must re-fetch for canonical state.
func (c *Client) RenameChat(ctx context.Context, chatID, name string) error {
	resp, err := c.authed(ctx).
		SetHeader(chatIDHeader, chatID).
		SetBody(map[string]string{"name": name}).
		Put("/chat")
	return c.check(resp, err, "PUT", "/chat")
}

// DeleteChat deletes a conversation and all its messages.
func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	resp, err := c.authed(ctx).
		SetHeader(chatIDHeader, chatID).
		Delete("/chat")
	return c.check(resp, err, "DELETE", "/chat")
}

// lenResponse is the body of GET /chat/message/len.
type lenResponse struct {
	Len int `json:"len"`
}

// MessageCount returns the number of persisted messages in a conversation.
func (c *Client) MessageCount(ctx context.Context, chatID string) (int, error) {
	var out lenResponse
	resp, err := c.authed(ctx).
		SetHeader(chatIDHeader, chatID).
		SetResult(&out).
		Get("/chat/message/len")
	if err := c.check(resp, err, "GET", "/chat/message/len"); err != nil {
		return 0, err
	}
	return out.Len, nil
}

// GetMessage fetches the single message at the given chat index.
func (c *Client) GetMessage(ctx context.Context, chatID string, chatIndex int) (chattypes.Message, error) {
	var out chattypes.Message
	resp, err := c.authed(ctx).
		SetHeader(chatIDHeader, chatID).
		SetQueryParam("chat_index", strconv.Itoa(chatIndex)).
		SetResult(&out).
		Get("/chat/message")
	if err := c.check(resp, err, "GET", "/chat/message"); err != nil {
		return chattypes.Message{}, err
	}
	return out, nil
}

// PostMessage persists a new message and returns the canonical record with
// its server-assigned chat index.
func (c *Client) PostMessage(ctx context.Context, chatID string, role chattypes.Role, content string) (chattypes.Message, error) {
	if !role.Valid() {
		return chattypes.Message{}, &ValidationError{Status: 400, Message: fmt.Sprintf("invalid role %q", role)}
	}
	var out chattypes.Message
	resp, err := c.authed(ctx).
		SetHeader(chatIDHeader, chatID).
		SetBody(map[string]string{"role": string(role), "content": content}).
		SetResult(&out).
		Post("/chat/message")
	if err := c.check(resp, err, "POST", "/chat/message"); err != nil {
		return chattypes.Message{}, err
	}
	return out, nil
}

// streamTokenResponse is the body of GET /generate/chat/token.
type streamTokenResponse struct {
	Token string `json:"token"`
}

// StreamToken requests a short-lived single-use credential for one
// generation session. The streaming channel authenticates with this token
// rather than the long-lived identity token.
func (c *Client) StreamToken(ctx context.Context) (string, error) {
	var out streamTokenResponse
	resp, err := c.authed(ctx).
		SetResult(&out).
		Get("/generate/chat/token")
	if err := c.check(resp, err, "GET", "/generate/chat/token"); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", &ServiceError{Status: resp.StatusCode(), Err: fmt.Errorf("stream token response missing token")}
	}
	return out.Token, nil
}

// StreamURL builds the websocket URL for a generation session. The scheme is
// upgraded from http(s) to ws(s) on the same host; the single-use credential
// rides as a query parameter.
func (c *Client) StreamURL(token string) string {
	wsBase := c.baseURL
	if strings.HasPrefix(wsBase, "http") {
		wsBase = "ws" + strings.TrimPrefix(wsBase, "http")
	}
	return wsBase + "/generate/chat/ws?token=" + url.QueryEscape(token)
}

// authed returns a request carrying the bearer token, if any.
func (c *Client) authed(ctx context.Context) *resty.Request {
	req := c.rest.R().SetContext(ctx)
	if c.tokens != nil {
		if tok := c.tokens.AccessToken(); tok != "" {
			req.SetAuthToken(tok)
		}
	}
	return req
}

// check folds transport errors and non-2xx statuses into the error taxonomy.
func (c *Client) check(resp *resty.Response, err error, method, path string) error {
	if err != nil {
		logger.Error("Request failed", "method", method, "path", path, "error", err)
		return &ServiceError{Err: err}
	}
	logger.APIRequest(method, path, resp.StatusCode())
	if resp.IsError() {
		return classify(resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}
