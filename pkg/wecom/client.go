package wecom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// tokenEarlyExpiry is how long before expiry a cached access token is
// considered stale and reacquired.
const tokenEarlyExpiry = 5 * time.Minute

// Client sends agent text messages. It is safe for concurrent use.
type Client struct {
	baseURL    string
	corpID     string
	secret     string
	agentID    int64
	httpClient *http.Client

	mu     sync.Mutex
	tokens oauth2.TokenSource
}

// NewClient creates a message API client. baseURL is normally
// https://qyapi.weixin.qq.com.
func NewClient(baseURL, corpID, secret string, agentID int64, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		corpID:     corpID,
		secret:     secret,
		agentID:    agentID,
		httpClient: &http.Client{Timeout: timeout},
	}
	c.tokens = c.newTokenSource()
	return c
}

// newTokenSource wraps gettoken in a reusing source. ReuseTokenSource holds
// its lock while fetching, so concurrent callers wait for one refresh.
func (c *Client) newTokenSource() oauth2.TokenSource {
	return oauth2.ReuseTokenSourceWithExpiry(nil, &corpTokenSource{client: c}, tokenEarlyExpiry)
}

func (c *Client) tokenSource() oauth2.TokenSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens
}

// invalidate drops the cached token unless another caller already did.
func (c *Client) invalidate(stale oauth2.TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokens == stale {
		c.tokens = c.newTokenSource()
	}
}

// AccessToken returns a valid access token, fetching one if needed.
func (c *Client) AccessToken() (string, error) {
	tok, err := c.tokenSource().Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

type tokenResponse struct {
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type corpTokenSource struct {
	client *Client
}

func (s *corpTokenSource) Token() (*oauth2.Token, error) {
	c := s.client
	q := url.Values{}
	q.Set("corpid", c.corpID)
	q.Set("corpsecret", c.secret)

	resp, err := c.httpClient.Get(c.baseURL + "/cgi-bin/gettoken?" + q.Encode())
	if err != nil {
		return nil, fmt.Errorf("get access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("get access token: status %d, body: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode access token response: %w", err)
	}
	if tr.ErrCode != 0 {
		return nil, &APIError{Code: tr.ErrCode, Message: tr.ErrMsg}
	}
	if tr.AccessToken == "" {
		return nil, errors.New("get access token: empty access_token")
	}

	expiresIn := time.Duration(tr.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = 7200 * time.Second
	}
	return &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(expiresIn),
	}, nil
}

type textContent struct {
	Content string `json:"content"`
}

type sendRequest struct {
	ToUser  string      `json:"touser"`
	MsgType string      `json:"msgtype"`
	AgentID int64       `json:"agentid"`
	Text    textContent `json:"text"`
	Safe    int         `json:"safe"`
}

type sendResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Send delivers a text message to one user. A rejected access token is
// reacquired and the send retried once.
func (c *Client) Send(ctx context.Context, toUser, content string) error {
	if toUser == "" {
		return errors.New("send message: empty recipient")
	}

	err := c.send(ctx, toUser, content)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.tokenExpired() {
		return c.send(ctx, toUser, content)
	}
	return err
}

func (c *Client) send(ctx context.Context, toUser, content string) error {
	src := c.tokenSource()
	tok, err := src.Token()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(sendRequest{
		ToUser:  toUser,
		MsgType: MsgTypeText,
		AgentID: c.agentID,
		Text:    textContent{Content: content},
		Safe:    0,
	})
	if err != nil {
		return err
	}

	endpoint := c.baseURL + "/cgi-bin/message/send?access_token=" + url.QueryEscape(tok.AccessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message to %s: %w", toUser, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send message to %s: status %d, body: %s", toUser, resp.StatusCode, string(body))
	}

	var sr sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return fmt.Errorf("decode send response: %w", err)
	}
	if sr.ErrCode != 0 {
		apiErr := &APIError{Code: sr.ErrCode, Message: sr.ErrMsg}
		if apiErr.tokenExpired() {
			c.invalidate(src)
		}
		return apiErr
	}
	return nil
}
