package wecom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlatform struct {
	tokenCalls atomic.Int32
	sendCalls  atomic.Int32

	mu       sync.Mutex
	sent     []sendRequest
	sendCode func(call int32, token string) (int, string)
}

func (f *fakePlatform) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/cgi-bin/gettoken", func(w http.ResponseWriter, r *http.Request) {
		n := f.tokenCalls.Add(1)
		assert.Equal(t, testCorpID, r.URL.Query().Get("corpid"))
		assert.Equal(t, "agent-secret", r.URL.Query().Get("corpsecret"))
		time.Sleep(5 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: fmt.Sprintf("token-%d", n), ExpiresIn: 7200})
	})
	mux.HandleFunc("/cgi-bin/message/send", func(w http.ResponseWriter, r *http.Request) {
		n := f.sendCalls.Add(1)
		var req sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.sent = append(f.sent, req)
		f.mu.Unlock()

		code, msg := 0, "ok"
		if f.sendCode != nil {
			code, msg = f.sendCode(n, r.URL.Query().Get("access_token"))
		}
		_ = json.NewEncoder(w).Encode(sendResponse{ErrCode: code, ErrMsg: msg})
	})
	return mux
}

func newTestClient(t *testing.T, f *fakePlatform) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, testCorpID, "agent-secret", 1000002, time.Second)
}

func TestClient_SendReusesToken(t *testing.T) {
	f := &fakePlatform{}
	c := newTestClient(t, f)

	require.NoError(t, c.Send(context.Background(), "user-1", "hello"))
	require.NoError(t, c.Send(context.Background(), "user-2", "again"))

	assert.Equal(t, int32(1), f.tokenCalls.Load())
	require.Len(t, f.sent, 2)
	assert.Equal(t, sendRequest{ToUser: "user-1", MsgType: "text", AgentID: 1000002, Text: textContent{Content: "hello"}, Safe: 0}, f.sent[0])
}

func TestClient_ConcurrentSendersShareOneRefresh(t *testing.T) {
	f := &fakePlatform{}
	c := newTestClient(t, f)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.Send(context.Background(), fmt.Sprintf("user-%d", i), "hi"))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.tokenCalls.Load())
	assert.Equal(t, int32(20), f.sendCalls.Load())
}

func TestClient_ExpiredTokenIsReacquired(t *testing.T) {
	f := &fakePlatform{
		sendCode: func(call int32, token string) (int, string) {
			if token == "token-1" {
				return 42001, "access_token expired"
			}
			return 0, "ok"
		},
	}
	c := newTestClient(t, f)

	require.NoError(t, c.Send(context.Background(), "user-1", "hello"))
	assert.Equal(t, int32(2), f.tokenCalls.Load())
	assert.Equal(t, int32(2), f.sendCalls.Load())

	tok, err := c.AccessToken()
	require.NoError(t, err)
	assert.Equal(t, "token-2", tok)
}

func TestClient_SendReportsAPIError(t *testing.T) {
	f := &fakePlatform{
		sendCode: func(int32, string) (int, string) { return 81013, "user not found" },
	}
	c := newTestClient(t, f)

	err := c.Send(context.Background(), "ghost", "hello")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 81013, apiErr.Code)
	assert.Equal(t, int32(1), f.sendCalls.Load(), "non-token errors are not retried")
}

func TestClient_TokenErrorFailsSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(tokenResponse{ErrCode: 40013, ErrMsg: "invalid corpid"})
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "bad", "secret", 1, time.Second)

	err := c.Send(context.Background(), "user-1", "hello")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 40013, apiErr.Code)
}

func TestClient_EmptyRecipient(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", testCorpID, "s", 1, time.Second)
	require.Error(t, c.Send(context.Background(), "", "hello"))
}
