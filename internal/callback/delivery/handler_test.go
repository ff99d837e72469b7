package delivery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"attendance-bridge/internal/callback/domain"
	"attendance-bridge/pkg/logging"
	"attendance-bridge/pkg/wecom"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsecase struct {
	echo    *domain.EchoResponse
	outcome domain.Outcome
	err     error
	gotEnv  wecom.Envelope
	gotBody []byte
}

func (s *stubUsecase) VerifyURL(ctx context.Context, env wecom.Envelope) (*domain.EchoResponse, error) {
	s.gotEnv = env
	return s.echo, s.err
}

func (s *stubUsecase) HandleMessage(ctx context.Context, env wecom.Envelope, body []byte) (domain.Outcome, error) {
	s.gotEnv = env
	s.gotBody = body
	return s.outcome, s.err
}

func newRouter(uc *stubUsecase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewCallbackHandler(uc, logging.Discard()).Register(r, "/callback")
	return r
}

func query() string {
	q := url.Values{}
	q.Set("msg_signature", "sig")
	q.Set("timestamp", "1772416800")
	q.Set("nonce", "n0nce")
	return q.Encode()
}

func TestVerifyURL_ReturnsChallenge(t *testing.T) {
	uc := &stubUsecase{echo: &domain.EchoResponse{Body: "challenge"}}
	r := newRouter(uc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/callback?"+query()+"&echostr=abc%2B%2F%3D", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "challenge", w.Body.String())
	assert.Equal(t, wecom.Envelope{Signature: "sig", Timestamp: "1772416800", Nonce: "n0nce", Ciphertext: "abc+/="}, uc.gotEnv)
}

func TestVerifyURL_SealedReplyIsXML(t *testing.T) {
	uc := &stubUsecase{echo: &domain.EchoResponse{Body: "<xml></xml>", XML: true}}
	r := newRouter(uc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/callback?"+query()+"&echostr=x", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/xml")
}

func TestVerifyURL_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "missing parameter", err: wecom.ErrMissingParameter, want: http.StatusBadRequest},
		{name: "signature mismatch", err: wecom.ErrSignatureMismatch, want: http.StatusUnauthorized},
		{name: "decryption failure", err: &wecom.DecryptionError{Reason: wecom.ReasonPadding}, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&stubUsecase{err: tt.err})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/callback?"+query()+"&echostr=x", nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestReceive_AcknowledgesAcceptedAndDuplicate(t *testing.T) {
	for _, outcome := range []domain.Outcome{domain.OutcomeQueued, domain.OutcomeDuplicate, domain.OutcomeIgnored} {
		t.Run(string(outcome), func(t *testing.T) {
			uc := &stubUsecase{outcome: outcome}
			r := newRouter(uc)

			w := httptest.NewRecorder()
			body := "<xml><Encrypt><![CDATA[abc]]></Encrypt></xml>"
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/callback?"+query(), strings.NewReader(body)))

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "success", w.Body.String())
			assert.Equal(t, body, string(uc.gotBody))
			assert.Empty(t, uc.gotEnv.Ciphertext)
		})
	}
}

func TestReceive_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "missing parameter", err: wecom.ErrMissingParameter, want: http.StatusBadRequest},
		{name: "signature mismatch", err: wecom.ErrSignatureMismatch, want: http.StatusUnauthorized},
		{name: "tenant mismatch", err: &wecom.DecryptionError{Reason: wecom.ReasonTenantMismatch, Err: wecom.ErrTenantMismatch}, want: http.StatusInternalServerError},
		{name: "queue full", err: domain.ErrQueueFull, want: http.StatusInternalServerError},
		{name: "unexpected", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&stubUsecase{err: tt.err})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/callback?"+query(), strings.NewReader("<xml/>")))

			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, "fail", w.Body.String())
		})
	}
}
