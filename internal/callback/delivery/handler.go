package delivery

import (
	"errors"
	"io"
	"net/http"

	"attendance-bridge/internal/callback/usecase"
	"attendance-bridge/pkg/logging"
	"attendance-bridge/pkg/wecom"

	"github.com/gin-gonic/gin"
)

const (
	ackSuccess = "success"
	ackFail    = "fail"

	maxBodyBytes = 1 << 20
)

type CallbackHandler struct {
	callbackUsecase usecase.CallbackUsecase
	log             logging.Logger
}

func NewCallbackHandler(callbackUsecase usecase.CallbackUsecase, log logging.Logger) *CallbackHandler {
	return &CallbackHandler{
		callbackUsecase: callbackUsecase,
		log:             log.With("component", "callback_http"),
	}
}

// Register mounts the handshake and message endpoints on path.
func (h *CallbackHandler) Register(r gin.IRoutes, path string) {
	r.GET(path, h.VerifyURL)
	r.POST(path, h.Receive)
}

// VerifyURL answers GET ?msg_signature=&timestamp=&nonce=&echostr=
func (h *CallbackHandler) VerifyURL(c *gin.Context) {
	env := envelopeFromQuery(c)
	env.Ciphertext = c.Query("echostr")

	resp, err := h.callbackUsecase.VerifyURL(c.Request.Context(), env)
	if err != nil {
		status := statusFor(err)
		h.log.Warn(c.Request.Context(), "url verification rejected", "status", status, "error", err)
		c.String(status, http.StatusText(status))
		return
	}

	if resp.XML {
		c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(resp.Body))
		return
	}
	c.String(http.StatusOK, resp.Body)
}

// Receive answers POST ?msg_signature=&timestamp=&nonce= with an encrypted
// XML body. Anything accepted into processing, duplicates included, is
// acknowledged with "success".
func (h *CallbackHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		h.log.Warn(c.Request.Context(), "failed to read callback body", "error", err)
		c.String(http.StatusBadRequest, ackFail)
		return
	}

	outcome, err := h.callbackUsecase.HandleMessage(c.Request.Context(), envelopeFromQuery(c), body)
	if err != nil {
		status := statusFor(err)
		h.log.Warn(c.Request.Context(), "callback rejected", "status", status, "error", err)
		c.String(status, ackFail)
		return
	}

	h.log.Debug(c.Request.Context(), "callback acknowledged", "outcome", string(outcome))
	c.String(http.StatusOK, ackSuccess)
}

func envelopeFromQuery(c *gin.Context) wecom.Envelope {
	return wecom.Envelope{
		Signature: c.Query("msg_signature"),
		Timestamp: c.Query("timestamp"),
		Nonce:     c.Query("nonce"),
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, wecom.ErrMissingParameter):
		return http.StatusBadRequest
	case errors.Is(err, wecom.ErrSignatureMismatch):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
