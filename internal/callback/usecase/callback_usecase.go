package usecase

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"attendance-bridge/internal/callback/domain"
	"attendance-bridge/pkg/config"
	"attendance-bridge/pkg/logging"
	"attendance-bridge/pkg/wecom"
)

// callbackUsecase implements CallbackUsecase interface
type callbackUsecase struct {
	settings Settings
	guard    *IdempotencyGuard
	jobs     JobQueue
	log      logging.Logger
	now      func() time.Time
}

// NewCallbackUsecase creates a new instance of callbackUsecase
func NewCallbackUsecase(settings Settings, guard *IdempotencyGuard, jobs JobQueue, log logging.Logger) CallbackUsecase {
	return &callbackUsecase{
		settings: settings,
		guard:    guard,
		jobs:     jobs,
		log:      log.With("component", "callback"),
		now:      time.Now,
	}
}

func (u *callbackUsecase) VerifyURL(ctx context.Context, env wecom.Envelope) (*domain.EchoResponse, error) {
	if err := env.Verify(u.settings.Token); err != nil {
		return nil, err
	}

	if u.settings.EchoMode == config.EchoModePlain {
		return &domain.EchoResponse{Body: env.Ciphertext}, nil
	}

	payload, err := wecom.Decrypt(env.Ciphertext, u.settings.Key, u.settings.CorpID)
	if err != nil {
		return nil, err
	}

	if u.settings.EchoMode == config.EchoModeSealed {
		reply, err := wecom.SealReply(u.settings.Token, env.Timestamp, env.Nonce, payload.Body, u.settings.Key, u.settings.CorpID)
		if err != nil {
			return nil, err
		}
		body, err := xml.Marshal(reply)
		if err != nil {
			return nil, fmt.Errorf("encode reply: %w", err)
		}
		return &domain.EchoResponse{Body: string(body), XML: true}, nil
	}

	return &domain.EchoResponse{Body: string(payload.Body)}, nil
}

func (u *callbackUsecase) HandleMessage(ctx context.Context, env wecom.Envelope, body []byte) (domain.Outcome, error) {
	if err := env.CheckParams(); err != nil {
		return "", err
	}

	req, err := wecom.ParseEncryptedRequest(body)
	if err != nil {
		return "", err
	}
	env.Ciphertext = req.Encrypt

	if err := env.Verify(u.settings.Token); err != nil {
		return "", err
	}

	payload, err := wecom.Decrypt(env.Ciphertext, u.settings.Key, u.settings.CorpID)
	if err != nil {
		return "", err
	}

	msg, err := wecom.ParseMessage(payload.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}

	if msg.MsgType != wecom.MsgTypeText {
		u.log.Debug(ctx, "ignoring non-text callback", "type", msg.MsgType, "event", msg.Event, "user", msg.FromUserName)
		return domain.OutcomeIgnored, nil
	}

	if msg.MsgID != "" && u.guard.IsDuplicate(msg.MsgID, u.now()) {
		u.log.Info(ctx, "duplicate delivery dropped", "msg_id", msg.MsgID)
		return domain.OutcomeDuplicate, nil
	}

	job := domain.CommandJob{
		MessageID:  msg.MsgID,
		FromUser:   msg.FromUserName,
		Content:    msg.Content,
		ReceivedAt: u.now(),
	}
	if !u.jobs.QueueJob(job) {
		if msg.MsgID != "" {
			u.guard.Forget(msg.MsgID)
		}
		return "", domain.ErrQueueFull
	}

	u.log.Info(ctx, "command queued", "msg_id", msg.MsgID, "user", msg.FromUserName)
	return domain.OutcomeQueued, nil
}
