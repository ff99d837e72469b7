package api

import (
	"net/http"
	"time"

	adminDelivery "attendance-bridge/internal/admin/delivery"
	adminUsecase "attendance-bridge/internal/admin/usecase"
	attendanceUsecase "attendance-bridge/internal/attendance/usecase"
	callbackDelivery "attendance-bridge/internal/callback/delivery"
	callbackUsecase "attendance-bridge/internal/callback/usecase"
	"attendance-bridge/pkg/config"
	"attendance-bridge/pkg/logging"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	config          *config.Config
	log             logging.Logger
	tokenUsecase    adminUsecase.TokenUsecase
	callbackHandler *callbackDelivery.CallbackHandler
	adminHandler    *adminDelivery.AdminHandler
	settingsHandler *SettingsHandler
}

func NewHandler(
	cfg *config.Config,
	callbackUc callbackUsecase.CallbackUsecase,
	pollUc attendanceUsecase.PollUsecase,
	tokenUc adminUsecase.TokenUsecase,
	log logging.Logger,
) *Handler {
	return &Handler{
		config:          cfg,
		log:             log.With("component", "http"),
		tokenUsecase:    tokenUc,
		callbackHandler: callbackDelivery.NewCallbackHandler(callbackUc, log),
		adminHandler:    adminDelivery.NewAdminHandler(pollUc, cfg.Location, log),
		settingsHandler: NewSettingsHandler(cfg),
	}
}

// Engine builds the gin engine with middleware and routes.
func (h *Handler) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(h.log))
	r.Use(CORS())

	SetupRoutes(r, h.config, h.callbackHandler, h.adminHandler, h.settingsHandler, h.tokenUsecase)
	return r
}

// Server returns an http.Server for addr; the caller owns ListenAndServe and
// Shutdown.
func (h *Handler) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
