package delivery

import (
	"net/http"
	"time"

	admindomain "attendance-bridge/internal/admin/domain"
	"attendance-bridge/internal/admin/dto"
	"attendance-bridge/internal/attendance/domain"
	attendance "attendance-bridge/internal/attendance/usecase"
	"attendance-bridge/pkg/logging"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	pollUsecase attendance.PollUsecase
	loc         *time.Location
	log         logging.Logger
}

func NewAdminHandler(pollUsecase attendance.PollUsecase, loc *time.Location, log logging.Logger) *AdminHandler {
	if loc == nil {
		loc = time.Local
	}
	return &AdminHandler{
		pollUsecase: pollUsecase,
		loc:         loc,
		log:         log.With("component", "admin_http"),
	}
}

// GetState returns the cursor, daily counter and watermarks.
func (h *AdminHandler) GetState(c *gin.Context) {
	state, err := h.pollUsecase.State(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.NewStateResponse(state))
}

// RunPoll runs one poll cycle now.
func (h *AdminHandler) RunPoll(c *gin.Context) {
	h.log.Info(c.Request.Context(), "poll requested", "operator", operatorName(c))

	report, err := h.pollUsecase.RunCycle(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "report": report})
		return
	}
	c.JSON(http.StatusOK, report)
}

// TestSend sends the test summary for ?date=YYYY-MM-DD, today by default.
func (h *AdminHandler) TestSend(c *gin.Context) {
	date := time.Now().In(h.loc)
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation(domain.DateLayout, raw, h.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	h.log.Info(c.Request.Context(), "test send requested", "operator", operatorName(c), "date", date.Format(domain.DateLayout))

	report, err := h.pollUsecase.SendTestSummary(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "report": report})
		return
	}
	c.JSON(http.StatusOK, report)
}

func operatorName(c *gin.Context) string {
	if op, ok := c.Get(operatorKey); ok {
		if operator, ok := op.(*admindomain.Operator); ok {
			return operator.Name
		}
	}
	return ""
}
