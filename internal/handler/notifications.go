package handlers

import (
	"net/http"

	"BloodLink/pkg/notification"
	"BloodLink/pkg/response"
	"BloodLink/pkg/sse"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cast"
)

func (h *Handlers) handleListNotifications(c *gin.Context) {
	list, err := h.repo.Notes().List(notification.ScopeGlobal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "", gin.H{"notifications": list})
}

func (h *Handlers) handleListLowStockAlerts(c *gin.Context) {
	list, err := h.repo.Notes().List(notification.ScopeLowStock)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "", gin.H{"low_stock_alerts": list})
}

// handleNotificationStream keeps an SSE connection open. Use ?group=<scope>
// to narrow the stream; donors pass ?donor_id=.
func (h *Handlers) handleNotificationStream(c *gin.Context) {
	if h.hub == nil {
		response.Fail(c, http.StatusServiceUnavailable, "live notifications disabled")
		return
	}
	id := uuid.NewString()
	if donor := c.Query("donor_id"); donor != "" {
		q := c.Request.URL.Query()
		q.Add("group", sse.DonorGroup(donor))
		c.Request.URL.RawQuery = q.Encode()
	}
	h.hub.Serve(c, id)
}

func (h *Handlers) handleNotifyDonor(c *gin.Context) {
	var req struct {
		DonorID interface{} `json:"donor_id"`
		Message string      `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	h.notifyDonor(c, cast.ToString(req.DonorID), req.Message)
}

func (h *Handlers) handlePostDonorAlert(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	h.notifyDonor(c, c.Param("id"), req.Message)
}

func (h *Handlers) notifyDonor(c *gin.Context, donorID, message string) {
	e, err := h.repo.NotifyDonor(c.Request.Context(), donorID, message)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Notification sent", gin.H{"notification": e})
}

func (h *Handlers) handleDonorNotifications(c *gin.Context) {
	list, err := h.repo.DonorNotifications(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "", gin.H{"notifications": list})
}

// handleDonorLatestNotification returns only the newest entry, nested the way
// the donor dashboard expects.
func (h *Handlers) handleDonorLatestNotification(c *gin.Context) {
	list, err := h.repo.DonorNotifications(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	var latest interface{}
	if len(list) > 0 {
		latest = list[0]
	}
	response.Success(c, "", gin.H{"data": gin.H{"notification": latest}})
}
