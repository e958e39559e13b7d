package handlers

import (
	"net/http"

	"BloodLink/internal/models"
	"BloodLink/pkg/flatstore"
	"BloodLink/pkg/response"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) handleRequestBlood(c *gin.Context) {
	var form models.BloodRequestForm
	if err := c.ShouldBindJSON(&form); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	row, err := h.repo.CreateBloodRequest(c.Request.Context(), form, h.cfg.HospitalID, h.cfg.BankID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Blood request sent successfully", gin.H{"request": row})
}

func (h *Handlers) handleListBloodRequests(c *gin.Context) {
	rows, err := h.repo.ListBloodRequests()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "", gin.H{"blood_requests": rows})
}

func (h *Handlers) handleListBankResponses(c *gin.Context) {
	rows, err := h.repo.ListBankResponses()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "", gin.H{"responses": rows})
}

// handleTransactions returns the completed-alert log as a bare array, the
// shape the transaction history page reads.
func (h *Handlers) handleTransactions(c *gin.Context) {
	rows, err := h.repo.ListAlertResponses()
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, r := range rows {
		out = append(out, gin.H{
			"alert_id":    r["alert_id"],
			"hospital_id": r["hospital_id"],
			"bank_id":     r["bank_id"],
			"status":      r["response"],
			"units":       flatstore.IntOr(r, "units_used", 0),
			"date":        r["response_time"],
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) handleAcceptedDonorsCount(c *gin.Context) {
	n, err := h.repo.AcceptedDonorsCount(models.HospitalEligibilityTable)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "", gin.H{"accepted_donors": n})
}
