package handlers

import (
	"net/http"
	"strings"

	"BloodLink/internal/models"
	"BloodLink/pkg/flatstore"
	"BloodLink/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

func (h *Handlers) handleListDonors(c *gin.Context) {
	donors, err := h.repo.ListDonors()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, donors)
}

func (h *Handlers) handleGetDonor(c *gin.Context) {
	row, err := h.repo.GetDonor(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, models.DonorView(row))
}

func (h *Handlers) handleDonorLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	out, err := h.repo.DonorLogin(req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) handleDashboard(c *gin.Context) {
	h.donorView(c, h.repo.Dashboard)
}

func (h *Handlers) handleDonationHistory(c *gin.Context) {
	h.donorView(c, h.repo.DonationHistory)
}

func (h *Handlers) handleProfile(c *gin.Context) {
	h.donorView(c, h.repo.Profile)
}

func (h *Handlers) donorView(c *gin.Context, fn func(string) (map[string]interface{}, error)) {
	out, err := fn(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) handleStoreEligibility(t flatstore.Table) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form models.EligibilityForm
		if err := c.ShouldBindJSON(&form); err != nil {
			response.Fail(c, http.StatusBadRequest, "Invalid input")
			return
		}
		row, err := h.repo.StoreEligibility(t, form)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, "", gin.H{"success": true, "donor_id": row["donor_id"], "eligibility": row["eligibility"]})
	}
}

func (h *Handlers) handleGetEligibility(t flatstore.Table) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form models.EligibilityForm
		if err := c.ShouldBindJSON(&form); err != nil {
			response.Fail(c, http.StatusBadRequest, "Invalid input")
			return
		}
		donorID := strings.TrimSpace(cast.ToString(form.DonorID))
		answer, err := h.repo.GetEligibility(t, donorID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, "", gin.H{"donor_id": donorID, "eligibility": answer})
	}
}

func (h *Handlers) handleUpdateEligibility(c *gin.Context) {
	var form models.EligibilityForm
	if err := c.ShouldBindJSON(&form); err != nil {
		response.Fail(c, http.StatusBadRequest, "Invalid input")
		return
	}
	donorID, answer, err := h.repo.UpdateDonorEligibility(form)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "", gin.H{"success": true, "donor_id": donorID, "eligible": answer})
}
