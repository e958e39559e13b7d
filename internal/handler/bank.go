package handlers

import (
	"fmt"
	"net/http"
	"time"

	"BloodLink/internal/models"
	"BloodLink/pkg/export"
	"BloodLink/pkg/geo"
	"BloodLink/pkg/response"
	"BloodLink/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

func (h *Handlers) handleListAlerts(c *gin.Context) {
	rows, err := h.repo.ListAlerts(c.Query("bank_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "", gin.H{"alerts": rows})
}

func (h *Handlers) handleResolveAlert(c *gin.Context) {
	var req struct {
		AlertID interface{} `json:"alert_id"`
		Units   interface{} `json:"units"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	units := 0
	if req.Units != nil && cast.ToString(req.Units) != "" {
		n, err := util.ParseUnits(req.Units)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, "units must be an integer")
			return
		}
		units = n
	}
	res, err := h.repo.ResolveAlert(c.Request.Context(), cast.ToString(req.AlertID), units)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Alert resolved", gin.H{"result": res})
}

func (h *Handlers) handleCompleteAlert(c *gin.Context) {
	var form models.CompleteForm
	if err := c.ShouldBindJSON(&form); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.repo.CompleteAlert(c.Request.Context(), form, h.cfg.HospitalID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Alert completed", gin.H{
		"inventory_updated": res.InventoryUpdated,
		"units_available":   res.UnitsAvailable,
	})
}

func (h *Handlers) handleRespondAlert(c *gin.Context) {
	var form models.RespondForm
	if err := c.ShouldBindJSON(&form); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	alert, err := h.repo.RespondAlert(c.Request.Context(), form)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Alert updated", gin.H{"alert": alert})
}

// handleListResponses is the listing the hospital response poller reads.
func (h *Handlers) handleListResponses(c *gin.Context) {
	alerts, err := h.repo.ListAlertResponses()
	if err != nil {
		response.Error(c, err)
		return
	}
	banks, err := h.repo.ListBankResponses()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "", gin.H{"alert_responses": alerts, "bank_responses": banks})
}

func (h *Handlers) handleListInventory(c *gin.Context) {
	rows, err := h.repo.ListInventory()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "", gin.H{"inventory": rows})
}

func (h *Handlers) handleUpdateInventory(c *gin.Context) {
	var form models.InventoryForm
	if err := c.ShouldBindJSON(&form); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	row, err := h.repo.UpdateInventory(c.Request.Context(), form)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Inventory updated", gin.H{"inventory": row})
}

func (h *Handlers) handleExportInventory(c *gin.Context) {
	rows, err := h.repo.ListInventory()
	if err != nil {
		response.Error(c, err)
		return
	}
	data, err := export.GenerateInventoryExport(rows, h.repo.Threshold)
	if err != nil {
		response.Error(c, err)
		return
	}
	name := fmt.Sprintf("inventory_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *Handlers) handleLowStockCount(c *gin.Context) {
	n, err := h.repo.LowStockCount()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "", gin.H{"low_stock": n})
}

func (h *Handlers) handleDonorsMap(c *gin.Context) {
	var req struct {
		Latitude   interface{} `json:"latitude"`
		Longitude  interface{} `json:"longitude"`
		Radius     interface{} `json:"radius"`
		BloodGroup string      `json:"blood_group"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	lat, errLat := cast.ToFloat64E(req.Latitude)
	lon, errLon := cast.ToFloat64E(req.Longitude)
	if req.Latitude == nil || req.Longitude == nil || errLat != nil || errLon != nil {
		response.Fail(c, http.StatusBadRequest, "latitude and longitude are required")
		return
	}
	radius := 5.0
	if req.Radius != nil {
		radius = cast.ToFloat64(req.Radius)
	}
	donors, err := h.repo.DonorsNear(geo.Point{Lat: lat, Lon: lon}, radius, req.BloodGroup)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "", gin.H{"donors": donors, "count": len(donors)})
}

func (h *Handlers) handleListBloodBanks(c *gin.Context) {
	banks, err := h.repo.ListBloodBanks()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "", gin.H{"bloodbanks": banks})
}
