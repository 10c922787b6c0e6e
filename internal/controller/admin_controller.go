package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"affiliate-api/internal/service"
)

type AdminController struct {
	adminService service.AdminService
}

func NewAdminController(adminService service.AdminService) *AdminController {
	return &AdminController{
		adminService: adminService,
	}
}

// @Summary Get commission settings
// @Description Get the latest per-level commission percentage schedule
// @Tags admin
// @Produce json
// @Success 200 {object} models.CommissionSettings
// @Failure 500 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /api/admin/commission-settings [get]
func (c *AdminController) GetCommissionSettings(ctx *gin.Context) {
	settings, err := c.adminService.GetCommissionSettings(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, settings)
}

// @Summary Update commission settings
// @Description Write a new version of the commission percentage schedule
// @Tags admin
// @Accept json
// @Produce json
// @Param request body service.UpdateSettingsRequest true "Settings request"
// @Success 201 {object} models.CommissionSettings
// @Failure 400 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /api/admin/commission-settings [put]
func (c *AdminController) UpdateCommissionSettings(ctx *gin.Context) {
	var req service.UpdateSettingsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	settings, err := c.adminService.UpdateCommissionSettings(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid settings",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusCreated, settings)
}
