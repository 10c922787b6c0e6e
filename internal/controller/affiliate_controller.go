package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"affiliate-api/internal/service"
)

type AffiliateController struct {
	affiliateService service.AffiliateService
}

func NewAffiliateController(affiliateService service.AffiliateService) *AffiliateController {
	return &AffiliateController{
		affiliateService: affiliateService,
	}
}

// @Summary Register a new affiliate
// @Description Register an affiliate and place them in the sponsor's network
// @Tags affiliates
// @Accept json
// @Produce json
// @Param request body service.RegisterRequest true "Registration request"
// @Success 201 {object} service.RegisterResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/affiliates [post]
func (c *AffiliateController) Register(ctx *gin.Context) {
	var req service.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	response, err := c.affiliateService.Register(ctx.Request.Context(), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, response)
}

// @Summary Get affiliate details
// @Tags affiliates
// @Produce json
// @Param id path string true "Affiliate ID"
// @Success 200 {object} models.Affiliate
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /api/affiliates/{id} [get]
func (c *AffiliateController) GetAffiliate(ctx *gin.Context) {
	id, ok := objectIDFromPath(ctx, "id")
	if !ok {
		return
	}

	affiliate, err := c.affiliateService.GetAffiliate(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, affiliate)
}

// @Summary Get affiliate balance
// @Tags affiliates
// @Produce json
// @Param id path string true "Affiliate ID"
// @Success 200 {object} service.BalanceResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /api/affiliates/{id}/balance [get]
func (c *AffiliateController) GetBalance(ctx *gin.Context) {
	id, ok := objectIDFromPath(ctx, "id")
	if !ok {
		return
	}

	balance, err := c.affiliateService.GetBalance(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, balance)
}

type setPreferenceRequest struct {
	Preference string `json:"preference" binding:"required"`
}

// @Summary Set placement preference
// @Tags affiliates
// @Accept json
// @Produce json
// @Param id path string true "Affiliate ID"
// @Param request body setPreferenceRequest true "Preference request"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /api/affiliates/{id}/preference [put]
func (c *AffiliateController) SetPreference(ctx *gin.Context) {
	id, ok := objectIDFromPath(ctx, "id")
	if !ok {
		return
	}

	var req setPreferenceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	if err := c.affiliateService.SetPreference(ctx.Request.Context(), id, req.Preference); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

type setPixKeyRequest struct {
	PixKey string `json:"pix_key" binding:"required"`
}

// @Summary Set pix key for payouts
// @Tags affiliates
// @Accept json
// @Produce json
// @Param id path string true "Affiliate ID"
// @Param request body setPixKeyRequest true "Pix key request"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /api/affiliates/{id}/pix-key [put]
func (c *AffiliateController) SetPixKey(ctx *gin.Context) {
	id, ok := objectIDFromPath(ctx, "id")
	if !ok {
		return
	}

	var req setPixKeyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	if err := c.affiliateService.SetPixKey(ctx.Request.Context(), id, req.PixKey); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
