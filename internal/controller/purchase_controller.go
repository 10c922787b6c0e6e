package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"affiliate-api/internal/service"
)

type PurchaseController struct {
	purchaseService service.PurchaseService
}

func NewPurchaseController(purchaseService service.PurchaseService) *PurchaseController {
	return &PurchaseController{
		purchaseService: purchaseService,
	}
}

// @Summary Record a purchase and distribute commissions
// @Description Record a storefront purchase and run the commission walk
// @Tags purchases
// @Accept json
// @Produce json
// @Param request body service.RecordPurchaseRequest true "Purchase request"
// @Success 201 {object} service.RecordPurchaseResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /api/purchases [post]
func (c *PurchaseController) RecordPurchase(ctx *gin.Context) {
	var req service.RecordPurchaseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	response, err := c.purchaseService.RecordPurchaseAndDistribute(ctx.Request.Context(), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, response)
}

// @Summary Get distributions for a purchase
// @Tags purchases
// @Produce json
// @Param id path string true "Purchase ID"
// @Success 200 {array} models.CommissionDistribution
// @Failure 404 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /api/purchases/{id}/distributions [get]
func (c *PurchaseController) GetDistributions(ctx *gin.Context) {
	id, ok := objectIDFromPath(ctx, "id")
	if !ok {
		return
	}

	rows, err := c.purchaseService.GetDistributions(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, rows)
}
