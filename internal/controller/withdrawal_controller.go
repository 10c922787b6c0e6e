package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"affiliate-api/internal/service"
)

type WithdrawalController struct {
	withdrawalService service.WithdrawalService
}

func NewWithdrawalController(withdrawalService service.WithdrawalService) *WithdrawalController {
	return &WithdrawalController{
		withdrawalService: withdrawalService,
	}
}

type requestWithdrawalBody struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// @Summary Request a withdrawal
// @Description Request a payout of available balance, subject to the monthly window
// @Tags withdrawals
// @Accept json
// @Produce json
// @Param id path string true "Affiliate ID"
// @Param request body requestWithdrawalBody true "Withdrawal request"
// @Success 201 {object} service.WithdrawalResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Security BearerAuth
// @Router /api/affiliates/{id}/withdrawals [post]
func (c *WithdrawalController) RequestWithdrawal(ctx *gin.Context) {
	id, ok := objectIDFromPath(ctx, "id")
	if !ok {
		return
	}

	var body requestWithdrawalBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	response, err := c.withdrawalService.RequestWithdrawal(ctx.Request.Context(), &service.WithdrawalRequest{
		AffiliateID: id,
		Amount:      body.Amount,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, response)
}

// @Summary List withdrawals for an affiliate
// @Tags withdrawals
// @Produce json
// @Param id path string true "Affiliate ID"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {array} models.Withdrawal
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /api/affiliates/{id}/withdrawals [get]
func (c *WithdrawalController) ListWithdrawals(ctx *gin.Context) {
	id, ok := objectIDFromPath(ctx, "id")
	if !ok {
		return
	}

	limit, offset := paginationParams(ctx)

	withdrawals, err := c.withdrawalService.GetWithdrawals(ctx.Request.Context(), id, limit, offset)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, withdrawals)
}

type processWithdrawalBody struct {
	Approve     bool   `json:"approve"`
	ProcessedBy string `json:"processed_by" binding:"required"`
	Reason      string `json:"reason,omitempty"`
}

// @Summary Approve or reject a withdrawal
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Withdrawal ID"
// @Param request body processWithdrawalBody true "Decision"
// @Success 200 {object} models.Withdrawal
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /api/admin/withdrawals/{id}/process [post]
func (c *WithdrawalController) ProcessWithdrawal(ctx *gin.Context) {
	id, ok := objectIDFromPath(ctx, "id")
	if !ok {
		return
	}

	var body processWithdrawalBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	withdrawal, err := c.withdrawalService.ProcessWithdrawal(ctx.Request.Context(), &service.ProcessWithdrawalRequest{
		WithdrawalID: id,
		Approve:      body.Approve,
		ProcessedBy:  body.ProcessedBy,
		Reason:       body.Reason,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, withdrawal)
}

func paginationParams(ctx *gin.Context) (int, int) {
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
