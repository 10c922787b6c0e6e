package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"affiliate-api/internal/models"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusForError maps domain errors to HTTP status codes. Unknown errors
// fall through to 500.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrAffiliateNotFound),
		errors.Is(err, models.ErrPurchaseNotFound),
		errors.Is(err, models.ErrWithdrawalNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, models.ErrSponsorNotFound):
		return http.StatusUnprocessableEntity, "Sponsor not found"
	case errors.Is(err, models.ErrNetworkFull):
		return http.StatusConflict, "Network full"
	case errors.Is(err, models.ErrSlotTaken),
		errors.Is(err, models.ErrTransientConflict):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, models.ErrAlreadyDistributed):
		return http.StatusConflict, "Already distributed"
	case errors.Is(err, models.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "Insufficient balance"
	case errors.Is(err, models.ErrMissingPixKey):
		return http.StatusUnprocessableEntity, "Pix key not configured"
	case errors.Is(err, models.ErrNotActiveThisMonth):
		return http.StatusUnprocessableEntity, "Not active this month"
	case errors.Is(err, models.ErrOutsideWithdrawalWindow):
		return http.StatusUnprocessableEntity, "Outside withdrawal window"
	case errors.Is(err, models.ErrDuplicateMonthlyRequest):
		return http.StatusConflict, "Withdrawal already requested this month"
	case errors.Is(err, models.ErrWithdrawalNotPending):
		return http.StatusConflict, "Withdrawal already processed"
	case errors.Is(err, models.ErrLedgerInvariant):
		return http.StatusInternalServerError, "Distribution aborted"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

func respondError(ctx *gin.Context, err error) {
	status, label := statusForError(err)
	ctx.JSON(status, ErrorResponse{
		Error:   label,
		Message: err.Error(),
	})
}

func objectIDFromPath(ctx *gin.Context, param string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(ctx.Param(param))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid id",
			Message: "path parameter " + param + " must be a valid object id",
		})
		return primitive.NilObjectID, false
	}
	return id, true
}
