package helpers

import (
	"errors"
	"fmt"
	"net/http"

	"auction-engine/internal/biddingerrors"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload", "")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return http.StatusBadRequest, "invalid bid details"
	case errors.Is(err, biddingerrors.ErrInvalidAuction):
		return http.StatusBadRequest, "invalid auction details"
	case errors.Is(err, biddingerrors.ErrOutBid):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, biddingerrors.ErrBelowStartingBid):
		return http.StatusConflict, "bid below starting bid"
	case errors.Is(err, biddingerrors.ErrBidWindowClosed):
		return http.StatusConflict, "auction is not accepting bids"
	case errors.Is(err, biddingerrors.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "auction store unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// RespondError writes the mapped error response and logs it
func RespondError(c *gin.Context, handlerName string, err error, fields map[string]any) {
	status, message := MapErrorToHTTP(err)
	utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message, RejectionReason(status, err))

	if fields == nil {
		fields = map[string]any{}
	}
	fields["handler"] = handlerName
	fields["error"] = err.Error()
	if status >= http.StatusInternalServerError {
		utils.Error(handlerName+": request failed", fields)
		return
	}
	utils.Warn(handlerName+": request rejected", fields)
}

// RejectionReason returns the bid rejection reason for errors that have one, or ""
func RejectionReason(status int, err error) string {
	switch {
	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return biddingerrors.ReasonInvalidBid
	case status == http.StatusNotFound, status == http.StatusConflict, status == http.StatusServiceUnavailable:
		return biddingerrors.Reason(err)
	default:
		return ""
	}
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
