package httpserver

import (
	"errors"
	"net/http"

	exchangeerrors "pollstack/contexts/commerce/exchange-service/domain/errors"
	ledgererrors "pollstack/contexts/credit-ledger/ledger-service/domain/errors"
	lotteryerrors "pollstack/contexts/credit-ledger/lottery-service/domain/errors"
	surveyerrors "pollstack/contexts/survey-content/survey-service/domain/errors"
	"pollstack/internal/platform/txcoord"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"event", "http_request_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"method", r.Method,
			"path", r.URL.Path,
			"code", code,
			"error", err.Error(),
		)
		message := "internal server error"
		if status == http.StatusServiceUnavailable {
			message = "temporarily unavailable, retry later"
		}
		writeError(w, status, code, message)
		return
	}
	writeError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	var commitErr *txcoord.CommitError
	switch {
	case errors.Is(err, ledgererrors.ErrInsufficientBalance):
		return http.StatusPaymentRequired, "insufficient_balance"

	case errors.Is(err, ledgererrors.ErrSubjectNotFound),
		errors.Is(err, ledgererrors.ErrEntryNotFound),
		errors.Is(err, surveyerrors.ErrEntityNotFound),
		errors.Is(err, surveyerrors.ErrParticipationNotFound),
		errors.Is(err, lotteryerrors.ErrEntityNotFound),
		errors.Is(err, lotteryerrors.ErrDrawNotFound),
		errors.Is(err, exchangeerrors.ErrOrderNotFound):
		return http.StatusNotFound, "not_found"

	case errors.Is(err, surveyerrors.ErrNotAuthor):
		return http.StatusForbidden, "not_author"

	case errors.Is(err, surveyerrors.ErrEntityClosed):
		return http.StatusConflict, "entity_closed"
	case errors.Is(err, surveyerrors.ErrAlreadyParticipated):
		return http.StatusConflict, "already_participated"
	case errors.Is(err, surveyerrors.ErrAuthorCannotParticipate):
		return http.StatusConflict, "author_cannot_participate"
	case errors.Is(err, ledgererrors.ErrSubjectAlreadyExists),
		errors.Is(err, surveyerrors.ErrEntityAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, surveyerrors.ErrEntityDeleted):
		return http.StatusGone, "entity_deleted"
	case errors.Is(err, exchangeerrors.ErrIdempotencyConflict),
		errors.Is(err, surveyerrors.ErrIdempotencyConflict):
		return http.StatusConflict, "idempotency_conflict"

	case errors.Is(err, exchangeerrors.ErrIdempotencyKeyRequired):
		return http.StatusBadRequest, "idempotency_key_required"
	case errors.Is(err, ledgererrors.ErrInvalidSubjectID),
		errors.Is(err, ledgererrors.ErrInvalidEntryKind),
		errors.Is(err, ledgererrors.ErrZeroDelta),
		errors.Is(err, ledgererrors.ErrInvalidHistoryQuery),
		errors.Is(err, ledgererrors.ErrInvalidAdjustment),
		errors.Is(err, ledgererrors.ErrBalanceOverflow),
		errors.Is(err, surveyerrors.ErrInvalidEntityID),
		errors.Is(err, surveyerrors.ErrInvalidEntityKind),
		errors.Is(err, surveyerrors.ErrInvalidSubjectID),
		errors.Is(err, surveyerrors.ErrInvalidTitle),
		errors.Is(err, surveyerrors.ErrInvalidEstimatedMinutes),
		errors.Is(err, surveyerrors.ErrInvalidExtraCredit),
		errors.Is(err, surveyerrors.ErrInvalidDeadline),
		errors.Is(err, surveyerrors.ErrUnsupportedKind),
		errors.Is(err, lotteryerrors.ErrInvalidEntityID),
		errors.Is(err, lotteryerrors.ErrInvalidEntityKind),
		errors.Is(err, lotteryerrors.ErrInvalidWinnerCount),
		errors.Is(err, exchangeerrors.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"

	case errors.Is(err, txcoord.ErrRetryExhausted):
		return http.StatusServiceUnavailable, "retry_exhausted"
	case errors.As(err, &commitErr) && commitErr.Partial():
		return http.StatusInternalServerError, "partial_commit"
	case txcoord.KindOf(err) == txcoord.KindConflict:
		return http.StatusConflict, "write_conflict"
	case txcoord.IsRetryable(err):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
