package domain

import (
	"errors"
	"net/http"

	apperrors "github.com/shinshin4n4n/tube-review-sub001/pkg/errors"
)

// ErrDuplicateReview marks an attempt to create a second live review for
// the same user and channel.
var ErrDuplicateReview = errors.New("duplicate review")

func DuplicateReview() *apperrors.AppError {
	return &apperrors.AppError{
		Code:    "DUPLICATE_REVIEW",
		Message: "you have already reviewed this channel",
		Status:  http.StatusConflict,
		Err:     ErrDuplicateReview,
	}
}

// ReviewForbidden does not say whether the review exists.
func ReviewForbidden() *apperrors.AppError {
	return apperrors.Forbidden("you are not allowed to modify this review")
}

func SelfVoteForbidden() *apperrors.AppError {
	return apperrors.Forbidden("you cannot mark your own review as helpful")
}

func ReviewNotFound(id string) *apperrors.AppError {
	return apperrors.NotFound("review", id)
}

func ChannelNotFound(id string) *apperrors.AppError {
	return apperrors.NotFound("channel", id)
}

// StatsNotRefreshed reports that no stats refresh has completed yet.
func StatsNotRefreshed() *apperrors.AppError {
	return &apperrors.AppError{
		Code:    "NOT_FOUND",
		Message: "channel stats have not been computed yet",
		Status:  http.StatusNotFound,
		Err:     apperrors.ErrNotFound,
	}
}
