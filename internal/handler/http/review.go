package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
	"github.com/shinshin4n4n/tube-review-sub001/internal/service"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/httputil"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/middleware"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/pagination"
)

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Response DTOs ---

type channelReviewsResponse struct {
	httputil.PaginatedResponse[domain.Review]
	Summary *domain.ReviewSummary `json:"summary"`
}

// --- Handlers ---

// ValidateReview handles POST /api/v1/reviews/validate
// @Summary Validate a review draft
// @Description Checks a review payload without storing it and returns the normalized form
// @Tags reviews
// @Accept json
// @Produce json
// @Param request body service.ReviewInput true "Review draft"
// @Success 200 {object} domain.ReviewPayload
// @Failure 400 {object} httputil.Response
// @Router /api/v1/reviews/validate [post]
func (h *ReviewHandler) ValidateReview(w http.ResponseWriter, r *http.Request) {
	var in service.ReviewInput
	if err := decodeJSON(w, r, &in); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	payload, err := h.service.Validate(&in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, payload)
}

// SubmitReview handles POST /api/v1/channels/{channelId}/reviews
// @Summary Review a channel
// @Description Creates the caller's review of a channel. One live review per user and channel.
// @Tags reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param channelId path string true "YouTube channel id"
// @Param request body service.ReviewInput true "Review"
// @Success 201 {object} domain.Review
// @Failure 400 {object} httputil.Response
// @Failure 404 {object} httputil.Response
// @Failure 409 {object} httputil.Response
// @Router /api/v1/channels/{channelId}/reviews [post]
func (h *ReviewHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var in service.ReviewInput
	if err := decodeJSON(w, r, &in); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	in.ChannelID = chi.URLParam(r, "channelId")

	payload, err := h.service.Validate(&in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	review, err := h.service.Submit(r.Context(), middleware.UserIDFromContext(r.Context()), payload)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, review)
}

// ListChannelReviews handles GET /api/v1/channels/{channelId}/reviews
// @Summary List a channel's reviews
// @Tags reviews
// @Produce json
// @Param channelId path string true "YouTube channel id"
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page (max 50)" default(20)
// @Success 200 {object} channelReviewsResponse
// @Failure 400 {object} httputil.Response
// @Router /api/v1/channels/{channelId}/reviews [get]
func (h *ReviewHandler) ListChannelReviews(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.FromRequest(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	result, err := h.service.ListChannelReviews(r.Context(), chi.URLParam(r, "channelId"), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, channelReviewsResponse{
		PaginatedResponse: httputil.NewPaginatedResponse(result.Reviews, result.TotalCount, result.Page, result.PerPage),
		Summary:           result.Summary,
	})
}

// GetReview handles GET /api/v1/reviews/{reviewId}
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetReview(r.Context(), chi.URLParam(r, "reviewId"), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// UpdateReview handles PUT /api/v1/reviews/{reviewId}
// @Summary Edit own review
// @Tags reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param reviewId path string true "Review UUID"
// @Param request body service.ReviewInput true "Replacement fields"
// @Success 200 {object} domain.Review
// @Failure 400 {object} httputil.Response
// @Failure 403 {object} httputil.Response
// @Router /api/v1/reviews/{reviewId} [put]
func (h *ReviewHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	var in service.ReviewInput
	if err := decodeJSON(w, r, &in); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	review, err := h.service.Update(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "reviewId"), &in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, review)
}

// DeleteReview handles DELETE /api/v1/reviews/{reviewId}
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "reviewId")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleHelpful handles POST /api/v1/reviews/{reviewId}/helpful
// @Summary Toggle the caller's helpful mark
// @Description Returns the stored state after the toggle; clients replace any optimistic state with it.
// @Tags reviews
// @Produce json
// @Security BearerAuth
// @Param reviewId path string true "Review UUID"
// @Success 200 {object} domain.HelpfulToggle
// @Failure 404 {object} httputil.Response
// @Router /api/v1/reviews/{reviewId}/helpful [post]
func (h *ReviewHandler) ToggleHelpful(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ToggleHelpful(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "reviewId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, res)
}
