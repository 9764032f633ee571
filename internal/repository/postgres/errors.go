package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
	apperrors "github.com/shinshin4n4n/tube-review-sub001/pkg/errors"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"

	reviewUniqueIndex = "reviews_user_channel_active_key"
)

// translateReviewWrite maps constraint violations raised while writing a
// review onto the application error taxonomy. Anything else is wrapped
// with op and left for the caller to treat as internal.
func translateReviewWrite(op string, err error, channelID string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		if pgErr.ConstraintName == reviewUniqueIndex {
			return domain.DuplicateReview()
		}
		return apperrors.Conflict("review already exists")
	case codeForeignKeyViolation:
		return domain.ChannelNotFound(channelID)
	case codeCheckViolation:
		return apperrors.InvalidInput(fmt.Sprintf("review violates %s", pgErr.ConstraintName))
	}
	return fmt.Errorf("%s: %w", op, err)
}
