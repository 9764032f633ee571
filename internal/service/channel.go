package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
	"github.com/shinshin4n4n/tube-review-sub001/internal/repository"
	apperrors "github.com/shinshin4n4n/tube-review-sub001/pkg/errors"
)

// ChannelLookup fetches channel metadata from the video catalog.
type ChannelLookup interface {
	Lookup(ctx context.Context, channelID string) (*domain.Channel, error)
}

// ChannelResolver answers "does this channel exist" for the write path,
// consulting the catalog for channels the store has not seen yet.
type ChannelResolver struct {
	channels repository.ChannelRepository
	catalog  ChannelLookup
	logger   *slog.Logger
	group    singleflight.Group
	now      func() time.Time
}

// NewChannelResolver creates a resolver. A nil catalog limits existence
// to channels already stored.
func NewChannelResolver(channels repository.ChannelRepository, catalog ChannelLookup, logger *slog.Logger) *ChannelResolver {
	return &ChannelResolver{
		channels: channels,
		catalog:  catalog,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Ensure returns the stored channel, importing it from the catalog first
// when needed. Concurrent calls for one id share a single catalog request.
func (r *ChannelResolver) Ensure(ctx context.Context, channelID string) (*domain.Channel, error) {
	ch, err := r.channels.GetByID(ctx, channelID)
	if err == nil {
		return ch, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	if r.catalog == nil {
		return nil, domain.ChannelNotFound(channelID)
	}

	v, err, _ := r.group.Do(channelID, func() (any, error) {
		return r.importChannel(ctx, channelID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Channel), nil
}

func (r *ChannelResolver) importChannel(ctx context.Context, channelID string) (*domain.Channel, error) {
	ch, err := r.catalog.Lookup(ctx, channelID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			r.logger.WarnContext(ctx, "channel catalog lookup failed",
				slog.String("channel_id", channelID),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}

	now := r.now()
	ch.CreatedAt = now
	ch.UpdatedAt = now
	if err := r.channels.Upsert(ctx, ch); err != nil {
		return nil, fmt.Errorf("upsert channel: %w", err)
	}

	r.logger.InfoContext(ctx, "channel imported from catalog",
		slog.String("channel_id", ch.ID),
		slog.String("title", ch.Title),
	)
	return ch, nil
}
