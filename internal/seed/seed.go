// Package seed populates a store with demo channels, authors, reviews and
// helpful votes.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
	"github.com/shinshin4n4n/tube-review-sub001/internal/repository"
)

// Options controls how much data is generated. Seed makes runs repeatable.
type Options struct {
	Users          int
	ReviewsPerUser int
	VotesPerReview int
	Spread         time.Duration
	Seed           uint64
}

func DefaultOptions() Options {
	return Options{
		Users:          20,
		ReviewsPerUser: 4,
		VotesPerReview: 3,
		Spread:         30 * 24 * time.Hour,
		Seed:           1,
	}
}

// Result counts what was written.
type Result struct {
	Profiles   int
	Channels   int
	Reviews    int
	Duplicates int
	Votes      int
}

// Seeder writes generated data through the repositories.
type Seeder struct {
	profiles repository.ProfileRepository
	channels repository.ChannelRepository
	reviews  repository.ReviewRepository
	votes    repository.HelpfulVoteRepository
	logger   *slog.Logger
	now      func() time.Time
}

func NewSeeder(
	profiles repository.ProfileRepository,
	channels repository.ChannelRepository,
	reviews repository.ReviewRepository,
	votes repository.HelpfulVoteRepository,
	logger *slog.Logger,
) *Seeder {
	return &Seeder{
		profiles: profiles,
		channels: channels,
		reviews:  reviews,
		votes:    votes,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type channelDef struct {
	id    string
	title string
}

var channels = []channelDef{
	{"UC_x5XG1OV2P6uZZ5FSM9Ttw", "Google for Developers"},
	{"UCsBjURrPoezykLs9EqgamOA", "Fireship"},
	{"UCW5YeuERMmlnqo4oq8vwUpg", "The Net Ninja"},
	{"UC8butISFwT-Wl7EV0hUK0BQ", "freeCodeCamp.org"},
	{"UCvjgXvBlbQiydffZU7m1_aw", "The Coding Train"},
	{"UCFbNIlppjAuEX4znoulh0Cw", "Web Dev Simplified"},
	{"UC29ju8bIPH5as8OGnQzwJyA", "Traversy Media"},
	{"UCYO_jab_esuFRV4b17AJtAw", "3Blue1Brown"},
}

var displayNames = []string{
	"Aiko", "Ben", "Chidi", "Dana", "Emil", "Fatima", "Goro", "Hana", "Ivan", "Jules",
	"Kenta", "Lena", "Mateo", "Nora", "Omar", "Priya", "Quinn", "Rin", "Sven", "Tara",
}

var sentences = []string{
	"The explanations are clear and the pacing leaves room to follow along.",
	"Production quality is high and the examples feel close to real projects.",
	"Some videos run long, but the depth usually justifies the time spent.",
	"I keep coming back to the older uploads as a reference for fundamentals.",
	"The community in the comments is helpful and the creator replies often.",
	"Occasionally the topics jump around without much connection between them.",
	"Great for beginners, although experienced viewers may want more detail.",
	"Every episode ends with a short recap that makes the ideas stick.",
}

// Run writes profiles and channels, then reviews and votes. Existing rows
// are upserted; a review that already exists for a user and channel is
// counted as a duplicate and skipped.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Users < 1 || opts.ReviewsPerUser < 0 || opts.VotesPerReview < 0 || opts.Spread <= 0 {
		return nil, fmt.Errorf("invalid seed options: %+v", opts)
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	now := s.now()
	res := &Result{}

	for _, c := range channels {
		ch := &domain.Channel{ID: c.id, Title: c.title, CreatedAt: now, UpdatedAt: now}
		if err := s.channels.Upsert(ctx, ch); err != nil {
			return res, err
		}
		res.Channels++
	}

	users := make([]string, opts.Users)
	for i := range users {
		users[i] = fmt.Sprintf("seed-user-%03d", i+1)
		p := &domain.Profile{ID: users[i], DisplayName: displayNames[i%len(displayNames)]}
		if err := s.profiles.Upsert(ctx, p); err != nil {
			return res, err
		}
		res.Profiles++
	}

	perUser := min(opts.ReviewsPerUser, len(channels))
	var created []*domain.Review
	for _, userID := range users {
		for _, ci := range rng.Perm(len(channels))[:perUser] {
			at := now.Add(-time.Duration(rng.Int64N(int64(opts.Spread))))
			r := &domain.Review{
				ID:        uuid.New().String(),
				UserID:    userID,
				ChannelID: channels[ci].id,
				CreatedAt: at,
			}
			r.Apply(&domain.ReviewPayload{
				ChannelID: channels[ci].id,
				Rating:    1 + rng.IntN(5),
				Content:   content(rng),
				IsSpoiler: rng.IntN(10) == 0,
			}, at)

			if err := s.reviews.Create(ctx, r); err != nil {
				if errors.Is(err, domain.ErrDuplicateReview) {
					res.Duplicates++
					continue
				}
				return res, err
			}
			created = append(created, r)
			res.Reviews++
		}
	}

	for _, r := range created {
		for _, ui := range rng.Perm(len(users))[:min(opts.VotesPerReview, len(users))] {
			if users[ui] == r.UserID {
				continue
			}
			t, err := s.votes.Toggle(ctx, r.ID, users[ui])
			if err != nil {
				return res, err
			}
			if !t.IsHelpful {
				// Already voted on a previous run; put it back.
				if _, err := s.votes.Toggle(ctx, r.ID, users[ui]); err != nil {
					return res, err
				}
			}
			res.Votes++
		}
	}

	s.logger.InfoContext(ctx, "seed complete",
		slog.Int("profiles", res.Profiles),
		slog.Int("channels", res.Channels),
		slog.Int("reviews", res.Reviews),
		slog.Int("duplicates", res.Duplicates),
		slog.Int("votes", res.Votes),
	)
	return res, nil
}

// content joins sentences until the text passes the minimum review length.
func content(rng *rand.Rand) string {
	var b strings.Builder
	for b.Len() < 120 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(sentences[rng.IntN(len(sentences))])
	}
	return b.String()
}
