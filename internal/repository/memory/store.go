// Package memory is an in-process store with the same uniqueness and
// atomicity guarantees as the PostgreSQL repositories. It backs local
// development and service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
	"github.com/shinshin4n4n/tube-review-sub001/internal/repository"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/pagination"
)

type liveKey struct{ userID, channelID string }

type voteKey struct{ reviewID, voterID string }

// Store holds every table behind one lock. Each repository method runs
// entirely under it, which gives the same atomic units as a transaction.
type Store struct {
	mu        sync.RWMutex
	reviews   map[string]*domain.Review
	live      map[liveKey]string
	votes     map[voteKey]struct{}
	channels  map[string]*domain.Channel
	profiles  map[string]domain.Profile
	stats     map[string]domain.ChannelStats
	refreshes []domain.StatsRefresh
}

func NewStore() *Store {
	return &Store{
		reviews:  make(map[string]*domain.Review),
		live:     make(map[liveKey]string),
		votes:    make(map[voteKey]struct{}),
		channels: make(map[string]*domain.Channel),
		profiles: make(map[string]domain.Profile),
		stats:    make(map[string]domain.ChannelStats),
	}
}

func (s *Store) Reviews() *ReviewStore   { return &ReviewStore{s} }
func (s *Store) Votes() *VoteStore       { return &VoteStore{s} }
func (s *Store) Channels() *ChannelStore { return &ChannelStore{s} }
func (s *Store) Stats() *StatsStore      { return &StatsStore{s} }
func (s *Store) Profiles() *ProfileStore { return &ProfileStore{s} }

// PutProfile records display fields for an author.
func (s *Store) PutProfile(id, name string, avatarURL *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[id] = domain.Profile{ID: id, DisplayName: name, AvatarURL: avatarURL}
}

// ProfileStore implements repository.ProfileRepository.
type ProfileStore struct{ s *Store }

func (r *ProfileStore) Upsert(ctx context.Context, p *domain.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if old, ok := r.s.profiles[p.ID]; ok {
		p.CreatedAt = old.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	r.s.profiles[p.ID] = *p
	return nil
}

var (
	_ repository.ReviewRepository       = (*ReviewStore)(nil)
	_ repository.HelpfulVoteRepository  = (*VoteStore)(nil)
	_ repository.ChannelRepository      = (*ChannelStore)(nil)
	_ repository.ChannelStatsRepository = (*StatsStore)(nil)
	_ repository.ProfileRepository      = (*ProfileStore)(nil)
)

// ReviewStore implements repository.ReviewRepository.
type ReviewStore struct{ s *Store }

func (r *ReviewStore) Create(ctx context.Context, review *domain.Review) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.channels[review.ChannelID]; !ok {
		return domain.ChannelNotFound(review.ChannelID)
	}
	key := liveKey{review.UserID, review.ChannelID}
	if _, ok := s.live[key]; ok {
		return domain.DuplicateReview()
	}
	cp := *review
	s.reviews[review.ID] = &cp
	s.live[key] = review.ID
	return nil
}

func (r *ReviewStore) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rv, ok := r.s.reviews[id]
	if !ok {
		return nil, domain.ReviewNotFound(id)
	}
	cp := *rv
	return &cp, nil
}

func (r *ReviewStore) Update(ctx context.Context, review *domain.Review) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.reviews[review.ID]
	if !ok || cur.IsDeleted() || cur.UserID != review.UserID {
		return domain.ReviewNotFound(review.ID)
	}
	cur.Rating = review.Rating
	cur.Title = review.Title
	cur.Content = review.Content
	cur.IsSpoiler = review.IsSpoiler
	cur.UpdatedAt = review.UpdatedAt

	review.HelpfulCount = cur.HelpfulCount
	review.CreatedAt = cur.CreatedAt
	return nil
}

func (r *ReviewStore) SoftDelete(ctx context.Context, id, userID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.reviews[id]
	if !ok || cur.IsDeleted() || cur.UserID != userID {
		return domain.ReviewNotFound(id)
	}
	cur.DeletedAt = &at
	cur.UpdatedAt = at
	delete(r.s.live, liveKey{cur.UserID, cur.ChannelID})
	return nil
}

// liveNewestFirst must be called with the lock held.
func (s *Store) liveNewestFirst(keep func(*domain.Review) bool) []*domain.Review {
	var out []*domain.Review
	for _, rv := range s.reviews {
		if !rv.IsDeleted() && keep(rv) {
			out = append(out, rv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func pageOf[T any](all []T, p pagination.Params) []T {
	if p.PastEnd(len(all)) {
		return nil
	}
	start := p.Offset()
	end := min(start+p.PerPage, len(all))
	return all[start:end]
}

func (r *ReviewStore) ListByChannelID(ctx context.Context, channelID string, page pagination.Params) ([]domain.Review, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.s.liveNewestFirst(func(rv *domain.Review) bool { return rv.ChannelID == channelID })
	out := []domain.Review{}
	for _, rv := range pageOf(all, page) {
		out = append(out, *rv)
	}
	return out, len(all), nil
}

func (r *ReviewStore) ListRecent(ctx context.Context, page pagination.Params) ([]domain.FeedItem, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.s.liveNewestFirst(func(*domain.Review) bool { return true })
	out := []domain.FeedItem{}
	for _, rv := range pageOf(all, page) {
		item := domain.FeedItem{Review: *rv}
		if p, ok := r.s.profiles[rv.UserID]; ok {
			item.AuthorName = p.DisplayName
			item.AuthorAvatarURL = p.AvatarURL
		}
		if c, ok := r.s.channels[rv.ChannelID]; ok {
			item.ChannelTitle = c.Title
			item.ChannelThumbnailURL = c.ThumbnailURL
		}
		out = append(out, item)
	}
	return out, len(all), nil
}

func (r *ReviewStore) GetSummary(ctx context.Context, channelID string) (*domain.ReviewSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var sum, n int
	for _, rv := range r.s.reviews {
		if !rv.IsDeleted() && rv.ChannelID == channelID {
			sum += rv.Rating
			n++
		}
	}
	summary := &domain.ReviewSummary{TotalCount: n}
	if n > 0 {
		summary.AverageRating = domain.RoundRating(float64(sum) / float64(n))
	}
	return summary, nil
}

// VoteStore implements repository.HelpfulVoteRepository.
type VoteStore struct{ s *Store }

func (v *VoteStore) Toggle(ctx context.Context, reviewID, voterID string) (*domain.HelpfulToggle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	rv, ok := v.s.reviews[reviewID]
	if !ok || rv.IsDeleted() {
		return nil, domain.ReviewNotFound(reviewID)
	}
	key := voteKey{reviewID, voterID}
	_, had := v.s.votes[key]
	if had {
		delete(v.s.votes, key)
		rv.HelpfulCount--
	} else {
		v.s.votes[key] = struct{}{}
		rv.HelpfulCount++
	}
	return &domain.HelpfulToggle{ReviewID: reviewID, IsHelpful: !had, HelpfulCount: rv.HelpfulCount}, nil
}

func (v *VoteStore) HasVoted(ctx context.Context, reviewID, voterID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	_, ok := v.s.votes[voteKey{reviewID, voterID}]
	return ok, nil
}

// ChannelStore implements repository.ChannelRepository.
type ChannelStore struct{ s *Store }

func (c *ChannelStore) GetByID(ctx context.Context, id string) (*domain.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	ch, ok := c.s.channels[id]
	if !ok {
		return nil, domain.ChannelNotFound(id)
	}
	cp := *ch
	return &cp, nil
}

func (c *ChannelStore) Upsert(ctx context.Context, ch *domain.Channel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if cur, ok := c.s.channels[ch.ID]; ok {
		ch.CreatedAt = cur.CreatedAt
	}
	cp := *ch
	c.s.channels[ch.ID] = &cp
	return nil
}

// StatsStore implements repository.ChannelStatsRepository.
type StatsStore struct{ s *Store }

// Refresh computes the new table under the write lock and swaps the map,
// so readers see the whole old table or the whole new one.
func (st *StatsStore) Refresh(ctx context.Context, asOf time.Time, window time.Duration) (*domain.StatsRefresh, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := st.s
	s.mu.Lock()
	defer s.mu.Unlock()

	since := asOf.Add(-window)
	type acc struct{ count, sum, recent int }
	byChannel := map[string]*acc{}
	for _, rv := range s.reviews {
		if rv.IsDeleted() {
			continue
		}
		a := byChannel[rv.ChannelID]
		if a == nil {
			a = &acc{}
			byChannel[rv.ChannelID] = a
		}
		a.count++
		a.sum += rv.Rating
		if !rv.CreatedAt.Before(since) {
			a.recent++
		}
	}

	next := make(map[string]domain.ChannelStats, len(byChannel))
	for id, a := range byChannel {
		next[id] = domain.ChannelStats{
			ChannelID:         id,
			ReviewCount:       a.count,
			AverageRating:     domain.RoundRating(float64(a.sum) / float64(a.count)),
			RecentReviewCount: a.recent,
			RefreshedAt:       asOf,
		}
	}
	s.stats = next

	ref := domain.StatsRefresh{RefreshedAt: asOf, ChannelCount: len(next), Window: window}
	s.refreshes = append(s.refreshes, ref)
	return &ref, nil
}

// withChannel must be called with the lock held.
func (s *Store) withChannel(cs domain.ChannelStats) domain.ChannelStats {
	if ch, ok := s.channels[cs.ChannelID]; ok {
		cs.ChannelTitle = ch.Title
		cs.ThumbnailURL = ch.ThumbnailURL
	}
	return cs
}

func (st *StatsStore) ListRanking(ctx context.Context, limit int) ([]domain.ChannelStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st.s.mu.RLock()
	defer st.s.mu.RUnlock()

	out := make([]domain.ChannelStats, 0, len(st.s.stats))
	for _, cs := range st.s.stats {
		if cs.ReviewCount > 0 {
			out = append(out, st.s.withChannel(cs))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RanksAbove(out[j]) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (st *StatsStore) GetByChannelID(ctx context.Context, channelID string) (*domain.ChannelStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st.s.mu.RLock()
	defer st.s.mu.RUnlock()
	cs, ok := st.s.stats[channelID]
	if !ok {
		return nil, domain.ChannelNotFound(channelID)
	}
	cs = st.s.withChannel(cs)
	return &cs, nil
}

func (st *StatsStore) LastRefresh(ctx context.Context) (*domain.StatsRefresh, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st.s.mu.RLock()
	defer st.s.mu.RUnlock()
	if len(st.s.refreshes) == 0 {
		return nil, domain.StatsNotRefreshed()
	}
	ref := st.s.refreshes[len(st.s.refreshes)-1]
	return &ref, nil
}
