package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
	apperrors "github.com/shinshin4n4n/tube-review-sub001/pkg/errors"
)

func TestEnsure_StoredChannel(t *testing.T) {
	channels := &mockChannelRepository{}
	lookup := &mockChannelLookup{}
	channels.On("GetByID", mock.Anything, testChannelID).Return(&domain.Channel{ID: testChannelID, Title: "stored"}, nil)

	ch, err := NewChannelResolver(channels, lookup, newTestLogger()).Ensure(context.Background(), testChannelID)
	require.NoError(t, err)
	assert.Equal(t, "stored", ch.Title)
	lookup.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything)
}

func TestEnsure_ImportsFromCatalog(t *testing.T) {
	channels := &mockChannelRepository{}
	lookup := &mockChannelLookup{}
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	channels.On("GetByID", mock.Anything, testChannelID).Return(nil, domain.ChannelNotFound(testChannelID))
	lookup.On("Lookup", mock.Anything, testChannelID).Return(&domain.Channel{ID: testChannelID, Title: "from catalog"}, nil).Once()
	channels.On("Upsert", mock.Anything, mock.MatchedBy(func(ch *domain.Channel) bool {
		return ch.ID == testChannelID && ch.CreatedAt.Equal(now)
	})).Return(nil).Once()

	r := NewChannelResolver(channels, lookup, newTestLogger())
	r.now = func() time.Time { return now }
	ch, err := r.Ensure(context.Background(), testChannelID)
	require.NoError(t, err)
	assert.Equal(t, "from catalog", ch.Title)

	channels.AssertExpectations(t)
	lookup.AssertExpectations(t)
}

func TestEnsure_ConcurrentImportsShareOneLookup(t *testing.T) {
	channels := &mockChannelRepository{}
	lookup := &mockChannelLookup{}
	release := make(chan struct{})

	channels.On("GetByID", mock.Anything, testChannelID).Return(nil, domain.ChannelNotFound(testChannelID))
	lookup.On("Lookup", mock.Anything, testChannelID).
		Run(func(mock.Arguments) { <-release }).
		Return(&domain.Channel{ID: testChannelID}, nil)
	channels.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	r := NewChannelResolver(channels, lookup, newTestLogger())
	const n = 8
	var started, wg sync.WaitGroup
	started.Add(n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			_, err := r.Ensure(context.Background(), testChannelID)
			assert.NoError(t, err)
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	calls := 0
	for _, c := range lookup.Calls {
		if c.Method == "Lookup" {
			calls++
		}
	}
	assert.Less(t, calls, n)
}

func TestEnsure_Failures(t *testing.T) {
	tests := []struct {
		name      string
		catalog   bool
		lookupErr error
		want      error
	}{
		{"catalog disabled", false, nil, apperrors.ErrNotFound},
		{"catalog does not know it", true, domain.ChannelNotFound(testChannelID), apperrors.ErrNotFound},
		{"catalog unavailable", true, apperrors.ServiceUnavailable("youtube unavailable", errors.New("quota")), apperrors.ErrServiceUnavail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			channels := &mockChannelRepository{}
			channels.On("GetByID", mock.Anything, testChannelID).Return(nil, domain.ChannelNotFound(testChannelID))

			var lookup ChannelLookup
			if tt.catalog {
				m := &mockChannelLookup{}
				m.On("Lookup", mock.Anything, testChannelID).Return(nil, tt.lookupErr)
				lookup = m
			}
			_, err := NewChannelResolver(channels, lookup, newTestLogger()).Ensure(context.Background(), testChannelID)
			assert.ErrorIs(t, err, tt.want)
			channels.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
		})
	}
}

func TestEnsure_StoreError(t *testing.T) {
	channels := &mockChannelRepository{}
	channels.On("GetByID", mock.Anything, testChannelID).Return(nil, errors.New("pool closed"))

	_, err := NewChannelResolver(channels, nil, newTestLogger()).Ensure(context.Background(), testChannelID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get channel")
}
