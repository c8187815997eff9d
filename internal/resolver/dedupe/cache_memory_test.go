package dedupe

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MemoryCacheSuite struct {
	suite.Suite
	now   time.Time
	cache *InMemoryCache
}

func TestMemoryCacheSuite(t *testing.T) {
	suite.Run(t, new(MemoryCacheSuite))
}

func (s *MemoryCacheSuite) SetupTest() {
	s.now = time.Date(2026, 3, 14, 7, 0, 0, 0, time.UTC)
	s.cache = NewInMemoryCache(WithClock(func() time.Time { return s.now }))
}

func (s *MemoryCacheSuite) TestSeenAndRecord() {
	ctx := context.Background()
	window := 90 * time.Second

	seen, err := s.cache.SeenAndRecord(ctx, "bus-07:p-1:entry", window)
	s.NoError(err)
	s.False(seen)

	s.Run("inside the window", func() {
		s.now = s.now.Add(89 * time.Second)
		seen, err := s.cache.SeenAndRecord(ctx, "bus-07:p-1:entry", window)
		s.NoError(err)
		s.True(seen)
	})

	s.Run("expired entries record fresh", func() {
		s.now = s.now.Add(2 * time.Minute)
		seen, err := s.cache.SeenAndRecord(ctx, "bus-07:p-1:entry", window)
		s.NoError(err)
		s.False(seen)
	})

	s.Run("distinct keys do not collide", func() {
		seen, err := s.cache.SeenAndRecord(ctx, "bus-07:p-1:exit", window)
		s.NoError(err)
		s.False(seen)
	})
}

func (s *MemoryCacheSuite) TestForget() {
	ctx := context.Background()

	_, err := s.cache.SeenAndRecord(ctx, "k", time.Minute)
	s.Require().NoError(err)
	s.NoError(s.cache.Forget(ctx, "k"))

	seen, err := s.cache.SeenAndRecord(ctx, "k", time.Minute)
	s.NoError(err)
	s.False(seen)
}

func (s *MemoryCacheSuite) TestBoundHolds() {
	ctx := context.Background()
	cache := NewInMemoryCache(
		WithClock(func() time.Time { return s.now }),
		WithMaxEntries(10),
	)

	for i := 0; i < 50; i++ {
		_, err := cache.SeenAndRecord(ctx, fmt.Sprintf("key-%d", i), time.Hour)
		s.Require().NoError(err)
	}
	s.LessOrEqual(len(cache.entries), 11)
}
