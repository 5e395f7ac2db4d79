package ports

import (
	"context"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
)

// SongFeed fetches the tracks recommended for a mood. Implementations return a
// *domain.FeedError (matching domain.ErrFeedFailure) on any failure and must
// bound the call with a timeout.
type SongFeed interface {
	FetchSongs(ctx context.Context, mood domain.Mood) ([]domain.Track, error)
}
