package ports

import (
	"context"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
)

// SongCatalog stores the songs served by the reference feed service.
type SongCatalog interface {
	ListByMood(ctx context.Context, mood domain.Mood) ([]domain.Track, error)
	Save(ctx context.Context, t domain.Track) (domain.Track, error)
}
