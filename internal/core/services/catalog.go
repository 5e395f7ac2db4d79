package services

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
	"github.com/ewilliams-labs/moodplayer/internal/core/ports"
)

// CatalogService serves the song feed from a persistent catalog.
type CatalogService struct {
	repo ports.SongCatalog
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(repo ports.SongCatalog) *CatalogService {
	return &CatalogService{repo: repo}
}

// SongsForMood returns the catalog entries tagged with the given mood label.
// An unknown label is an error; a known mood without songs is an empty list.
func (s *CatalogService) SongsForMood(ctx context.Context, label string) ([]domain.Track, error) {
	mood, err := domain.ParseMood(label)
	if err != nil {
		return nil, err
	}

	tracks, err := s.repo.ListByMood(ctx, mood)
	if err != nil {
		return nil, errors.Wrap(err, "service: failed to list songs")
	}
	if tracks == nil {
		tracks = []domain.Track{}
	}
	return tracks, nil
}

// AddSong validates and stores a track, returning it with its assigned ID.
func (s *CatalogService) AddSong(ctx context.Context, track domain.Track) (domain.Track, error) {
	if mood, err := domain.ParseMood(string(track.Mood)); err == nil {
		track.Mood = mood
	}
	if err := track.Validate(); err != nil {
		return domain.Track{}, errors.Wrap(err, "service: domain rule violation")
	}

	saved, err := s.repo.Save(ctx, track)
	if err != nil {
		return domain.Track{}, errors.Wrap(err, "service: failed to save song")
	}
	return saved, nil
}

// FetchSongs lets the catalog stand in for a remote feed.
func (s *CatalogService) FetchSongs(ctx context.Context, mood domain.Mood) ([]domain.Track, error) {
	return s.SongsForMood(ctx, string(mood))
}

var _ ports.SongFeed = (*CatalogService)(nil)
