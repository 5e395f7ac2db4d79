package main

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
	"github.com/ewilliams-labs/moodplayer/internal/core/services"
)

// seedFile is the on-disk seed format. JSON files parse too.
type seedFile struct {
	Songs []seedSong `yaml:"songs"`
}

type seedSong struct {
	ID     string `yaml:"_id"`
	Title  string `yaml:"title"`
	Artist string `yaml:"artist"`
	Audio  string `yaml:"audio"`
	Mood   string `yaml:"mood"`
}

type counter interface {
	Count(ctx context.Context) (int, error)
}

// seedCatalog loads songs from path into an empty catalog. A catalog that
// already holds songs is left alone.
func seedCatalog(ctx context.Context, repo counter, svc *services.CatalogService, path string) (int, error) {
	n, err := repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	songs, err := readSeed(path)
	if err != nil {
		return 0, err
	}
	for i, s := range songs {
		_, err := svc.AddSong(ctx, domain.Track{
			ID:       s.ID,
			Title:    s.Title,
			Artist:   s.Artist,
			AudioURL: s.Audio,
			Mood:     domain.Mood(s.Mood),
		})
		if err != nil {
			return i, errors.Wrapf(err, "seed song %d (%q)", i, s.Title)
		}
	}
	return len(songs), nil
}

func readSeed(path string) ([]seedSong, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read seed file")
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse seed file")
	}
	return f.Songs, nil
}
