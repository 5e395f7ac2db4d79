package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ewilliams-labs/moodplayer/internal/adapters/sqlite"
	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
	"github.com/ewilliams-labs/moodplayer/internal/core/services"
)

// TestSeedCatalog verifies YAML and JSON seeds load once into an empty catalog.
func TestSeedCatalog(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    int
		wantErr bool
	}{
		{
			name: "yaml seed",
			file: "seed.yaml",
			content: `songs:
  - title: Sunny
    artist: A
    audio: http://cdn/1.mp3
    mood: happy
  - title: Shine
    audio: http://cdn/2.mp3
    mood: Happy
`,
			want: 2,
		},
		{
			name:    "json seed",
			file:    "seed.json",
			content: `{"songs":[{"title":"Rain","artist":"B","audio":"http://cdn/3.mp3","mood":"sad"}]}`,
			want:    1,
		},
		{
			name:    "invalid song",
			file:    "bad.yaml",
			content: "songs:\n  - title: Nothing\n    mood: happy\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			repo, err := sqlite.NewAdapter(":memory:")
			if err != nil {
				t.Fatal(err)
			}
			defer repo.Close()
			svc := services.NewCatalogService(repo)

			n, err := seedCatalog(context.Background(), repo, svc, path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("seedCatalog() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if n != tt.want {
				t.Errorf("seeded %d songs, want %d", n, tt.want)
			}

			again, err := seedCatalog(context.Background(), repo, svc, path)
			if err != nil || again != 0 {
				t.Errorf("second seed = %d, %v; want 0, nil", again, err)
			}
			if total, _ := repo.Count(context.Background()); total != tt.want {
				t.Errorf("catalog holds %d songs, want %d", total, tt.want)
			}
		})
	}
}

// TestSeedCatalog_Order verifies seeded songs are served in file order.
func TestSeedCatalog_Order(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := "songs:\n  - {title: A, audio: http://cdn/a.mp3, mood: neutral}\n  - {title: B, audio: http://cdn/b.mp3, mood: neutral}\n  - {title: C, audio: http://cdn/c.mp3, mood: neutral}\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	repo, err := sqlite.NewAdapter(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()
	svc := services.NewCatalogService(repo)

	if _, err := seedCatalog(context.Background(), repo, svc, path); err != nil {
		t.Fatal(err)
	}
	got, err := svc.SongsForMood(context.Background(), string(domain.MoodNeutral))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].Title != "A" || got[1].Title != "B" || got[2].Title != "C" {
		t.Errorf("unexpected order %+v", got)
	}
}
