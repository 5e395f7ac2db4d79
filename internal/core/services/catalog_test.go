package services

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
)

type mockCatalog struct {
	tracks  []domain.Track
	listErr error
	saveErr error
	saved   []domain.Track
}

func (m *mockCatalog) ListByMood(_ context.Context, mood domain.Mood) ([]domain.Track, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Track
	for _, t := range m.tracks {
		if t.Mood == mood {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockCatalog) Save(_ context.Context, t domain.Track) (domain.Track, error) {
	if m.saveErr != nil {
		return domain.Track{}, m.saveErr
	}
	t.ID = "generated"
	m.saved = append(m.saved, t)
	return t, nil
}

// TestCatalogService_SongsForMood verifies SongsForMood behavior.
func TestCatalogService_SongsForMood(t *testing.T) {
	repo := &mockCatalog{tracks: []domain.Track{
		{ID: "1", Title: "Sunny", AudioURL: "u1", Mood: domain.MoodHappy},
		{ID: "2", Title: "Rain", AudioURL: "u2", Mood: domain.MoodSad},
		{ID: "3", Title: "Shine", AudioURL: "u3", Mood: domain.MoodHappy},
	}}
	svc := NewCatalogService(repo)

	tests := []struct {
		name    string
		label   string
		wantIDs []string
		wantErr error
	}{
		{name: "Happy Path", label: "happy", wantIDs: []string{"1", "3"}},
		{name: "Case insensitive", label: "SAD", wantIDs: []string{"2"}},
		{name: "No songs", label: "angry", wantIDs: []string{}},
		{name: "Unknown mood", label: "bored", wantErr: domain.ErrUnknownMood},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.SongsForMood(context.Background(), tc.label)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got == nil {
				t.Fatal("expected empty slice, got nil")
			}
			if len(got) != len(tc.wantIDs) {
				t.Fatalf("got %d tracks, want %d", len(got), len(tc.wantIDs))
			}
			for i, id := range tc.wantIDs {
				if got[i].ID != id {
					t.Errorf("track %d id = %q, want %q", i, got[i].ID, id)
				}
			}
		})
	}
}

// TestCatalogService_AddSong verifies AddSong behavior.
func TestCatalogService_AddSong(t *testing.T) {
	tests := []struct {
		name      string
		track     domain.Track
		saveErr   error
		wantErr   bool
		wantSaved bool
	}{
		{
			name:      "Happy Path",
			track:     domain.Track{Title: "Sunny", Artist: "A", AudioURL: "http://x/1.mp3", Mood: "Happy"},
			wantSaved: true,
		},
		{
			name:    "Missing url",
			track:   domain.Track{Title: "Sunny", Mood: domain.MoodHappy},
			wantErr: true,
		},
		{
			name:    "Repository save error",
			track:   domain.Track{Title: "Sunny", AudioURL: "http://x/1.mp3", Mood: domain.MoodHappy},
			saveErr: errors.New("disk full"),
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockCatalog{saveErr: tc.saveErr}
			svc := NewCatalogService(repo)

			got, err := svc.AddSong(context.Background(), tc.track)
			if (err != nil) != tc.wantErr {
				t.Fatalf("AddSong() error = %v, wantErr %v", err, tc.wantErr)
			}
			if saved := len(repo.saved) == 1; saved != tc.wantSaved {
				t.Fatalf("saved = %v, want %v", saved, tc.wantSaved)
			}
			if tc.wantSaved && (got.ID == "" || got.Mood != domain.MoodHappy) {
				t.Errorf("AddSong() = %+v", got)
			}
		})
	}
}
