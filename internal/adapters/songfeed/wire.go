package songfeed

import "github.com/ewilliams-labs/moodplayer/internal/core/domain"

type songsResponse struct {
	Songs []wireSong `json:"songs"`
}

type wireSong struct {
	ID     string `json:"_id,omitempty"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Audio  string `json:"audio"`
	Mood   string `json:"mood"`
}

// mapSongsToDomain keeps the server order. Records without a recognizable
// mood inherit the requested one.
func mapSongsToDomain(songs []wireSong, requested domain.Mood) []domain.Track {
	tracks := make([]domain.Track, 0, len(songs))
	for _, s := range songs {
		mood, err := domain.ParseMood(s.Mood)
		if err != nil {
			mood = requested
		}
		tracks = append(tracks, domain.Track{
			ID:       s.ID,
			Title:    s.Title,
			Artist:   s.Artist,
			AudioURL: s.Audio,
			Mood:     mood,
		})
	}
	return tracks
}
