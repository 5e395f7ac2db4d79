package playback

import "github.com/ewilliams-labs/moodplayer/internal/core/domain"

// SlotView is one rendered row.
type SlotView struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	Audio   string `json:"audio"`
	Mood    string `json:"mood"`
	Playing bool   `json:"playing"`
}

// View is the render model of the panel.
type View struct {
	Heading       string     `json:"heading"`
	Generation    uint64     `json:"generation"`
	Slots         []SlotView `json:"slots"`
	Active        int        `json:"active"`
	Progress      float64    `json:"progress"`
	Duration      float64    `json:"duration"`
	ProgressLabel string     `json:"progress_label"`
	DurationLabel string     `json:"duration_label"`
}

// View returns the current render model.
func (p *Panel) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := View{
		Heading:       p.list.Heading(),
		Generation:    p.gen,
		Slots:         make([]SlotView, 0, len(p.list.Tracks)),
		Active:        p.active,
		Progress:      p.progress,
		Duration:      p.duration,
		ProgressLabel: FormatTime(p.progress),
		DurationLabel: FormatTime(p.duration),
	}
	if p.active == NoActive {
		v.Progress = 0
		v.ProgressLabel = FormatTime(0)
	}
	for i, t := range p.list.Tracks {
		v.Slots = append(v.Slots, SlotView{
			Index:   i,
			Title:   t.Title,
			Artist:  t.Artist,
			Audio:   t.AudioURL,
			Mood:    string(t.Mood),
			Playing: i == p.active,
		})
	}
	return v
}

// Tracks returns the published tracks.
func (p *Panel) Tracks() []domain.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Track(nil), p.list.Tracks...)
}
