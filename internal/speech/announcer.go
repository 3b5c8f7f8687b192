package speech

import (
	"github.com/normanking/voicelink/internal/cue"
	"github.com/normanking/voicelink/internal/gesture"
)

// Cues plays a sound profile.
type Cues interface {
	Play(p cue.Profile)
}

// Announcer speaks confirmed gesture phrases in the current language,
// preceded by the happy cue.
type Announcer struct {
	coord    *Coordinator
	cues     Cues
	settings func() Settings
}

// NewAnnouncer creates an announcer. settings is read on every phrase so
// changes apply immediately. cues may be nil.
func NewAnnouncer(coord *Coordinator, cues Cues, settings func() Settings) *Announcer {
	return &Announcer{coord: coord, cues: cues, settings: settings}
}

// HandlePhrase plays the cue and speaks ev.
func (a *Announcer) HandlePhrase(ev gesture.PhraseEvent) {
	if a.cues != nil {
		a.cues.Play(cue.Happy)
	}
	s := a.settings()
	a.coord.Speak(ev.Text(s.Language), s)
}

// Silence cancels speech.
func (a *Announcer) Silence() {
	a.coord.Stop()
}
