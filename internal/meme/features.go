package meme

import (
	"sync/atomic"

	"github.com/m3rciful/memearena/internal/domain"
)

// Features holds the runtime switches for generation kinds. Template memes cannot be disabled.
type Features struct {
	ai    atomic.Bool
	voice atomic.Bool
}

// NewFeatures returns switches initialized from configuration.
func NewFeatures(aiEnabled, voiceEnabled bool) *Features {
	f := &Features{}
	f.ai.Store(aiEnabled)
	f.voice.Store(voiceEnabled)
	return f
}

func (f *Features) flag(kind domain.Kind) *atomic.Bool {
	switch kind {
	case domain.KindAI:
		return &f.ai
	case domain.KindVoice:
		return &f.voice
	}
	return nil
}

// Enabled reports whether kind may be generated.
func (f *Features) Enabled(kind domain.Kind) bool {
	if flag := f.flag(kind); flag != nil {
		return flag.Load()
	}
	return true
}

// Set switches kind on or off. Kinds without a switch are ignored.
func (f *Features) Set(kind domain.Kind, on bool) {
	if flag := f.flag(kind); flag != nil {
		flag.Store(on)
	}
}

// Toggle flips kind and returns the new value.
func (f *Features) Toggle(kind domain.Kind) bool {
	flag := f.flag(kind)
	if flag == nil {
		return true
	}
	for {
		cur := flag.Load()
		if flag.CompareAndSwap(cur, !cur) {
			return !cur
		}
	}
}
