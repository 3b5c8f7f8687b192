package cue

import (
	"math"
)

const (
	attack    = 0.01
	slideRise = 0.02
	slidePeak = 0.3
	tail      = 0.1
	floor     = 0.001
)

// Length is the duration of s in seconds, including oscillator tails.
func (s Sound) Length() float64 {
	var end float64
	for _, t := range s.Tones {
		end = math.Max(end, t.Start+t.Duration+tail)
	}
	for _, sl := range s.Slides {
		end = math.Max(end, sl.Start+sl.Duration+tail)
	}
	return end
}

// Render synthesizes s as mono float32 PCM scaled by gain and clipped to
// [-1, 1].
func Render(s Sound, sampleRate int, gain float64) []float32 {
	n := int(math.Ceil(s.Length() * float64(sampleRate)))
	mix := make([]float64, n)

	for _, t := range s.Tones {
		renderTone(mix, t, sampleRate)
	}
	for _, sl := range s.Slides {
		renderSlide(mix, sl, sampleRate)
	}

	out := make([]float32, n)
	for i, v := range mix {
		out[i] = float32(math.Max(-1, math.Min(1, v*gain)))
	}
	return out
}

func renderTone(mix []float64, t Tone, sampleRate int) {
	rate := float64(sampleRate)
	first := int(t.Start * rate)
	last := int(math.Ceil((t.Start + t.Duration + tail) * rate))

	for i := first; i < last && i < len(mix); i++ {
		el := float64(i-first) / rate
		mix[i] += oscillate(t.Wave, t.Freq*el) * toneEnvelope(el, t.Duration, t.Volume)
	}
}

// toneEnvelope is the gain el seconds into a tone.
func toneEnvelope(el, duration, volume float64) float64 {
	switch {
	case el < attack:
		return volume * el / attack
	case el < duration:
		// exponential ramp from volume to floor
		frac := (el - attack) / (duration - attack)
		return volume * math.Pow(floor/volume, frac)
	default:
		return floor
	}
}

func renderSlide(mix []float64, sl Slide, sampleRate int) {
	rate := float64(sampleRate)
	first := int(sl.Start * rate)
	last := int(math.Ceil((sl.Start + sl.Duration + tail) * rate))

	var phase float64
	for i := first; i < last && i < len(mix); i++ {
		el := float64(i-first) / rate
		freq := sl.To
		if el < sl.Duration {
			freq = sl.From * math.Pow(sl.To/sl.From, el/sl.Duration)
		}
		mix[i] += oscillate(sl.Wave, phase) * slideEnvelope(el, sl.Duration)
		phase += freq / rate
	}
}

// slideEnvelope is the gain el seconds into a slide.
func slideEnvelope(el, duration float64) float64 {
	switch {
	case el < slideRise:
		return slidePeak * el / slideRise
	case el < duration:
		frac := (el - slideRise) / (duration - slideRise)
		return slidePeak + (floor-slidePeak)*frac
	default:
		return floor
	}
}

// oscillate evaluates a unit waveform at phase, measured in cycles.
func oscillate(w Waveform, phase float64) float64 {
	_, p := math.Modf(phase)
	switch w {
	case Square:
		if p < 0.5 {
			return 1
		}
		return -1
	case Triangle:
		return 1 - 4*math.Abs(p-0.5)
	default:
		return math.Sin(2 * math.Pi * p)
	}
}
