package voice

import (
	"sort"
	"strings"
)

// Select picks the voice to speak with. The second result is false when no
// voice fits, in which case the caller should let the engine use its default.
func Select(available []Descriptor, req Request) (Descriptor, bool) {
	if d, ok := override(available, req); ok {
		return d, true
	}

	candidates := Candidates(available, req.Language)
	if len(candidates) == 0 {
		return Descriptor{}, false
	}

	return Rank(candidates, req)[0].Descriptor, true
}

// override returns the manually chosen voice if it exists and speaks the
// requested language.
func override(available []Descriptor, req Request) (Descriptor, bool) {
	if req.OverrideURI == "" {
		return Descriptor{}, false
	}
	for _, d := range available {
		if d.URI == req.OverrideURI {
			if d.MatchesLanguage(req.Language) {
				return d, true
			}
			return Descriptor{}, false
		}
	}
	return Descriptor{}, false
}

// Candidates filters voices by language. Hindi falls back to voices whose
// name marks them as Hindi when no tag matches.
func Candidates(available []Descriptor, lang Language) []Descriptor {
	var out []Descriptor
	for _, d := range available {
		if d.MatchesLanguage(lang) {
			out = append(out, d)
		}
	}
	if len(out) == 0 && lang == Hindi {
		for _, d := range available {
			if anyMarker(strings.ToLower(d.Name), hindiMarkers) {
				out = append(out, d)
			}
		}
	}
	return out
}

// ForLanguage lists the voices offered in the settings picker for a
// language: tag matches, plus Hindi-named voices for Hindi.
func ForLanguage(available []Descriptor, lang Language) []Descriptor {
	var out []Descriptor
	for _, d := range available {
		if d.MatchesLanguage(lang) ||
			(lang == Hindi && anyMarker(strings.ToLower(d.Name), hindiMarkers)) {
			out = append(out, d)
		}
	}
	return out
}

// Rank scores candidates and orders them best first. Equal scores keep
// enumeration order.
func Rank(candidates []Descriptor, req Request) []Ranked {
	ranked := make([]Ranked, len(candidates))
	for i, d := range candidates {
		ranked[i] = Ranked{Descriptor: d, Score: Score(d, req)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Score rates how well a voice fits the request. It depends only on the
// voice name and the request.
func Score(d Descriptor, req Request) int {
	name := strings.ToLower(d.Name)

	want, avoid := femaleMarkers, maleMarkers
	if req.Persona == Male {
		want, avoid = maleMarkers, femaleMarkers
	}

	score := 0
	if anyMarker(name, want) {
		score += PersonaBonus
	}
	if anyMarker(name, avoid) {
		score -= PersonaPenalty
	}

	vendor := anyMarker(name, vendorMarkers)
	if vendor {
		score += VendorBonus
	}
	if anyMarker(name, neuralMarkers) {
		score += NeuralBonus
	}
	if anyMarker(name, enhancedMarkers) {
		score += EnhancedBonus
	}

	if req.Language == Hindi {
		if vendor && anyMarker(name, hindiMarkers) {
			score += HindiVendorBonus
		}
		for _, group := range hindiNameGroups {
			if anyMarker(name, group) {
				score += HindiNameBonus
			}
		}
		if anyMarker(name, hindiGenericMarkers) {
			score += HindiGenericBonus
		}
	}

	return score
}
