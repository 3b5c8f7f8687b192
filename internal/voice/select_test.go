package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func browserVoices() []Descriptor {
	return []Descriptor{
		{Name: "Microsoft David - English (United States)", LanguageTag: "en-US", URI: "david"},
		{Name: "Microsoft Zira - English (United States)", LanguageTag: "en-US", URI: "zira"},
		{Name: "Google US English", LanguageTag: "en-US", URI: "google-en"},
		{Name: "Microsoft Hemant - Hindi (India)", LanguageTag: "hi-IN", URI: "hemant"},
		{Name: "Microsoft Kalpana - Hindi (India)", LanguageTag: "hi-IN", URI: "kalpana"},
		{Name: "Google हिन्दी", LanguageTag: "hi-IN", URI: "google-hi"},
	}
}

func TestSelect_Deterministic(t *testing.T) {
	voices := browserVoices()
	req := Request{Language: Hindi, Persona: Female}

	first, ok := Select(voices, req)
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		again, ok := Select(voices, req)
		require.True(t, ok)
		assert.Equal(t, first, again)
	}
}

func TestSelect_PersonaPreference(t *testing.T) {
	voices := browserVoices()

	male, ok := Select(voices, Request{Language: English, Persona: Male})
	require.True(t, ok)
	assert.Equal(t, "david", male.URI)

	female, ok := Select(voices, Request{Language: English, Persona: Female})
	require.True(t, ok)
	assert.Equal(t, "zira", female.URI)

	// "Female" also contains "male", so the Google voice nets out to its
	// vendor bonus and the named voice wins.
	female, ok = Select([]Descriptor{
		{Name: "Microsoft Zira - English (United States)", LanguageTag: "en-US", URI: "zira"},
		{Name: "Google UK English Female", LanguageTag: "en-GB", URI: "google-uk-female"},
	}, Request{Language: English, Persona: Female})
	require.True(t, ok)
	assert.Equal(t, "zira", female.URI)
}

func TestSelect_Override(t *testing.T) {
	voices := browserVoices()

	t.Run("matching language is honored", func(t *testing.T) {
		got, ok := Select(voices, Request{Language: English, Persona: Male, OverrideURI: "zira"})
		require.True(t, ok)
		assert.Equal(t, "zira", got.URI)
	})

	t.Run("mismatched language is ignored", func(t *testing.T) {
		got, ok := Select(voices, Request{Language: English, Persona: Male, OverrideURI: "hemant"})
		require.True(t, ok)
		assert.Equal(t, "en-US", got.LanguageTag)
		assert.Equal(t, "david", got.URI)
	})

	t.Run("unknown uri falls through", func(t *testing.T) {
		got, ok := Select(voices, Request{Language: Hindi, Persona: Male, OverrideURI: "missing"})
		require.True(t, ok)
		assert.Equal(t, "hemant", got.URI)
	})

	t.Run("primary subtag match is case insensitive", func(t *testing.T) {
		list := []Descriptor{
			{Name: "Custom", LanguageTag: "HI-in", URI: "custom"},
			{Name: "Google हिंदी Female", LanguageTag: "hi-IN", URI: "g"},
		}
		got, ok := Select(list, Request{Language: Hindi, Persona: Female, OverrideURI: "custom"})
		require.True(t, ok)
		assert.Equal(t, "custom", got.URI)
	})
}

func TestSelect_HindiVendorVoiceBeatsGeneric(t *testing.T) {
	generic := Descriptor{Name: "Generic Hindi", LanguageTag: "hi-IN", URI: "generic"}
	google := Descriptor{Name: "Google हिंदी Female", LanguageTag: "hi-IN", URI: "google"}
	req := Request{Language: Hindi, Persona: Female}

	// Besides the vendor and Hindi bonuses, "Female" scores +50 and -50
	// because it contains "male", and the Devanagari name also counts as a
	// generic Hindi marker for +10.
	assert.Equal(t, 10, Score(generic, req))
	assert.Equal(t, PersonaBonus-PersonaPenalty+VendorBonus+HindiVendorBonus+HindiGenericBonus, Score(google, req))

	got, ok := Select([]Descriptor{generic, google}, req)
	require.True(t, ok)
	assert.Equal(t, "google", got.URI)
}

func TestSelect_HindiNameFallback(t *testing.T) {
	voices := []Descriptor{
		{Name: "Samantha", LanguageTag: "en-US", URI: "samantha"},
		{Name: "Hindi Voice", LanguageTag: "und", URI: "hindi-by-name"},
	}

	got, ok := Select(voices, Request{Language: Hindi, Persona: Female})
	require.True(t, ok)
	assert.Equal(t, "hindi-by-name", got.URI)
}

func TestSelect_NoCandidates(t *testing.T) {
	voices := []Descriptor{
		{Name: "Microsoft Hemant - Hindi (India)", LanguageTag: "hi-IN", URI: "hemant"},
	}

	_, ok := Select(voices, Request{Language: English, Persona: Female})
	assert.False(t, ok)

	_, ok = Select(nil, Request{Language: Hindi, Persona: Female})
	assert.False(t, ok)
}

func TestRank_TiesKeepEnumerationOrder(t *testing.T) {
	voices := []Descriptor{
		{Name: "Voice A", LanguageTag: "en-US", URI: "a"},
		{Name: "Voice B", LanguageTag: "en-US", URI: "b"},
		{Name: "Voice C", LanguageTag: "en-GB", URI: "c"},
	}

	ranked := Rank(voices, Request{Language: English, Persona: Male})
	require.Len(t, ranked, 3)
	assert.Equal(t, "a", ranked[0].URI)
	assert.Equal(t, "b", ranked[1].URI)
	assert.Equal(t, "c", ranked[2].URI)
}

func TestScore(t *testing.T) {
	tests := []struct {
		name  string
		voice string
		req   Request
		want  int
	}{
		{"female keyword", "Zira", Request{Language: English, Persona: Female}, 50},
		{"opposite keyword", "Zira", Request{Language: English, Persona: Male}, -50},
		{"both lists net out", "Daniel Female", Request{Language: English, Persona: Female}, 0},
		{"female contains male", "Some Female Voice", Request{Language: English, Persona: Male}, 0},
		{"woman contains man", "Woman", Request{Language: English, Persona: Male}, 0},
		{"samantha contains man", "Samantha", Request{Language: English, Persona: Female}, 0},
		{"vendor female voice", "Google UK English Female", Request{Language: English, Persona: Female}, 30},
		{"vendor", "Google UK English", Request{Language: English, Persona: Male}, 30},
		{"natural and enhanced", "Ava (Enhanced) Natural", Request{Language: English, Persona: Male}, 45},
		{"premium", "Premium Voice", Request{Language: English, Persona: Female}, 20},
		{"hindi curated male name", "Microsoft Hemant - Hindi (India)", Request{Language: Hindi, Persona: Male}, 50 + 80 + 10},
		{"hindi curated female name", "Lekha", Request{Language: Hindi, Persona: Female}, 50 + 80},
		{"hindi bonuses ignored for english", "Lekha", Request{Language: English, Persona: Female}, 50},
		{"india marker", "English (India)", Request{Language: Hindi, Persona: Female}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(Descriptor{Name: tt.voice}, tt.req))
		})
	}
}

func TestForLanguage(t *testing.T) {
	voices := []Descriptor{
		{Name: "Samantha", LanguageTag: "en-US"},
		{Name: "Lekha", LanguageTag: "hi-IN"},
		{Name: "Hindi Fallback", LanguageTag: "en-IN"},
	}

	assert.Len(t, ForLanguage(voices, English), 2)
	hindi := ForLanguage(voices, Hindi)
	require.Len(t, hindi, 2)
	assert.Equal(t, "Lekha", hindi[0].Name)
	assert.Equal(t, "Hindi Fallback", hindi[1].Name)
}

func TestParseLanguage(t *testing.T) {
	lang, err := ParseLanguage("hi")
	require.NoError(t, err)
	assert.Equal(t, Hindi, lang)
	assert.Equal(t, "hi", lang.Primary())

	lang, err = ParseLanguage("en-US")
	require.NoError(t, err)
	assert.Equal(t, English, lang)

	_, err = ParseLanguage("fr-FR")
	assert.ErrorIs(t, err, ErrUnknownLanguage)

	_, err = ParsePersona("robot")
	assert.ErrorIs(t, err, ErrUnknownPersona)
}
