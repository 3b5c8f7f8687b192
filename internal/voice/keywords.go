package voice

import "strings"

// Score weights.
const (
	PersonaBonus      = 50
	PersonaPenalty    = 50
	VendorBonus       = 30
	NeuralBonus       = 25
	EnhancedBonus     = 20
	HindiVendorBonus  = 100
	HindiNameBonus    = 80
	HindiGenericBonus = 10
)

// Markers are lower-case substrings looked for in a lower-cased voice name.
// A name may match both persona lists; "female" contains "male", so a
// female voice scores +50 and -50 on a female request.
var maleMarkers = []string{
	"male", "man", "david", "daniel", "ravi", "hemant", "neil", "rishi", "kalb", "microsoft ram",
}

var femaleMarkers = []string{
	"female", "woman", "zira", "samantha", "susan", "lekha", "kalpana", "heera", "kore", "swara", "microsoft hira", "meena",
}

var vendorMarkers = []string{"google"}

var neuralMarkers = []string{"natural", "neural"}

var enhancedMarkers = []string{"enhanced", "premium"}

// hindiMarkers identify a Hindi voice by name, in Latin or Devanagari script.
var hindiMarkers = []string{"hindi", "हिंदी", "हिन्दी"}

// hindiNameGroups are curated Hindi voice names, one group per platform.
// Each group that matches adds HindiNameBonus.
var hindiNameGroups = [][]string{
	{"hemant", "kalpana"},
	{"lekha", "rishi", "meena", "isha"},
}

var hindiGenericMarkers = []string{"hindi", "हिंदी", "हिन्दी", "india"}

func anyMarker(name string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}
