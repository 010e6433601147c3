package service

import (
	"strings"

	"github.com/itsmesammm/spinly/internal/model"
)

// Similarity weights. Tuned by hand; every deployment must score with
// the same constants so rankings are comparable.
const (
	weightStyle            = 4.0
	weightLabel            = 2.5
	weightYear             = 2.5
	weightArtist           = 1.0
	styleCompletenessBonus = 2.0
)

// ReleaseSimilarity scores how similar a target release is to a base
// release. The result is a weighted sum of style, label, year and artist
// terms; each term contributes zero when its inputs are missing on either
// side. Only relative ordering of scores is meaningful.
func ReleaseSimilarity(base, target *model.Release) float64 {
	score := 0.0

	// Styles: Jaccard similarity over lowercased tag sets, with a bonus
	// when every base style appears on the target.
	if len(base.Styles) > 0 && len(target.Styles) > 0 {
		baseSet := lowerSet(base.Styles)
		targetSet := lowerSet(target.Styles)

		intersection := 0
		subset := true
		for style := range baseSet {
			if targetSet[style] {
				intersection++
			} else {
				subset = false
			}
		}
		union := len(baseSet) + len(targetSet) - intersection
		if union > 0 {
			score += float64(intersection) / float64(union) * weightStyle
			if subset {
				score += styleCompletenessBonus
			}
		}
	}

	// Label: exact case-insensitive match.
	if base.Label != nil && target.Label != nil &&
		strings.EqualFold(*base.Label, *target.Label) {
		score += weightLabel
	}

	// Year: linear falloff, zero at a 10 year gap.
	if base.Year != nil && target.Year != nil {
		yearDiff := *base.Year - *target.Year
		if yearDiff < 0 {
			yearDiff = -yearDiff
		}
		yearScore := 1 - float64(yearDiff)/10.0
		if yearScore < 0 {
			yearScore = 0
		}
		score += yearScore * weightYear
	}

	// Artist: same primary artist, no partial credit.
	if base.ArtistID != nil && target.ArtistID != nil &&
		*base.ArtistID == *target.ArtistID {
		score += weightArtist
	}

	return score
}

func lowerSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = true
	}
	return set
}
