package trimfill

import (
	"gometa/domain/study"
)

// FilledLabelPrefix marks imputed studies in output labels.
const FilledLabelPrefix = "Filled: "

// fillMirrored imputes the k0 missing studies as reflections of the k0 most
// extreme observed effects about the converged center. Inputs are oriented
// (missing-left) and ascending; the returned studies are un-oriented back to
// the caller's scale when flipped is set.
func fillMirrored(effects, ses []float64, labels []string, center float64, k0 int, flipped bool) []study.Study {
	k := len(effects)
	if k0 <= 0 || k0 > k {
		return nil
	}

	filled := make([]study.Study, 0, k0)
	for i := k - k0; i < k; i++ {
		effect := 2*center - effects[i]
		if flipped {
			effect = -effect
		}
		filled = append(filled, study.Study{
			Label:  FilledLabelPrefix + labels[i],
			Effect: effect,
			SE:     ses[i],
			Filled: true,
		})
	}
	return filled
}
