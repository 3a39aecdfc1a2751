package study

import (
	"fmt"
	"strconv"

	"gometa/domain/core"
)

// Set is an ordered collection of studies measured on a common scale.
// Operations on a Set never mutate it; they return copies.
type Set struct {
	ID      core.StudySetID `json:"id"`
	Label   string          `json:"label,omitempty"`
	Measure string          `json:"measure,omitempty"` // summary measure label: "MD", "SMD", "OR", ...
	Studies []Study         `json:"studies"`
}

// NewSet builds a set from studies, assigning an ID and defaulting empty
// labels to "1".."k".
func NewSet(label string, studies []Study) *Set {
	s := &Set{
		ID:      core.StudySetID(core.NewID()),
		Label:   label,
		Studies: make([]Study, len(studies)),
	}
	copy(s.Studies, studies)
	for i := range s.Studies {
		if s.Studies[i].Label == "" {
			s.Studies[i].Label = strconv.Itoa(i + 1)
		}
	}
	return s
}

// Len returns the number of studies, filled and excluded included.
func (s *Set) Len() int {
	return len(s.Studies)
}

// Estimable returns the indices of studies that can contribute to pooling.
func (s *Set) Estimable() []int {
	idx := make([]int, 0, len(s.Studies))
	for i, st := range s.Studies {
		if st.Estimable() {
			idx = append(idx, i)
		}
	}
	return idx
}

// Effects returns the effect estimates of all studies in order.
func (s *Set) Effects() []float64 {
	out := make([]float64, len(s.Studies))
	for i, st := range s.Studies {
		out[i] = st.Effect
	}
	return out
}

// SEs returns the standard errors of all studies in order.
func (s *Set) SEs() []float64 {
	out := make([]float64, len(s.Studies))
	for i, st := range s.Studies {
		out[i] = st.SE
	}
	return out
}

// Labels returns the study labels in order.
func (s *Set) Labels() []string {
	out := make([]string, len(s.Studies))
	for i, st := range s.Studies {
		out[i] = st.Label
	}
	return out
}

// Validate checks structural soundness. A zero or NaN standard error makes a
// study non-estimable, not invalid; a negative one is rejected outright.
func (s *Set) Validate() error {
	if len(s.Studies) == 0 {
		return core.NewValidationError("studies", "set is empty")
	}
	for i, st := range s.Studies {
		if st.SE < 0 {
			return core.NewValidationError(
				fmt.Sprintf("studies[%d].se", i),
				"standard error must be non-negative",
			)
		}
	}
	return nil
}

// Clone returns a deep copy of the set.
func (s *Set) Clone() *Set {
	out := &Set{
		ID:      s.ID,
		Label:   s.Label,
		Measure: s.Measure,
		Studies: make([]Study, len(s.Studies)),
	}
	copy(out.Studies, s.Studies)
	return out
}

// Append returns a copy of the set with extra studies added at the end.
func (s *Set) Append(studies ...Study) *Set {
	out := s.Clone()
	out.Studies = append(out.Studies, studies...)
	return out
}

// Subset returns a copy containing only the studies at the given indices,
// in the order given.
func (s *Set) Subset(indices []int) *Set {
	out := &Set{
		ID:      s.ID,
		Label:   s.Label,
		Measure: s.Measure,
		Studies: make([]Study, 0, len(indices)),
	}
	for _, i := range indices {
		out.Studies = append(out.Studies, s.Studies[i])
	}
	return out
}

// Negate returns a copy with every effect sign flipped. Used to reduce
// right-missing funnels to the left-missing case.
func (s *Set) Negate() *Set {
	out := s.Clone()
	for i := range out.Studies {
		out.Studies[i].Effect = -out.Studies[i].Effect
	}
	return out
}

// Reorder returns a copy with studies arranged by the permutation.
func (s *Set) Reorder(p Permutation) *Set {
	out := s.Clone()
	out.Studies = p.Studies(s.Studies)
	return out
}

// Fingerprint hashes the estimable (effect, se) pairs, order-independent.
func (s *Set) Fingerprint() core.SetFingerprint {
	idx := s.Estimable()
	effects := make([]float64, 0, len(idx))
	ses := make([]float64, 0, len(idx))
	for _, i := range idx {
		effects = append(effects, s.Studies[i].Effect)
		ses = append(ses, s.Studies[i].SE)
	}
	return core.ComputeSetFingerprint(effects, ses)
}
