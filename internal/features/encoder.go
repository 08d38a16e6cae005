package features

import (
	"sort"

	"github.com/yourusername/keiba-engine/internal/models"
)

// LabelEncoder maps a categorical string vocabulary to dense integer codes.
// Classes are sorted, which makes encoding deterministic across fit runs,
// and the UnknownID class is reserved unconditionally at fit time so every
// out-of-vocabulary value has a defined code.
type LabelEncoder struct {
	Classes []string `json:"classes"`
}

// FitLabelEncoder builds an encoder over the observed vocabulary plus the
// reserved unknown class.
func FitLabelEncoder(values []string) *LabelEncoder {
	seen := make(map[string]struct{}, len(values)+1)
	seen[models.UnknownID] = struct{}{}
	for _, v := range values {
		if v == "" {
			v = models.UnknownID
		}
		seen[v] = struct{}{}
	}

	classes := make([]string, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Strings(classes)
	return &LabelEncoder{Classes: classes}
}

// Validate checks the fit-time invariant that the unknown class exists.
// A deserialized encoder that lacks it is corrupt, not a fallback case.
func (e *LabelEncoder) Validate() error {
	if _, ok := e.lookup(models.UnknownID); !ok {
		return models.ErrEncoderMissingUnknown
	}
	return nil
}

// Encode returns the integer code for a value, falling back to the unknown
// class for anything outside the fitted vocabulary. It is a total function
// over strings and safe for concurrent use.
func (e *LabelEncoder) Encode(value string) int {
	if value == "" {
		value = models.UnknownID
	}
	if idx, ok := e.lookup(value); ok {
		return idx
	}
	idx, _ := e.lookup(models.UnknownID)
	return idx
}

// Size returns the vocabulary size.
func (e *LabelEncoder) Size() int {
	return len(e.Classes)
}

func (e *LabelEncoder) lookup(value string) (int, bool) {
	idx := sort.SearchStrings(e.Classes, value)
	if idx < len(e.Classes) && e.Classes[idx] == value {
		return idx, true
	}
	return 0, false
}
