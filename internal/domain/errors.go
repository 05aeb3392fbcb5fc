package domain

import "fmt"

// InvalidInputError reports a malformed weather sample.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid weather sample: %s: %s", e.Field, e.Reason)
}

// MissingFeatureError reports a classifier feature the extractor does not produce.
// It indicates an artifact/schema mismatch, not a transient failure.
type MissingFeatureError struct {
	Name string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("missing feature %q required by classifier", e.Name)
}
