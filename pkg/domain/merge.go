package domain

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// MergeMissing fills gaps in a stored blob from a defaults blob.
// Insert-only semantics: a key present in stored always wins, unknown stored
// keys are preserved, and nested maps are merged recursively. Neither input
// is mutated; the result is a fresh map.
//
// This is the forward-compatibility seam for persisted documents: readers run
// every stored blob through MergeMissing(stored, DefaultDoc(name)) so a
// document written by an older schema still reads fully populated.
func MergeMissing(stored, defaults map[string]any) map[string]any {
	out := make(map[string]any, len(stored)+len(defaults))
	for k, v := range stored {
		out[k] = v
	}
	for k, dv := range defaults {
		sv, ok := out[k]
		if !ok {
			out[k] = dv
			continue
		}
		sm, sIsMap := sv.(map[string]any)
		dm, dIsMap := dv.(map[string]any)
		if sIsMap && dIsMap {
			out[k] = MergeMissing(sm, dm)
		}
	}
	return out
}

// DecodeDoc converts a merged blob into a typed document.
// Decoding is tolerant of JSON's numeric widening (float64 for ints) and
// ignores unknown keys, which stay alive in the blob but have no typed field.
func DecodeDoc[T any](raw map[string]any) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, fmt.Errorf("build document decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return out, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

// toBlob converts a typed document into its blob form via a JSON round trip,
// so defaults and stored values share one representation for merging.
func toBlob(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("document not serializable: %v", err))
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("document blob not a map: %v", err))
	}
	return out
}

// ToBlob exposes the blob form of a typed document for writers.
func ToBlob(v any) map[string]any {
	return toBlob(v)
}
