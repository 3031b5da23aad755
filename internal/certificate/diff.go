package certificate

import "sort"

// changedKeys returns the sorted top-level property names whose values
// differ between the current and previous property sets. Absence versus
// presence of a key counts as a change.
func changedKeys(current, previous map[string]any) []string {
	seen := make(map[string]bool, len(current)+len(previous))
	var keys []string
	for k := range current {
		seen[k] = true
		if !structurallyEqual(current[k], previous[k]) {
			keys = append(keys, k)
		}
	}
	for k := range previous {
		if seen[k] {
			continue
		}
		if _, ok := current[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// structurallyEqual compares JSON-shaped values: objects key-by-key, arrays
// by length and positional equality, primitives by equality.
func structurallyEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bval, present := bv[k]
			if !present || !structurallyEqual(v, bval) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !structurallyEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// diffTags computes the tag set difference between the currently attached
// tags and the desired ones. The result is order-independent in the inputs;
// outputs are sorted for deterministic API calls.
func diffTags(current, desired []Tag) (add, remove []Tag) {
	have := make(map[Tag]bool, len(current))
	for _, t := range current {
		have[t] = true
	}
	want := make(map[Tag]bool, len(desired))
	for _, t := range desired {
		want[t] = true
	}
	for t := range want {
		if !have[t] {
			add = append(add, t)
		}
	}
	for t := range have {
		if !want[t] {
			remove = append(remove, t)
		}
	}
	sortTags(add)
	sortTags(remove)
	return add, remove
}

func sortTags(tags []Tag) {
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Key != tags[j].Key {
			return tags[i].Key < tags[j].Key
		}
		return tags[i].Value < tags[j].Value
	})
}
