package certificate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangedKeysPrimitives(t *testing.T) {
	current := map[string]any{"DomainName": "new.example.com", "Kind": "x"}
	previous := map[string]any{"DomainName": "old.example.com", "Kind": "x"}
	assert.Equal(t, []string{"DomainName"}, changedKeys(current, previous))
}

func TestChangedKeysPresenceCounts(t *testing.T) {
	current := map[string]any{"DomainName": "example.com", "Tags": []any{}}
	previous := map[string]any{"DomainName": "example.com"}
	assert.Equal(t, []string{"Tags"}, changedKeys(current, previous))

	// Removal is a change too.
	assert.Equal(t, []string{"Tags"}, changedKeys(previous, current))
}

func TestChangedKeysNestedObjects(t *testing.T) {
	current := map[string]any{
		"Options": map[string]any{"Preference": "ENABLED", "Extra": float64(1)},
	}
	previous := map[string]any{
		"Options": map[string]any{"Preference": "DISABLED", "Extra": float64(1)},
	}
	assert.Equal(t, []string{"Options"}, changedKeys(current, previous))

	same := map[string]any{
		"Options": map[string]any{"Preference": "ENABLED", "Extra": float64(1)},
	}
	assert.Empty(t, changedKeys(current, same))
}

func TestChangedKeysArraysPositional(t *testing.T) {
	current := map[string]any{"Names": []any{"a", "b"}}
	reordered := map[string]any{"Names": []any{"b", "a"}}
	assert.Equal(t, []string{"Names"}, changedKeys(current, reordered))

	shorter := map[string]any{"Names": []any{"a"}}
	assert.Equal(t, []string{"Names"}, changedKeys(current, shorter))

	same := map[string]any{"Names": []any{"a", "b"}}
	assert.Empty(t, changedKeys(current, same))
}

func TestChangedKeysTypeMismatch(t *testing.T) {
	current := map[string]any{"Value": map[string]any{}}
	previous := map[string]any{"Value": "scalar"}
	assert.Equal(t, []string{"Value"}, changedKeys(current, previous))
}

func TestDiffTagsOrderIndependent(t *testing.T) {
	existing := []Tag{{Key: "A", Value: "1"}, {Key: "B", Value: "2"}}
	desired := []Tag{{Key: "B", Value: "2"}, {Key: "C", Value: "3"}}

	add, remove := diffTags(existing, desired)
	assert.Equal(t, []Tag{{Key: "C", Value: "3"}}, add)
	assert.Equal(t, []Tag{{Key: "A", Value: "1"}}, remove)

	// Same result regardless of input ordering.
	add2, remove2 := diffTags(
		[]Tag{{Key: "B", Value: "2"}, {Key: "A", Value: "1"}},
		[]Tag{{Key: "C", Value: "3"}, {Key: "B", Value: "2"}},
	)
	assert.Equal(t, add, add2)
	assert.Equal(t, remove, remove2)
}

func TestDiffTagsValueChangeIsAddAndRemove(t *testing.T) {
	add, remove := diffTags(
		[]Tag{{Key: "Env", Value: "staging"}},
		[]Tag{{Key: "Env", Value: "production"}},
	)
	assert.Equal(t, []Tag{{Key: "Env", Value: "production"}}, add)
	assert.Equal(t, []Tag{{Key: "Env", Value: "staging"}}, remove)
}

func TestDiffTagsNoChanges(t *testing.T) {
	tags := []Tag{{Key: "A", Value: "1"}}
	add, remove := diffTags(tags, tags)
	assert.Empty(t, add)
	assert.Empty(t, remove)
}
