package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyComment(t *testing.T) {
	cases := []struct {
		comment string
		want    Tag
	}{
		{"CHANGE $DOWN to 9.49 under vendor 7", TagChangeDown},
		{"CHANGE $UP to 12.00 under vendor 3", TagChangeUp},
		{"CHANGE #DOWN to 4.20", TagChangeDown},
		{"CHANGE #UP to 4.40", TagChangeUp},
		{"change $down lowercase", TagChangeDown},
		// CHANGE sin tag de dirección: default down en schema histórico.
		{"CHANGE to 5.00", TagChangeDown},
		{"IGNORE: HITFLOOR", TagIgnoreFloor},
		{"IGNORE: FLOOR at 3.00", TagIgnoreFloor},
		{"IGNORE: SISTER vendor wins", TagIgnoreSister},
		{"IGNORE: ALREADY LOWEST", TagIgnoreLowest},
		{"IGNORE: DIRECTION", TagIgnoreOther},
		{"ignore: whatever", TagIgnoreOther},
		{"N/A", TagNoSolution},
		{"", TagNoSolution},
		{"   ", TagNoSolution},
		{"something unexpected", TagNoSolution},
		// El prefijo manda: un CHANGE que menciona FLOOR sigue siendo CHANGE.
		{"CHANGE $DOWN to floor 3.00", TagChangeDown},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyComment(tc.comment), "comment: %q", tc.comment)
	}
}

func TestClassifyReplayComment_InfersDirection(t *testing.T) {
	old := 10.0
	up := 11.0
	down := 9.0

	// Sin tag explícito, la dirección sale de comparar precios.
	assert.Equal(t, TagChangeUp, ClassifyReplayComment("CHANGE to 11.00", &old, &up))
	assert.Equal(t, TagChangeDown, ClassifyReplayComment("CHANGE to 9.00", &old, &down))

	// Tag explícito gana aunque los precios digan otra cosa.
	assert.Equal(t, TagChangeDown, ClassifyReplayComment("CHANGE $DOWN", &old, &up))

	// Sin precio viejo no hay inferencia posible: default down.
	assert.Equal(t, TagChangeDown, ClassifyReplayComment("CHANGE to 11.00", nil, &up))
	assert.Equal(t, TagChangeDown, ClassifyReplayComment("CHANGE to 11.00", &old, nil))
}

func TestTag_Outcome(t *testing.T) {
	cases := map[Tag]Category{
		TagChangeUp:     ChangeUp,
		TagChangeDown:   ChangeDown,
		TagIgnoreFloor:  NoChange,
		TagIgnoreSister: NoChange,
		TagIgnoreLowest: NoChange,
		TagIgnoreOther:  NoChange,
		TagNoSolution:   NoChange,
	}
	for tag, want := range cases {
		assert.Equal(t, want, tag.Outcome(), "tag: %s", tag)
	}
}

func TestCategory_IsPriceChange(t *testing.T) {
	assert.True(t, ChangeUp.IsPriceChange())
	assert.True(t, ChangeDown.IsPriceChange())
	assert.False(t, NoChange.IsPriceChange())
	assert.False(t, Error.IsPriceChange())
	assert.False(t, Skip.IsPriceChange())
}
