package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchStepExhaustionKey(t *testing.T) {
	tests := []struct {
		name   string
		step   SearchStep
		want   ExhaustionKey
		wantOK bool
	}{
		{"section", SearchStep{Level: LevelA1, SectionID: "s1"}, SectionKey(LevelA1, "s1"), true},
		{"topic", SearchStep{Level: LevelA1, Topic: "verbs"}, TopicKey(LevelA1, "verbs"), true},
		{"level", SearchStep{Level: LevelB1}, LevelKey(LevelB1), true},
		{"unconstrained", SearchStep{}, ExhaustionKey{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.step.ExhaustionKey()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSessionContextCloneIsIndependent(t *testing.T) {
	sc := NewSessionContext(1, LevelA1, "verbs")
	sc.MarkShown(10)
	sc.MarkExhausted(LevelKey(LevelA1))

	clone := sc.Clone()
	clone.MarkShown(11)
	clone.MarkExhausted(LevelKey(LevelA2))
	clone.FocusedSection = "s2"

	assert.False(t, sc.WasShown(11))
	assert.False(t, sc.IsExhausted(LevelKey(LevelA2)))
	assert.Empty(t, sc.FocusedSection)
	assert.True(t, clone.WasShown(10))
	assert.True(t, clone.IsExhausted(LevelKey(LevelA1)))
}

func TestSessionContextClearExhaustionKeepsShown(t *testing.T) {
	sc := NewSessionContext(1, LevelA1, "")
	sc.MarkShown(3)
	sc.MarkExhausted(SectionKey(LevelA1, "s1"))

	sc.ClearExhaustion()

	assert.Empty(t, sc.Exhausted)
	assert.True(t, sc.WasShown(3))
	assert.ElementsMatch(t, []int64{3}, sc.ShownIDs())
}

func TestZeroSessionContextMarks(t *testing.T) {
	var sc SessionContext
	sc.MarkShown(1)
	sc.MarkExhausted(LevelKey(LevelC2))

	assert.True(t, sc.WasShown(1))
	assert.True(t, sc.IsExhausted(LevelKey(LevelC2)))
}
