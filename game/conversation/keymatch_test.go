package conversation

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitWords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Tell me of thy JOB!", []string{"tell", "me", "of", "thy", "job"}},
		{"o'brien", []string{"obrien"}},
		{"name,job", []string{"namejob"}},
		{"  spaced\tout\nwords ", []string{"spaced", "out", "words"}},
		{"what? j?b", []string{"what?", "j?b"}},
		{"", nil},
		{"!!!", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := slices.Collect(SplitWords(tt.in))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitWords_Restartable(t *testing.T) {
	seq := SplitWords("job name")
	assert.Equal(t, []string{"job", "name"}, slices.Collect(seq))
	assert.Equal(t, []string{"job", "name"}, slices.Collect(seq))
}

func TestWordMatchesPattern(t *testing.T) {
	tests := []struct {
		pattern, word string
		want          bool
	}{
		{"j?b", "job", true},
		{"job", "jobs", true},
		{"jobs", "job", false},
		{"JOB", "job", true},
		{"job", "JoB", true},
		{"???", "abc", true},
		{"???", "ab", false},
		{"nam", "name", true},
		{"name", "game", false},
		{"", "anything", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WordMatchesPattern(tt.pattern, tt.word), "%q vs %q", tt.pattern, tt.word)
	}
}

func TestKeyMatchesInput(t *testing.T) {
	assert.True(t, KeyMatchesInput("*", "anything at all"))
	assert.True(t, KeyMatchesInput("*", "x"))
	assert.False(t, KeyMatchesInput("", "job"))
	assert.False(t, KeyMatchesInput("", ""))

	assert.True(t, KeyMatchesInput("job", "what is thy job?"))
	assert.True(t, KeyMatchesInput("j?b", "JOB"))
	assert.True(t, KeyMatchesInput("nam", "Thy name, please"))
	assert.False(t, KeyMatchesInput("name", "na me"))
	assert.False(t, KeyMatchesInput("job", ""))
	// 标点被删除而不是作为分隔符。
	assert.False(t, KeyMatchesInput("job", "name,job"))
}

func TestAnyKeyMatches_DefaultsToKeyMatchesInput(t *testing.T) {
	kw, ok := anyKeyMatches([]string{"name", "job"}, "my job", nil)
	assert.True(t, ok)
	assert.Equal(t, "job", kw)

	_, ok = anyKeyMatches([]string{"name"}, "bye", nil)
	assert.False(t, ok)
}
