package srs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMentionsWord(t *testing.T) {
	cases := []struct {
		text string
		word string
		want bool
	}{
		{"dog house", "dog", true},
		{"the dog barks", "dog", true},
		{"dog", "dog", true},
		{"dog, actually", "dog", true},
		{"dogma", "dog", false},
		{"hotdog", "dog", false},
		{"Dog house", "dog", false}, // case-sensitive
		{"it's a dog", "it's", true},
		{"its a dog", "it's", false},
		{"well-known dog", "well", true}, // hyphen is a boundary
		{"", "dog", false},
		{"dog", "", false},
		{"a (dog) here", "dog", true},
		{"go, go away", "go", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, mentionsWord(c.text, c.word), "text=%q word=%q", c.text, c.word)
	}
}
