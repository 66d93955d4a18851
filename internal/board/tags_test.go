package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTags(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty", raw: "", want: nil},
		{name: "whitespace only", raw: "   ", want: nil},
		{name: "single", raw: "golang", want: []string{"golang"}},
		{name: "trims and lowercases", raw: "  GoLang , WEB  ", want: []string{"golang", "web"}},
		{name: "drops empties between commas", raw: "go,,web,", want: []string{"go", "web"}},
		{name: "dedupes case-insensitively", raw: "Go,go,GO,web", want: []string{"go", "web"}},
		{name: "keeps first-seen order", raw: "zeta,alpha,zeta", want: []string{"zeta", "alpha"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTags(tt.raw))
		})
	}
}

func TestNormalizeTag(t *testing.T) {
	assert.Equal(t, "news", NormalizeTag("  News "))
	assert.Equal(t, "", NormalizeTag("   "))
}
