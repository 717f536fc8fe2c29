package sanitize

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "Paris is the capital.", "Paris is the capital."},
		{"empty", "", ""},
		{"bold", "**Paris** is the capital.", "Paris is the capital."},
		{"italic", "*really* big", "really big"},
		{"bold and italic conflated", "***both***", "both"},
		{"link", "See [wiki](http://x)", "See wiki (http://x)"},
		{"link with parens in url", "[Go](https://en.wikipedia.org/wiki/Go_(language))", "Go (https://en.wikipedia.org/wiki/Go_(language))"},
		{"emphasis inside link text", "[**docs**](http://d)", "docs (http://d)"},
		{"two links", "[a](1) and [b](2)", "a (1) and b (2)"},
		{"heading", "# Title\nbody", "Title\nbody"},
		{"deep heading", "### Section", "Section"},
		{"heading runs", "# # Nested", "Nested"},
		{"indented hash kept", "  ## Sub", "  ## Sub"},
		{"numbered hash kept", "#1 choice is Paris", "#1 choice is Paris"},
		{"hashtag kept", "#hashtag trending", "#hashtag trending"},
		{"heading with tab", "##\tTabbed", "Tabbed"},
		{"hash mid line kept", "issue #42 fixed", "issue #42 fixed"},
		{"heading on later line", "intro\n## Part 2\ntext", "intro\nPart 2\ntext"},
		{"unclosed link left alone", "[broken](http://x", "[broken](http://x"},
		{"brackets without url", "[note] here", "[note] here"},
		{
			"scenario",
			"**Paris** is the capital. See [wiki](http://x)",
			"Paris is the capital. See wiki (http://x)",
		},
		{"link revealed by emphasis removal", "[a]*(b)", "a (b)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Response(tt.in))
		})
	}
}

func TestResponse_Idempotent(t *testing.T) {
	alphabet := []rune("ab #*[]()\n:/.x")
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 5000; i++ {
		n := rng.Intn(40)
		var sb strings.Builder
		for j := 0; j < n; j++ {
			sb.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		s := sb.String()
		once := Response(s)
		assert.Equal(t, once, Response(once), "input %q", s)
	}
}

func TestResponse_LinkRewrite(t *testing.T) {
	alphabet := []rune("abcXYZ019 -_.:/?=&")
	rng := rand.New(rand.NewSource(11))
	word := func(max int) string {
		n := rng.Intn(max)
		var sb strings.Builder
		for j := 0; j < n; j++ {
			sb.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		return sb.String()
	}

	for i := 0; i < 2000; i++ {
		text, url := word(20), word(30)
		got := Response("[" + text + "](" + url + ")")
		assert.Equal(t, text+" ("+url+")", got)
	}
}

func TestError(t *testing.T) {
	assert.Equal(t, "Error: server returned status 500: boom", Error("server returned status 500: **boom**"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 30))
	assert.Equal(t, "What is the capital of Fran...", Truncate("What is the capital of France today?", 30))
	assert.Len(t, []rune(Truncate("ééééééééééééééééééééééééééééééééééé", 30)), 30)
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Empty(t, Truncate("hello", 0))
	assert.Empty(t, Truncate("hello", -1), "narrow layouts pass negative widths")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "line one line two", Preview("line one\n\n  line two", 40))
}
