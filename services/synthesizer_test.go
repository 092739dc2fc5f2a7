package services

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/aishort/oracle"
)

func TestSynthesizeUsesOracleLabel(t *testing.T) {
	var seen string
	o := oracle.Func(func(ctx context.Context, content string) (string, error) {
		seen = content
		return "Example", nil
	})
	s := NewSynthesizer(o, SynthesizerOptions{}, nil)

	alias, err := s.Synthesize(context.Background(), "https://example.com/article")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/article", seen)
	assert.Regexp(t, regexp.MustCompile(`^Example-[A-Za-z0-9]{3}$`), alias)
}

func TestSynthesizeFallsBackWhenOracleFails(t *testing.T) {
	cases := []struct {
		name   string
		oracle oracle.Oracle
		opts   SynthesizerOptions
		want   string
	}{
		{name: "disabled", oracle: oracle.Disabled{}, want: DefaultFallbackLabel},
		{name: "nil oracle", oracle: nil, want: DefaultFallbackLabel},
		{name: "custom fallback", oracle: oracle.Disabled{}, opts: SynthesizerOptions{FallbackLabel: "go-to"}, want: "goto"},
		{name: "unusable label", oracle: oracle.Static("!!! ???"), want: DefaultFallbackLabel},
		{
			name: "timeout",
			oracle: oracle.Func(func(ctx context.Context, _ string) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			}),
			opts: SynthesizerOptions{OracleTimeout: 20 * time.Millisecond},
			want: DefaultFallbackLabel,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSynthesizer(tc.oracle, tc.opts, nil)
			alias, err := s.Synthesize(context.Background(), "https://example.com")
			require.NoError(t, err)
			label, suffix, ok := strings.Cut(alias, AliasDelimiter)
			require.True(t, ok)
			assert.Equal(t, tc.want, label)
			assert.Len(t, suffix, SuffixLength)
		})
	}
}

func TestNormalizeLabel(t *testing.T) {
	cases := map[string]string{
		"GenAI":                      "GenAI",
		"  Blog SEO  ":               "BlogSEO",
		"<b>Data</b>Viz":             "DataViz",
		"AT&T":                       "ATT",
		"naïve-Café":                 "naveCaf",
		"":                           "",
		strings.Repeat("abcdefgh", 8): strings.Repeat("abcdefgh", 4),
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeLabel(in, DefaultMaxLabelLength), "input %q", in)
	}
}

func TestSuffixIsDeterministicForAFixedRandomSource(t *testing.T) {
	opts := SynthesizerOptions{Random: bytes.NewReader(bytes.Repeat([]byte{0}, 64))}
	s := NewSynthesizer(oracle.Static("Docs"), opts, nil)

	alias, err := s.Synthesize(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "Docs-AAA", alias)
}

func TestSuffixFailsWhenRandomSourceIsExhausted(t *testing.T) {
	s := NewSynthesizer(oracle.Static("Docs"), SynthesizerOptions{Random: bytes.NewReader(nil)}, nil)
	_, err := s.Synthesize(context.Background(), "https://example.com")
	assert.Error(t, err)
}

func TestSuffixCoversAlphabet(t *testing.T) {
	s := NewSynthesizer(oracle.Static("x"), SynthesizerOptions{}, nil)
	seen := map[rune]bool{}
	for i := 0; i < 2000; i++ {
		alias, err := s.Synthesize(context.Background(), "u")
		require.NoError(t, err)
		for _, r := range strings.TrimPrefix(alias, "x-") {
			seen[r] = true
		}
	}
	// 6000 uniform draws over 62 symbols leave none out in practice
	assert.Len(t, seen, len(suffixAlphabet))
}
