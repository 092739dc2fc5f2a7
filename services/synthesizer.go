package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"html"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/cppla/aishort/oracle"
)

const (
	// SuffixLength is the fixed number of random characters after the delimiter.
	SuffixLength = 3
	// AliasDelimiter separates the label from the suffix.
	AliasDelimiter = "-"

	DefaultFallbackLabel  = "link"
	DefaultMaxLabelLength = 32
	DefaultOracleTimeout  = 5 * time.Second

	suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var (
	suffixBase  = big.NewInt(int64(len(suffixAlphabet)))
	labelPolicy = bluemonday.StrictPolicy()
)

// CandidateSource proposes aliases for a target URL.
type CandidateSource interface {
	Synthesize(ctx context.Context, targetURL string) (string, error)
}

// SynthesizerOptions tune a Synthesizer. Zero values select the defaults.
type SynthesizerOptions struct {
	OracleTimeout  time.Duration
	FallbackLabel  string
	MaxLabelLength int
	// Random feeds the suffix; crypto/rand when nil.
	Random io.Reader
}

// Synthesizer builds "<label>-<suffix>" candidates from an oracle label and a random suffix.
type Synthesizer struct {
	oracle   oracle.Oracle
	timeout  time.Duration
	fallback string
	maxLabel int
	random   io.Reader
	logger   *zap.Logger
}

// NewSynthesizer creates a Synthesizer. A nil oracle behaves like oracle.Disabled.
func NewSynthesizer(o oracle.Oracle, opts SynthesizerOptions, logger *zap.Logger) *Synthesizer {
	if o == nil {
		o = oracle.Disabled{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Synthesizer{
		oracle:   o,
		timeout:  opts.OracleTimeout,
		maxLabel: opts.MaxLabelLength,
		random:   opts.Random,
		logger:   logger,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultOracleTimeout
	}
	if s.maxLabel <= 0 {
		s.maxLabel = DefaultMaxLabelLength
	}
	if limit := maxAliasLength - len(AliasDelimiter) - SuffixLength; s.maxLabel > limit {
		s.maxLabel = limit
	}
	if s.random == nil {
		s.random = rand.Reader
	}
	s.fallback = normalizeLabel(opts.FallbackLabel, s.maxLabel)
	if s.fallback == "" {
		s.fallback = DefaultFallbackLabel
	}
	return s
}

// Synthesize makes exactly one oracle call and never retries it.
// Oracle failures degrade to the fallback label; only a broken random source is an error.
func (s *Synthesizer) Synthesize(ctx context.Context, targetURL string) (string, error) {
	label := s.label(ctx, targetURL)
	suffix, err := s.suffix()
	if err != nil {
		return "", err
	}
	return label + AliasDelimiter + suffix, nil
}

func (s *Synthesizer) label(ctx context.Context, targetURL string) string {
	octx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.oracle.Describe(octx, targetURL)
	if err != nil {
		s.logger.Warn("label oracle failed, using fallback label",
			zap.String("target_url", targetURL),
			zap.String("fallback", s.fallback),
			zap.Error(err),
		)
		return s.fallback
	}

	label := normalizeLabel(raw, s.maxLabel)
	if label == "" {
		s.logger.Warn("label oracle returned an unusable label",
			zap.String("target_url", targetURL),
			zap.String("raw", raw),
		)
		return s.fallback
	}
	return label
}

func (s *Synthesizer) suffix() (string, error) {
	var b strings.Builder
	b.Grow(SuffixLength)
	for i := 0; i < SuffixLength; i++ {
		idx, err := rand.Int(s.random, suffixBase)
		if err != nil {
			return "", fmt.Errorf("alias suffix: %w", err)
		}
		b.WriteByte(suffixAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

// normalizeLabel strips markup and keeps ASCII letters and digits, truncated to limit.
func normalizeLabel(raw string, limit int) string {
	cleaned := html.UnescapeString(labelPolicy.Sanitize(raw))
	var b strings.Builder
	for _, r := range cleaned {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() >= limit {
				break
			}
		}
	}
	return b.String()
}
