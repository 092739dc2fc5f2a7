package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Gemini) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewGemini(srv.Client(), GeminiConfig{Endpoint: srv.URL, Model: "test-model", APIKey: "k"})
}

func answer(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	})
}

func TestGeminiDescribe(t *testing.T) {
	var gotPath, gotKey string
	var gotBody geminiRequest
	_, g := geminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		answer(w, `{"data": "Example"}`)
	})

	word, err := g.Describe(context.Background(), "https://example.com/article")
	require.NoError(t, err)
	assert.Equal(t, "Example", word)
	assert.Equal(t, "/v1beta/models/test-model:generateContent", gotPath)
	assert.Equal(t, "k", gotKey)
	require.Len(t, gotBody.Contents, 1)
	assert.Contains(t, gotBody.Contents[0].Parts[0].Text, `input: "https://example.com/article"`)
}

func TestGeminiDescribeLooseAnswer(t *testing.T) {
	_, g := geminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		answer(w, "```json\nBlogSEO is a good word\n```")
	})

	word, err := g.Describe(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "BlogSEO", word)
}

func TestGeminiDescribeFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":{"message":"quota"}}`, http.StatusTooManyRequests)
			},
		},
		{
			name: "no candidates",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"candidates":[]}`))
			},
		},
		{
			name: "garbage",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
		},
		{
			name: "blank",
			handler: func(w http.ResponseWriter, r *http.Request) {
				answer(w, `{"data": "  "}`)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, g := geminiServer(t, tc.handler)
			_, err := g.Describe(context.Background(), "x")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
		})
	}
}

func TestGeminiDescribeHonoursContext(t *testing.T) {
	release := make(chan struct{})
	_, g := geminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := g.Describe(ctx, "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestStaticAndDisabled(t *testing.T) {
	word, err := Static("Docs").Describe(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "Docs", word)

	_, err = Static(" ").Describe(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = Disabled{}.Describe(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewSelectsProvider(t *testing.T) {
	o, err := New(context.Background(), Options{Provider: "static", StaticWord: "Fixed"})
	require.NoError(t, err)
	assert.Equal(t, Static("Fixed"), o)

	o, err = New(context.Background(), Options{Provider: "Disabled"})
	require.NoError(t, err)
	assert.Equal(t, Disabled{}, o)

	o, err = New(context.Background(), Options{APIKey: "k", Endpoint: "http://127.0.0.1:1/", Timeout: time.Second})
	require.NoError(t, err)
	g, ok := o.(*Gemini)
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(g.url(), DefaultGeminiModel+":generateContent"))

	_, err = New(context.Background(), Options{Provider: "crystal-ball"})
	assert.Error(t, err)
}
