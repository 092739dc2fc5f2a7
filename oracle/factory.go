package oracle

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Options configure New.
type Options struct {
	// Provider is one of "gemini", "static" or "disabled".
	Provider    string
	Endpoint    string
	Model       string
	APIKey      string
	BearerToken string
	StaticWord  string
	Timeout     time.Duration
}

// New builds the Oracle selected by opts.Provider.
func New(ctx context.Context, opts Options) (Oracle, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", "gemini":
		var (
			client *http.Client
			err    error
		)
		if opts.BearerToken != "" {
			client = NewBearerClient(ctx, opts.BearerToken, opts.Timeout)
		} else {
			client, err = NewHTTPClient(ctx, opts.APIKey, opts.Timeout)
			if err != nil {
				return nil, err
			}
		}
		return NewGemini(client, GeminiConfig{
			Endpoint: opts.Endpoint,
			Model:    opts.Model,
			APIKey:   opts.APIKey,
		}), nil
	case "static":
		return Static(opts.StaticWord), nil
	case "disabled", "none":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("oracle: unknown provider %q", opts.Provider)
	}
}
