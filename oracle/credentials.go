package oracle

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// generativeLanguageScope is requested when authenticating with application default credentials.
const generativeLanguageScope = "https://www.googleapis.com/auth/generative-language"

// NewHTTPClient returns the client a Gemini adapter should use.
// With an API key the key travels as a header and a plain client suffices;
// otherwise requests are signed with Google application default credentials.
func NewHTTPClient(ctx context.Context, apiKey string, timeout time.Duration) (*http.Client, error) {
	if apiKey != "" {
		return &http.Client{Timeout: timeout}, nil
	}
	creds, err := google.FindDefaultCredentials(ctx, generativeLanguageScope)
	if err != nil {
		return nil, fmt.Errorf("oracle: no api key and no default credentials: %w", err)
	}
	client := oauth2.NewClient(ctx, creds.TokenSource)
	client.Timeout = timeout
	return client, nil
}

// NewBearerClient signs every request with a fixed bearer token, for proxies
// that front the model with their own static credential.
func NewBearerClient(ctx context.Context, token string, timeout time.Duration) *http.Client {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	client.Timeout = timeout
	return client
}
