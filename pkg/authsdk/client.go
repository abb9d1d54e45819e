package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// Client talks to the CRM authentication service. It holds no tokens:
// callers keep the tokens from Login and pass them back in.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}
