package embedding

import (
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ClientConfig selects an OpenAI-compatible endpoint.
type ClientConfig struct {
	// BaseURL overrides the API root, e.g. a local or Groq-compatible server.
	BaseURL string
	// APIKey takes precedence over APIKeyEnv.
	APIKey string
	// APIKeyEnv names the environment variable holding the key (default OPENAI_API_KEY).
	APIKeyEnv string
}

// Client wraps the OpenAI client for embedding generation.
type Client struct {
	client *openai.Client
}

// NewClient creates a new OpenAI client. It returns an error if no API key is configured.
// The SDK's own retries are disabled; callers decide what to retry.
func NewClient(cfg ClientConfig) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		env := cfg.APIKeyEnv
		if env == "" {
			env = "OPENAI_API_KEY"
		}
		apiKey = os.Getenv(env)
		if apiKey == "" {
			return nil, fmt.Errorf("%s environment variable not set", env)
		}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := openai.NewClient(opts...)
	return &Client{client: &client}, nil
}

// Client returns the underlying OpenAI client for use in other packages (e.g., answer generation).
func (c *Client) Client() *openai.Client {
	return c.client
}
