package openai

import (
	"net/http"
	"time"

	"github.com/poiesic/issueindex/transport"
)

// newTimeoutClient bounds every embeddings call made through langchaingo.
func newTimeoutClient(timeout time.Duration) *http.Client {
	return transport.NewClient(timeout, false)
}
