package transport

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/arloliu/paster/errs"
	"github.com/arloliu/paster/internal/options"
)

// Option configures a Client.
type Option = options.Option[*Client]

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return options.New(func(c *Client) error {
		if hc == nil {
			return fmt.Errorf("%w: nil http client", errs.ErrInvalidParams)
		}
		c.http = hc

		return nil
	})
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return options.NoError(func(c *Client) {
		if logger == nil {
			logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
		c.logger = logger
	})
}
