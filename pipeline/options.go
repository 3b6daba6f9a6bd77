package pipeline

import (
	"io"
	"log/slog"

	"github.com/arloliu/paster/config"
	"github.com/arloliu/paster/internal/options"
)

// Option configures a Pipeline.
type Option = options.Option[*Pipeline]

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return options.NoError(func(p *Pipeline) {
		if logger == nil {
			logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
		p.logger = logger
	})
}

// WithProtocol replaces the default protocol constants.
func WithProtocol(proto config.Protocol) Option {
	return options.New(func(p *Pipeline) error {
		if err := proto.Validate(); err != nil {
			return err
		}
		p.proto = proto

		return nil
	})
}
