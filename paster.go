// Package paster reassembles a raster image that fragment servers deliver as
// many small, independently fetched containers.
//
// Each fragment holds a fixed number of scanlines and is itself a complete
// single-block container. Fetch tasks download fragments into a bounded
// channel, decode tasks inflate them into a shared raster at the offset named
// by each fragment's sequence header, and once every fragment has been written
// the raster is deflated into one output container.
//
// # Basic Usage
//
//	params, _ := config.ParseParams([]string{"4", "2", "2", "0", "1"})
//	report, err := paster.Run(ctx, params, paster.DefaultProtocol(), logger)
//	if err != nil {
//	    return err
//	}
//	err = paster.WriteFile("all.png", report)
//
// # Package Structure
//
// This package wires the transport client into the pipeline. For finer
// control (a custom Fetcher, injected HTTP client) use the pipeline and
// transport packages directly.
package paster

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/arloliu/paster/config"
	"github.com/arloliu/paster/pipeline"
	"github.com/arloliu/paster/transport"
)

// DefaultProtocol returns the protocol constants of the course fragment servers.
func DefaultProtocol() config.Protocol {
	return config.DefaultProtocol()
}

// Run fetches and reassembles image params.ImageID from the endpoints in proto.
//
// Returns:
//   - *pipeline.Report: Run statistics; Container holds the output on success
//   - error: Parameter, protocol or pipeline error
func Run(ctx context.Context, params config.Params, proto config.Protocol, logger *slog.Logger) (*pipeline.Report, error) {
	client, err := transport.NewClient(proto, transport.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	p, err := pipeline.New(params, client,
		pipeline.WithProtocol(proto),
		pipeline.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return p.Run(ctx)
}

// WriteFile writes the assembled container of report to path.
func WriteFile(path string, report *pipeline.Report) error {
	if report == nil || report.Container == nil {
		return fmt.Errorf("no container to write to %s", path)
	}

	return os.WriteFile(path, report.Container, 0o644) //nolint:gosec // output image is world-readable
}
