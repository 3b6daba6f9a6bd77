// Package transport fetches fragments from the fragment servers over HTTP.
//
// Endpoints are picked round-robin by fragment index; a retry of the same
// fragment moves on to the next endpoint. Host resolution failures are
// transient and retried in place with a fixed backoff; every other failure is
// reported once to the caller as errs.ErrFetchFailed.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/arloliu/paster/compress"
	"github.com/arloliu/paster/config"
	"github.com/arloliu/paster/errs"
	"github.com/arloliu/paster/format"
	"github.com/arloliu/paster/fragment"
	"github.com/arloliu/paster/internal/options"
	"github.com/arloliu/paster/internal/pool"
)

// acceptEncoding lists the body encodings the client can decode.
const acceptEncoding = "zstd, s2, lz4, identity"

// Client fetches fragments. It is safe for concurrent use and shares one
// connection pool across all fetch tasks.
type Client struct {
	proto     config.Protocol
	endpoints []*url.URL
	http      *http.Client
	logger    *slog.Logger
}

// NewClient creates a client for the endpoints in proto.
//
// Returns:
//   - *Client: Client ready for use
//   - error: ErrInvalidProtocol for an unusable protocol or endpoint URL
func NewClient(proto config.Protocol, opts ...Option) (*Client, error) {
	if err := proto.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		proto:  proto,
		http:   &http.Client{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, raw := range proto.Endpoints {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: endpoint %q: %w", errs.ErrInvalidProtocol, raw, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("%w: endpoint %q is not an http(s) URL", errs.ErrInvalidProtocol, raw)
		}
		c.endpoints = append(c.endpoints, u)
	}

	if err := options.Apply(c, opts...); err != nil {
		return nil, err
	}

	return c, nil
}

// Endpoint returns the endpoint used for a fragment index on the given attempt.
func (c *Client) Endpoint(index, attempt int) string {
	return c.endpoint(index, attempt).String()
}

func (c *Client) endpoint(index, attempt int) *url.URL {
	return c.endpoints[(index+attempt)%len(c.endpoints)]
}

// Fetch retrieves fragment index of image imageID.
//
// Host resolution failures are retried against the same endpoint up to the
// protocol's ResolveRetries (forever when zero) or until ctx is done.
//
// Returns:
//   - fragment.Fragment: The fragment and the sequence number its server reported
//   - error: ErrFetchFailed (possibly also matching ErrTransient or
//     ErrFragmentTooLarge), or the context error
func (c *Client) Fetch(ctx context.Context, imageID, index, attempt int) (fragment.Fragment, error) {
	endpoint := c.endpoint(index, attempt)

	for retry := 0; ; retry++ {
		frag, err := c.fetchOnce(ctx, endpoint, imageID, index)
		if err == nil {
			return frag, nil
		}

		if !errors.Is(err, errs.ErrTransient) {
			return fragment.Fragment{}, err
		}

		if limit := c.proto.ResolveRetries; limit > 0 && retry >= limit {
			return fragment.Fragment{}, fmt.Errorf("%w: giving up after %d resolve retries: %w", errs.ErrFetchFailed, retry, err)
		}

		c.logger.Debug("host resolution failed, retrying",
			"endpoint", endpoint.Host,
			"index", index,
			"retry", retry+1,
			"error", err,
		)

		if err := wait(ctx, c.proto.ResolveBackoff); err != nil {
			return fragment.Fragment{}, err
		}
	}
}

func (c *Client) fetchOnce(ctx context.Context, endpoint *url.URL, imageID, index int) (fragment.Fragment, error) {
	u := *endpoint
	q := u.Query()
	q.Set("img", strconv.Itoa(imageID))
	q.Set("part", strconv.Itoa(index))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fragment.Fragment{}, fmt.Errorf("%w: %w", errs.ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", c.proto.UserAgent)
	req.Header.Set("Accept-Encoding", acceptEncoding)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fragment.Fragment{}, ctxErr
		}

		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return fragment.Fragment{}, fmt.Errorf("%w: %w", errs.ErrTransient, err)
		}

		return fragment.Fragment{}, fmt.Errorf("%w: %w", errs.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, int64(c.proto.MaxFragmentSize)))
		return fragment.Fragment{}, fmt.Errorf("%w: %s returned %s", errs.ErrFetchFailed, endpoint.Host, resp.Status)
	}

	seq, err := c.sequence(resp.Header)
	if err != nil {
		return fragment.Fragment{}, err
	}

	payload, err := c.readBody(resp)
	if err != nil {
		return fragment.Fragment{}, err
	}

	return fragment.New(seq, payload), nil
}

// sequence reads the sequence number header.
func (c *Client) sequence(h http.Header) (int, error) {
	raw := h.Get(c.proto.SequenceHeader)
	if raw == "" {
		return 0, fmt.Errorf("%w: response has no %s header", errs.ErrFetchFailed, c.proto.SequenceHeader)
	}

	seq, err := strconv.Atoi(raw)
	if err != nil || seq < 0 {
		return 0, fmt.Errorf("%w: invalid %s header %q", errs.ErrFetchFailed, c.proto.SequenceHeader, raw)
	}

	return seq, nil
}

// readBody reads and decodes the response body, enforcing the fragment size limit
// on both the encoded and the decoded form.
func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	encoding, err := format.ParseContentEncoding(resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrFetchFailed, err)
	}

	limit := c.proto.MaxFragmentSize

	bb := pool.GetFragmentBuffer()
	defer pool.PutFragmentBuffer(bb)

	if _, err := bb.ReadFrom(io.LimitReader(resp.Body, int64(limit)+1)); err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", errs.ErrFetchFailed, err)
	}

	if bb.Len() > limit {
		return nil, fmt.Errorf("%w: %w: body exceeds %d bytes", errs.ErrFetchFailed, errs.ErrFragmentTooLarge, limit)
	}

	if encoding == format.EncodingIdentity {
		return bytes.Clone(bb.Bytes()), nil
	}

	codec, err := compress.CreateCodec(encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrFetchFailed, err)
	}

	payload, err := codec.DecompressLimit(bb.Bytes(), limit)
	if errors.Is(err, errs.ErrOutputLimit) {
		return nil, fmt.Errorf("%w: %w: decoded body exceeds %d bytes: %w", errs.ErrFetchFailed, errs.ErrFragmentTooLarge, limit, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s body: %w", errs.ErrFetchFailed, encoding, err)
	}

	return payload, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
