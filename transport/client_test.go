package transport

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/paster/config"
	"github.com/arloliu/paster/errs"
	"github.com/arloliu/paster/format"
	"github.com/arloliu/paster/transport/transporttest"
)

const imageID = 2

func newServer(t *testing.T, opts ...transporttest.ServerOption) *transporttest.Server {
	t.Helper()
	proto := config.DefaultProtocol()

	srv, err := transporttest.NewServer(proto, imageID, transporttest.Raster(proto, 0x5A), opts...)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	return srv
}

func newClient(t *testing.T, proto config.Protocol, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(proto, opts...)
	require.NoError(t, err)

	return c
}

func TestClient_Fetch(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv.Protocol(3))

	frag, err := c.Fetch(context.Background(), imageID, 7, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, frag.Sequence)
	assert.Equal(t, srv.Fragment(7), frag.Payload)
	assert.NotZero(t, frag.Digest)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, transporttest.Request{Path: "/ece252-2/image", Image: imageID, Index: 7}, reqs[0])
}

func TestClient_EndpointRoundRobin(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv.Protocol(3))
	endpoints := srv.Endpoints(3)

	assert.Equal(t, endpoints[0], c.Endpoint(0, 0))
	assert.Equal(t, endpoints[1], c.Endpoint(1, 0))
	assert.Equal(t, endpoints[2], c.Endpoint(2, 0))
	assert.Equal(t, endpoints[0], c.Endpoint(3, 0))

	// A retry moves to the next endpoint.
	assert.Equal(t, endpoints[2], c.Endpoint(1, 1))
	assert.Equal(t, endpoints[0], c.Endpoint(1, 2))
}

func TestClient_SequenceFromHeader(t *testing.T) {
	srv := newServer(t, transporttest.WithSequenceMap(func(index int) int { return 49 - index }))
	c := newClient(t, srv.Protocol(1))

	frag, err := c.Fetch(context.Background(), imageID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 39, frag.Sequence)
	assert.Equal(t, srv.Fragment(39), frag.Payload)
}

func TestClient_ContentEncodings(t *testing.T) {
	encodings := []format.ContentEncoding{
		format.EncodingZstd,
		format.EncodingS2,
		format.EncodingLZ4,
	}

	for _, enc := range encodings {
		t.Run(enc.String(), func(t *testing.T) {
			srv := newServer(t, transporttest.WithEncoding(enc))
			c := newClient(t, srv.Protocol(2))

			frag, err := c.Fetch(context.Background(), imageID, 4, 0)
			require.NoError(t, err)
			assert.Equal(t, srv.Fragment(4), frag.Payload)
		})
	}
}

func TestClient_FatalFailures(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := newServer(t, transporttest.WithFailures(3, -1))
		c := newClient(t, srv.Protocol(3))

		_, err := c.Fetch(context.Background(), imageID, 3, 0)
		require.ErrorIs(t, err, errs.ErrFetchFailed)
		assert.NotErrorIs(t, err, errs.ErrTransient)
	})

	t.Run("unknown image", func(t *testing.T) {
		srv := newServer(t)
		c := newClient(t, srv.Protocol(3))

		_, err := c.Fetch(context.Background(), imageID+1, 0, 0)
		require.ErrorIs(t, err, errs.ErrFetchFailed)
	})

	t.Run("missing sequence header", func(t *testing.T) {
		srv := newServer(t, transporttest.WithoutSequenceHeader(5))
		c := newClient(t, srv.Protocol(3))

		_, err := c.Fetch(context.Background(), imageID, 5, 0)
		require.ErrorIs(t, err, errs.ErrFetchFailed)
	})

	t.Run("body too large", func(t *testing.T) {
		srv := newServer(t)
		proto := srv.Protocol(3)
		proto.MaxFragmentSize = 16
		c := newClient(t, proto)

		_, err := c.Fetch(context.Background(), imageID, 0, 0)
		require.ErrorIs(t, err, errs.ErrFetchFailed)
		require.ErrorIs(t, err, errs.ErrFragmentTooLarge)
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := newServer(t)
		proto := srv.Protocol(1)
		srv.Close()
		c := newClient(t, proto)

		_, err := c.Fetch(context.Background(), imageID, 0, 0)
		require.ErrorIs(t, err, errs.ErrFetchFailed)
		assert.NotErrorIs(t, err, errs.ErrTransient)
	})
}

func TestClient_EncodedBodyBoundedBeforeDecoding(t *testing.T) {
	// 64 MiB of zeros streamed into a body far below the size limit.
	var body bytes.Buffer
	w, err := zstd.NewWriter(&body, zstd.WithWindowSize(1<<20))
	require.NoError(t, err)
	chunk := make([]byte, 1<<20)
	for range 64 {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	proto := config.DefaultProtocol()
	require.Less(t, body.Len(), proto.MaxFragmentSize)

	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set(proto.SequenceHeader, "0")
		rw.Header().Set("Content-Encoding", "zstd")
		_, _ = rw.Write(body.Bytes())
	}))
	t.Cleanup(srv.Close)

	proto.Endpoints = []string{srv.URL + "/image"}
	c := newClient(t, proto)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err = c.Fetch(context.Background(), imageID, 0, 0)
	runtime.ReadMemStats(&after)

	require.ErrorIs(t, err, errs.ErrFetchFailed)
	require.ErrorIs(t, err, errs.ErrFragmentTooLarge)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(16<<20),
		"decoding must stop near the limit instead of inflating the whole body")
}

// resolveFailing returns an HTTP client whose first n dials fail host resolution.
func resolveFailing(n int64, dials *atomic.Int64) *http.Client {
	dialer := &net.Dialer{}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if dials.Add(1) <= n {
				host, _, _ := net.SplitHostPort(addr)
				return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
			}

			return dialer.DialContext(ctx, network, addr)
		},
	}

	return &http.Client{Transport: transport}
}

func TestClient_TransientResolveRetried(t *testing.T) {
	srv := newServer(t)
	proto := srv.Protocol(3)
	proto.ResolveRetries = 0 // until success
	proto.ResolveBackoff = time.Millisecond

	var dials atomic.Int64
	c := newClient(t, proto, WithHTTPClient(resolveFailing(4, &dials)))

	frag, err := c.Fetch(context.Background(), imageID, 11, 0)
	require.NoError(t, err)
	assert.Equal(t, 11, frag.Sequence)
	assert.Equal(t, int64(5), dials.Load())
}

func TestClient_TransientResolveBounded(t *testing.T) {
	srv := newServer(t)
	proto := srv.Protocol(3)
	proto.ResolveRetries = 2
	proto.ResolveBackoff = time.Millisecond

	var dials atomic.Int64
	c := newClient(t, proto, WithHTTPClient(resolveFailing(100, &dials)))

	_, err := c.Fetch(context.Background(), imageID, 0, 0)
	require.ErrorIs(t, err, errs.ErrFetchFailed)
	require.ErrorIs(t, err, errs.ErrTransient)
	assert.Equal(t, int64(3), dials.Load())
}

func TestClient_TransientResolveCancelled(t *testing.T) {
	srv := newServer(t)
	proto := srv.Protocol(3)
	proto.ResolveBackoff = 5 * time.Millisecond

	var dials atomic.Int64
	c := newClient(t, proto, WithHTTPClient(resolveFailing(1<<40, &dials)))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, imageID, 0, 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClient_InvalidEndpoint(t *testing.T) {
	proto := config.DefaultProtocol()
	proto.Endpoints = []string{"ftp://example.com/image"}

	_, err := NewClient(proto)
	require.ErrorIs(t, err, errs.ErrInvalidProtocol)

	_, err = NewClient(config.DefaultProtocol(), WithHTTPClient(nil))
	require.ErrorIs(t, err, errs.ErrInvalidParams)
}
