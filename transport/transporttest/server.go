// Package transporttest provides an in-process fragment server for tests.
//
// The server splits a raster into fragment containers the same way the real
// fragment servers do and serves them on any path with the img and part query
// parameters. Failures, body encodings and the request-to-sequence mapping
// can be scripted per fragment index.
package transporttest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/arloliu/paster/compress"
	"github.com/arloliu/paster/config"
	"github.com/arloliu/paster/container"
	"github.com/arloliu/paster/format"
	"github.com/arloliu/paster/fragment"
)

// Raster builds a deterministic image raster for proto. Each scanline starts
// with filter tag 0; seed varies the pixel bytes.
func Raster(proto config.Protocol, seed byte) []byte {
	desc := proto.Image()
	raster := make([]byte, desc.RasterSize())
	stride := desc.RowStride()

	for row := range desc.Height {
		line := raster[row*stride : (row+1)*stride]
		for i := 1; i < len(line); i++ {
			line[i] = byte(row*13+i*7) ^ seed
		}
	}

	return raster
}

// Split encodes raster into fragment containers, indexed by sequence.
func Split(proto config.Protocol, raster []byte) ([][]byte, error) {
	if err := proto.Validate(); err != nil {
		return nil, err
	}

	image := proto.Image()
	if len(raster) != image.RasterSize() {
		return nil, fmt.Errorf("raster is %d bytes, want %d", len(raster), image.RasterSize())
	}

	geometry := proto.Fragment()
	stride := geometry.RasterSize()

	enc, err := container.NewEncoder(container.WithLevel(compress.BestCompression))
	if err != nil {
		return nil, err
	}

	fragments := make([][]byte, proto.TotalFragments())
	for seq := range fragments {
		payload, err := fragment.Encode(enc, geometry, raster[seq*stride:(seq+1)*stride], proto.MaxFragmentSize)
		if err != nil {
			return nil, fmt.Errorf("fragment %d: %w", seq, err)
		}
		fragments[seq] = payload
	}

	return fragments, nil
}

// Request records one request the server received.
type Request struct {
	Path  string
	Image int
	Index int
}

// Server serves fragment containers over HTTP.
type Server struct {
	*httptest.Server

	proto     config.Protocol
	imageID   int
	fragments [][]byte

	mu       sync.Mutex
	failures map[int]int // index -> remaining failures, negative is unlimited
	corrupt  map[int]bool
	encoding format.ContentEncoding
	sequence func(index int) int
	noHeader map[int]bool
	requests []Request
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithFailures makes the first n requests for index fail with 503.
// A negative n fails every request for index.
func WithFailures(index, n int) ServerOption {
	return func(s *Server) {
		s.failures[index] = n
	}
}

// WithCorruptFragment serves index with a flipped byte in its data block.
func WithCorruptFragment(index int) ServerOption {
	return func(s *Server) {
		s.corrupt[index] = true
	}
}

// WithoutSequenceHeader omits the sequence header for index.
func WithoutSequenceHeader(index int) ServerOption {
	return func(s *Server) {
		s.noHeader[index] = true
	}
}

// WithEncoding compresses every body with the given content encoding.
func WithEncoding(enc format.ContentEncoding) ServerOption {
	return func(s *Server) {
		s.encoding = enc
	}
}

// WithSequenceMap makes a request for part index return fragment fn(index).
func WithSequenceMap(fn func(index int) int) ServerOption {
	return func(s *Server) {
		s.sequence = fn
	}
}

// NewServer starts a server for image imageID built from raster.
// The caller must Close it.
func NewServer(proto config.Protocol, imageID int, raster []byte, opts ...ServerOption) (*Server, error) {
	fragments, err := Split(proto, raster)
	if err != nil {
		return nil, err
	}

	s := &Server{
		proto:     proto,
		imageID:   imageID,
		fragments: fragments,
		failures:  make(map[int]int),
		corrupt:   make(map[int]bool),
		noHeader:  make(map[int]bool),
		encoding:  format.EncodingIdentity,
		sequence:  func(index int) int { return index },
	}

	for _, opt := range opts {
		opt(s)
	}

	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))

	return s, nil
}

// Endpoints returns n distinct endpoint URLs that all reach this server.
func (s *Server) Endpoints(n int) []string {
	endpoints := make([]string, n)
	for i := range endpoints {
		endpoints[i] = fmt.Sprintf("%s/ece252-%d/image", s.URL, i+1)
	}

	return endpoints
}

// Protocol returns proto with its endpoints pointed at this server.
func (s *Server) Protocol(endpoints int) config.Protocol {
	proto := s.proto
	proto.Endpoints = s.Endpoints(endpoints)

	return proto
}

// Fragment returns the container served for sequence seq.
func (s *Server) Fragment(seq int) []byte {
	return s.fragments[seq]
}

// Requests returns a copy of the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Request(nil), s.requests...)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	image, err := strconv.Atoi(q.Get("img"))
	if err != nil {
		http.Error(w, "bad img", http.StatusBadRequest)
		return
	}

	index, err := strconv.Atoi(q.Get("part"))
	if err != nil {
		http.Error(w, "bad part", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, Request{Path: r.URL.Path, Image: image, Index: index})
	fail := false
	if n, ok := s.failures[index]; ok && n != 0 {
		fail = true
		if n > 0 {
			s.failures[index] = n - 1
		}
	}
	corrupt := s.corrupt[index]
	noHeader := s.noHeader[index]
	encoding := s.encoding
	seq := s.sequence(index)
	s.mu.Unlock()

	if image != s.imageID || index < 0 || index >= len(s.fragments) || seq < 0 || seq >= len(s.fragments) {
		http.NotFound(w, r)
		return
	}

	if fail {
		http.Error(w, "fragment unavailable", http.StatusServiceUnavailable)
		return
	}

	body := s.fragments[seq]
	if corrupt {
		body = append([]byte(nil), body...)
		body[len(body)/2] ^= 0xFF
	}

	if encoding != format.EncodingIdentity {
		codec, err := compress.CreateCodec(encoding)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		body, err = codec.Compress(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Encoding", encoding.String())
	}

	if !noHeader {
		w.Header().Set(s.proto.SequenceHeader, strconv.Itoa(seq))
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
