package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/proxy"
)

// DefaultMaxBodySize caps how much of a page body is read.
const DefaultMaxBodySize = 5 * 1024 * 1024

// TransportOptions configures NewHTTPClient.
type TransportOptions struct {
	// Timeout bounds a whole request including the body read.
	Timeout time.Duration

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string
}

// NewHTTPClient builds the client used for page and robots.txt requests.
// Compression is negotiated and decoded by the fetcher itself so brotli is
// supported alongside gzip and deflate.
func NewHTTPClient(opts TransportOptions) (*http.Client, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
		DisableCompression:    true,
	}

	if opts.ProxyAddress != "" {
		socks, err := proxy.SOCKS5("tcp", opts.ProxyAddress, nil, dialer)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		contextDialer, ok := socks.(proxy.ContextDialer)
		if !ok {
			return nil, errors.New("SOCKS5 dialer does not support contexts")
		}
		transport.DialContext = contextDialer.DialContext
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
	}, nil
}

// readBody reads and decodes resp.Body up to limit bytes.
// Undecodable or oversized bodies are reported as malformed.
func readBody(resp *http.Response, limit int64) ([]byte, error) {
	if resp.Body == nil {
		return nil, &malformedError{err: errors.New("empty response body")}
	}

	reader := io.Reader(resp.Body)
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, &malformedError{err: fmt.Errorf("gzip decode: %w", err)}
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	default:
		return nil, &malformedError{err: fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))}
	}

	body, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		if isDecodeError(err) {
			return nil, &malformedError{err: err}
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, &malformedError{err: fmt.Errorf("body exceeds limit of %d bytes", limit)}
	}
	return body, nil
}

// isDecodeError separates corrupt compressed data from transport failures
// that happened while the body was streaming.
func isDecodeError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return false
	}
	var corrupt flate.CorruptInputError
	return errors.As(err, &corrupt) || errors.Is(err, gzip.ErrChecksum) || errors.Is(err, gzip.ErrHeader)
}
