// RomStash Core
// Copyright (c) 2025 The RomStash Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of RomStash Core.
//
// RomStash Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// RomStash Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with RomStash Core.  If not, see <http://www.gnu.org/licenses/>.

package httpclient

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/RomStashProject/romstash-core/pkg/config"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
)

const (
	// DefaultTimeoutSeconds is the default timeout for HTTP requests
	DefaultTimeoutSeconds = 30

	// DefaultPoolSize is the default number of keep-alive connections per host
	DefaultPoolSize = 20

	copyBufferSize = 128 * 1024
)

// ErrEmptyFile is returned when a download completes with zero bytes
// written. Empty media files are treated as failures.
var ErrEmptyFile = errors.New("downloaded file is empty")

// StatusError reports a non-OK HTTP response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, http.StatusText(e.Code))
}

// Retryable reports whether the status is worth another attempt. Rate
// limiting and server errors are transient; other 4xx are terminal.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// AuthFailure reports whether the status indicates missing or rejected
// credentials.
func (e *StatusError) AuthFailure() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}

// IsRetryable classifies an error from Get or DownloadFile. Connection
// errors and retryable statuses qualify; cancellation never does.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	if errors.Is(err, ErrEmptyFile) {
		return false
	}

	// url.Error implements net.Error, so this covers transport failures too
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// AuthTransport provides automatic authentication for HTTP requests based on auth.toml
type AuthTransport struct {
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper interface with automatic authentication
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Base == nil {
		t.Base = http.DefaultTransport
	}

	creds := config.LookupAuth(config.GetAuthCfg(), req.URL.String())
	if creds != nil {
		if creds.Bearer != "" {
			req.Header.Set("Authorization", "Bearer "+creds.Bearer)
		} else if creds.Username != "" {
			user := creds.Username
			pass := creds.Password
			auth := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
			req.Header.Set("Authorization", "Basic "+auth)
		}
	}

	resp, err := t.Base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform HTTP round trip: %w", err)
	}
	return resp, nil
}

// NewPooledTransport returns a transport with keep-alive pooling sized for
// poolSize concurrent downloads against one media host, upgraded to HTTP/2
// where the server supports it.
func NewPooledTransport(poolSize int) *http.Transport {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: 30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          poolSize * 2,
		MaxIdleConnsPerHost:   poolSize,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		log.Warn().Err(err).Msg("failed to enable http2, falling back to http1")
	}
	return transport
}

// DefaultTransport provides a configured transport with connection pooling and reasonable timeouts
var DefaultTransport = NewPooledTransport(DefaultPoolSize)

// Client provides an HTTP client with authentication and sensible defaults
type Client struct {
	*http.Client
}

// NewClient creates a new HTTP client with authentication support
func NewClient() *Client {
	return &Client{
		Client: &http.Client{
			Transport: &AuthTransport{
				Base: DefaultTransport,
			},
		},
	}
}

// NewClientWithTimeout creates a new HTTP client with a custom timeout
func NewClientWithTimeout(timeout time.Duration) *Client {
	return &Client{
		Client: &http.Client{
			Transport: &AuthTransport{
				Base: DefaultTransport,
			},
			Timeout: timeout,
		},
	}
}

// NewPooledClient creates a client with a private transport sized from
// config. The download pipeline owns one of these per run so Stop can close
// its connections without disturbing other users.
func NewPooledClient(cfg *config.Instance) *Client {
	return &Client{
		Client: &http.Client{
			Transport: &AuthTransport{
				Base: NewPooledTransport(cfg.DownloadMaxConnections()),
			},
			Timeout: cfg.DownloadTimeout(),
		},
	}
}

// DownloadFileArgs contains arguments for file download operations
type DownloadFileArgs struct {
	URL        string
	OutputPath string
	TempPath   string
}

// DownloadFile downloads a file from the given URL to the output path.
// Cancellation is honored after headers arrive and between chunk writes;
// partial files are removed on any failure.
func (c *Client) DownloadFile(ctx context.Context, args DownloadFileArgs) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, args.URL, http.NoBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("error getting url: %w", err)
	}
	if resp == nil {
		return errors.New("received nil response")
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("error closing response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}

	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // cancellation passes through unchanged
	}

	// Use temp path if provided, otherwise use output path directly
	outputPath := args.OutputPath
	if args.TempPath != "" {
		outputPath = args.TempPath
	}

	file, err := os.Create(outputPath) // #nosec G304 - outputPath is validated by caller
	if err != nil {
		return fmt.Errorf("error creating file: %w", err)
	}

	written, err := copyChunks(ctx, file, resp.Body)
	if err != nil {
		discardPartial(file, outputPath)
		return fmt.Errorf("error downloading file: %w", err)
	}

	expected := resp.ContentLength
	if expected > 0 && written != expected {
		discardPartial(file, outputPath)
		return fmt.Errorf("download incomplete: expected %d bytes, got %d", expected, written)
	}

	if written == 0 {
		discardPartial(file, outputPath)
		return fmt.Errorf("%s: %w", args.URL, ErrEmptyFile)
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("error closing file: %w", err)
	}

	// Move from temp path to final path if using temp file
	if args.TempPath != "" && args.TempPath != args.OutputPath {
		if err := os.Rename(args.TempPath, args.OutputPath); err != nil {
			removeErr := os.Remove(args.TempPath)
			if removeErr != nil {
				log.Warn().Err(removeErr).Msgf("error removing temp file: %s", args.TempPath)
			}
			return fmt.Errorf("error renaming temp file: %w", err)
		}
	}

	return nil
}

// copyChunks copies body to file checking for cancellation between chunks.
func copyChunks(ctx context.Context, file *os.File, body io.Reader) (int64, error) {
	buf := make([]byte, copyBufferSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err //nolint:wrapcheck // cancellation passes through unchanged
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			wn, writeErr := file.Write(buf[:n])
			written += int64(wn)
			if writeErr != nil {
				return written, fmt.Errorf("error writing chunk: %w", writeErr)
			}
		}
		if errors.Is(readErr, io.EOF) {
			return written, nil
		}
		if readErr != nil {
			return written, fmt.Errorf("error reading chunk: %w", readErr)
		}
	}
}

func discardPartial(file *os.File, path string) {
	if closeErr := file.Close(); closeErr != nil {
		log.Warn().Err(closeErr).Msgf("error closing file: %s", path)
	}
	if removeErr := os.Remove(path); removeErr != nil {
		log.Warn().Err(removeErr).Msgf("error removing partial download: %s", path)
	}
}

// Get performs a GET request and returns the response
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error performing GET request: %w", err)
	}

	return resp, nil
}

// DefaultClient provides a shared HTTP client instance
var DefaultClient = NewClient()
