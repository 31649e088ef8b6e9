package legdata

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Download errors.
var (
	ErrMissingMember = errors.New("archive is missing data file")
	ErrBadStatus     = errors.New("unexpected HTTP status")
)

const (
	// rangeBlockSize is the size of each ranged read against the archive.
	rangeBlockSize = 1 << 20
	// rangeCacheBlocks bounds how many fetched blocks are kept in memory.
	rangeCacheBlocks = 16

	defaultRetryMax = 2
	// defaultRetryWait is the pause before the first retry; later retries
	// wait proportionally longer.
	defaultRetryWait = 500 * time.Millisecond
)

// NewHTTPClient returns a client for archive downloads. GET and HEAD
// requests are retried on transport errors after a short pause. There is no
// overall timeout since a full archive can take minutes; callers bound the
// work with the request context.
func NewHTTPClient() *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   4,
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(&retryTransport{
			base:      base,
			retryMax:  defaultRetryMax,
			retryWait: defaultRetryWait,
		}),
	}
}

// retryTransport retries replayable requests that fail before a response
// is received.
type retryTransport struct {
	base      http.RoundTripper
	retryMax  int
	retryWait time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	retries := t.retryMax
	if !canRetry {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		resp, err := t.base.RoundTrip(req.Clone(req.Context()))
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt == retries {
			break
		}
		if !sleepContext(req.Context(), t.retryWait*time.Duration(attempt+1)) {
			break
		}
	}
	return nil, lastErr
}

// sleepContext waits for d and reports whether ctx is still live.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Download extracts files from the zip archive at url into dir. Members are
// matched by base name wherever they sit in the archive. When the server
// supports byte ranges only the needed parts of the archive are fetched;
// otherwise the whole archive is spooled to a temporary file first.
func Download(ctx context.Context, client *http.Client, url, dir string, files []DataFile) error {
	if client == nil {
		client = http.DefaultClient
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	ra, size, cleanup, err := openArchive(ctx, client, url)
	if err != nil {
		return err
	}
	defer cleanup()

	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return fmt.Errorf("read archive %s: %w", url, err)
	}
	return extract(zr, dir, files)
}

func extract(zr *zip.Reader, dir string, files []DataFile) error {
	remaining := make(map[string]bool, len(files))
	for _, f := range files {
		remaining[string(f)] = true
	}

	for _, zf := range zr.File {
		name := path.Base(zf.Name)
		if !remaining[name] || zf.FileInfo().IsDir() {
			continue
		}
		start := time.Now()
		if err := extractMember(zf, filepath.Join(dir, name)); err != nil {
			return err
		}
		slog.Debug("extracted data file",
			"file", name,
			"bytes", zf.UncompressedSize64,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		delete(remaining, name)
	}

	if len(remaining) > 0 {
		missing := make([]string, 0, len(remaining))
		for name := range remaining {
			missing = append(missing, name)
		}
		slices.Sort(missing)
		return fmt.Errorf("%w: %v", ErrMissingMember, missing)
	}
	return nil
}

func extractMember(zf *zip.File, dest string) error {
	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", zf.Name, err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", dest, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		return fmt.Errorf("extract %s: %w", zf.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("extract %s: %w", zf.Name, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("rename %s: %w", dest, err)
	}
	return nil
}

// openArchive returns a random access view of the remote archive.
func openArchive(ctx context.Context, client *http.Client, url string) (io.ReaderAt, int64, func(), error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, nil, fmt.Errorf("head %s: %w", url, err)
		}
		slog.Info("HEAD request failed, downloading whole archive", "url", url, "error", err)
		return spool(ctx, client, url)
	}
	resp.Body.Close()

	// Some hosts reject HEAD; the GET in spool decides whether the archive exists.
	if resp.StatusCode == http.StatusOK && resp.Header.Get("Accept-Ranges") == "bytes" && resp.ContentLength > 0 {
		slog.Info("reading archive with range requests", "url", url, "bytes", resp.ContentLength)
		return newRangeReader(ctx, client, url, resp.ContentLength), resp.ContentLength, func() {}, nil
	}

	slog.Info("server does not support range requests, downloading whole archive",
		"url", url,
		"head_status", resp.StatusCode,
	)
	return spool(ctx, client, url)
}

// spool downloads the archive into a temporary file.
func spool(ctx context.Context, client *http.Client, url string) (io.ReaderAt, int64, func(), error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, nil, fmt.Errorf("get %s: %w: %s", url, ErrBadStatus, resp.Status)
	}

	tmp, err := os.CreateTemp("", "legdata-*.zip")
	if err != nil {
		return nil, 0, nil, fmt.Errorf("create temp archive: %w", err)
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}

	size, err := io.Copy(tmp, resp.Body)
	if err != nil {
		cleanup()
		return nil, 0, nil, fmt.Errorf("download %s: %w", url, err)
	}
	return tmp, size, cleanup, nil
}

// rangeReader is an io.ReaderAt over a remote file that fetches fixed size
// blocks with HTTP Range requests and keeps the most recent ones.
type rangeReader struct {
	ctx    context.Context
	client *http.Client
	url    string
	size   int64

	mu     sync.Mutex
	blocks map[int64][]byte
	order  []int64
}

func newRangeReader(ctx context.Context, client *http.Client, url string, size int64) *rangeReader {
	return &rangeReader{
		ctx:    ctx,
		client: client,
		url:    url,
		size:   size,
		blocks: make(map[int64][]byte),
	}
}

// ReadAt implements io.ReaderAt.
func (r *rangeReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= r.size {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && off < r.size {
		idx := off / rangeBlockSize
		block, err := r.block(idx)
		if err != nil {
			return n, err
		}
		c := copy(p[n:], block[off-idx*rangeBlockSize:])
		n += c
		off += int64(c)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (r *rangeReader) block(idx int64) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.blocks[idx]; ok {
		return b, nil
	}

	b, err := r.fetch(idx*rangeBlockSize, min((idx+1)*rangeBlockSize, r.size)-1)
	if err != nil {
		return nil, err
	}

	if len(r.order) >= rangeCacheBlocks {
		delete(r.blocks, r.order[0])
		r.order = r.order[1:]
	}
	r.blocks[idx] = b
	r.order = append(r.order, idx)
	return b, nil
}

func (r *rangeReader) fetch(first, last int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(r.ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Range", "bytes="+strconv.FormatInt(first, 10)+"-"+strconv.FormatInt(last, 10))

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s bytes %d-%d: %w", r.url, first, last, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("get %s bytes %d-%d: %w: %s", r.url, first, last, ErrBadStatus, resp.Status)
	}

	want := last - first + 1
	b := make([]byte, want)
	if _, err := io.ReadFull(resp.Body, b); err != nil {
		return nil, fmt.Errorf("read %s bytes %d-%d: %w", r.url, first, last, err)
	}
	return b, nil
}
