// Package fetch reads referenced files from the local checkout or from
// raw.githubusercontent.com, memoizing every read for the lifetime of one
// expansion run. Remote fetches are deliberately not retried: a missing
// candidate file is an expected probe result, and anything else should
// fail the run loudly.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/tombee/stitch/internal/log"
	"github.com/tombee/stitch/pkg/reference"
)

const maxFileSize = 4 << 20 // a workflow file larger than 4MiB is a bug

// Fetcher reads referenced files with a write-once cache keyed by the
// reference value, so repeated includes of the same file hit the disk or
// the network exactly once.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger

	mu    sync.Mutex
	cache map[reference.Reference]result
}

type result struct {
	data string
	err  error
}

// New creates a Fetcher. The client is only used for remote references.
func New(client *http.Client, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client: client,
		logger: log.WithComponent(logger, "fetch"),
		cache:  make(map[reference.Reference]result),
	}
}

// Read returns the contents of the referenced file. Errors are cached like
// successes: probing the same missing candidate twice reports the same
// error without another lookup.
func (f *Fetcher) Read(ctx context.Context, ref reference.Reference) (string, error) {
	f.mu.Lock()
	if r, ok := f.cache[ref]; ok {
		f.mu.Unlock()
		return r.data, r.err
	}
	f.mu.Unlock()

	var r result
	switch t := ref.(type) {
	case reference.Local:
		r.data, r.err = f.readLocal(t)
	case reference.Remote:
		r.data, r.err = f.readRemote(ctx, t)
	default:
		r.err = fmt.Errorf("unsupported reference type %T", ref)
	}

	f.mu.Lock()
	if cached, ok := f.cache[ref]; ok {
		r = cached
	} else {
		f.cache[ref] = r
	}
	f.mu.Unlock()

	return r.data, r.err
}

func (f *Fetcher) readLocal(ref reference.Local) (string, error) {
	name := filepath.Join(ref.Root, filepath.FromSlash(ref.Path))
	data, err := os.ReadFile(name)
	if err != nil {
		return "", err
	}
	f.logger.Debug("read local file", "path", name, "bytes", len(data))
	return string(data), nil
}

func (f *Fetcher) readRemote(ctx context.Context, ref reference.Remote) (string, error) {
	if f.client == nil {
		return "", fmt.Errorf("no HTTP client configured for remote reference %s", ref)
	}

	url := ref.RawURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("remote fetch failed", "url", url, log.Error(err))
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("GET %s: %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize))
	if err != nil {
		return "", err
	}
	f.logger.Debug("fetched remote file", "url", url, "bytes", len(data))
	return string(data), nil
}
