package source

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

// stubFetcher serves canned bodies keyed by URL and records request order.
type stubFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	calls  []string
}

func newStubFetcher(bodies map[string]string) *stubFetcher {
	return &stubFetcher{bodies: bodies}
}

func (s *stubFetcher) Download(_ context.Context, url string) (io.ReadCloser, error) {
	s.mu.Lock()
	s.calls = append(s.calls, url)
	s.mu.Unlock()

	body, ok := s.bodies[url]
	if !ok {
		return nil, eris.Errorf("http 404 from %s", url)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}
