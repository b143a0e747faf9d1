package source

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/camarohq/hunter/internal/model"
)

// ErrNoFeedSucceeded is returned by an adapter when every one of its feeds failed.
var ErrNoFeedSucceeded = eris.New("source: no feed succeeded")

// Kind identifies how an adapter parses its feeds.
type Kind string

// Supported adapter kinds.
const (
	KindRSS  Kind = "rss"
	KindHTML Kind = "html"
)

// Option configures an adapter built by NewRSSAdapter or NewHTMLAdapter.
type Option func(*options)

type options struct {
	match func(text string) bool
}

// WithMatcher sets the relevance predicate a StopAfterHit source uses to
// decide that a feed produced a hit. It never removes candidates.
func WithMatcher(match func(text string) bool) Option {
	return func(o *options) { o.match = match }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Adapter fetches raw listing candidates from one marketplace. Candidates
// carry the adapter's location and auction defaults already applied.
type Adapter interface {
	Name() string
	Kind() Kind
	Fetch(ctx context.Context) ([]model.RawCandidate, error)
}
