package source

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/camarohq/hunter/internal/model"
)

type feedFunc func(ctx context.Context, feed Feed) ([]model.RawCandidate, error)

// fetchFeeds runs fetch over every feed in declared order. A failing feed is
// logged and skipped; the call fails only when no feed succeeded. A
// StopAfterHit source stops after the first feed holding a candidate that
// match accepts, or any candidate when match is nil.
func fetchFeeds(ctx context.Context, d Definition, match func(string) bool, fetch feedFunc) ([]model.RawCandidate, error) {
	log := zap.L().With(zap.String("component", "source"), zap.String("source", d.Name))

	var (
		out       []model.RawCandidate
		succeeded int
		lastErr   error
	)
	for _, feed := range d.Feeds {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		start := time.Now()
		batch, err := fetch(ctx, feed)
		if err != nil {
			log.Warn("feed failed",
				zap.String("url", feed.URL),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		succeeded++
		log.Debug("feed fetched", zap.String("url", feed.URL), zap.Int("candidates", len(batch)))
		out = append(out, batch...)

		if d.StopAfterHit && hasHit(batch, match) {
			break
		}
	}

	if succeeded == 0 {
		return nil, &FeedsError{Source: d.Name, Last: lastErr}
	}
	return out, nil
}

func hasHit(batch []model.RawCandidate, match func(string) bool) bool {
	if match == nil {
		return len(batch) > 0
	}
	for _, c := range batch {
		text := c.MatchText
		if text == "" {
			text = c.Title
		}
		if match(text) {
			return true
		}
	}
	return false
}

// FeedsError reports that every feed of a source failed. It matches
// ErrNoFeedSucceeded and unwraps to the last feed error, so callers can tell
// a blocked source from a flaky one.
type FeedsError struct {
	Source string
	Last   error
}

func (e *FeedsError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("%s: %s", e.Source, ErrNoFeedSucceeded.Error())
	}
	return fmt.Sprintf("%s: %s: %v", e.Source, ErrNoFeedSucceeded.Error(), e.Last)
}

func (e *FeedsError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrNoFeedSucceeded}
	}
	return []error{ErrNoFeedSucceeded, e.Last}
}

// feedLocation picks the location for a candidate: the feed's label when it
// overrides, else the item's own, else the feed's, else the source default.
func feedLocation(d Definition, feed Feed, itemLocation string) string {
	if d.OverrideLocation && feed.Location != "" {
		return feed.Location
	}
	for _, v := range []string{itemLocation, feed.Location, d.Location} {
		if v != "" {
			return v
		}
	}
	return ""
}
