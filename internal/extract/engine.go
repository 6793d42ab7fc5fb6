package extract

import (
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/timeline-scraper/internal/timeline"
)

// Batch is the outcome of extracting one snapshot of containers. Seen counts
// every container handed to the engine; Recent counts accepted posts inside
// the recent window.
type Batch struct {
	Posts      []timeline.Post
	Seen       int
	Recent     int
	Excluded   int
	Failed     int
	Duplicates int
}

// Engine orders containers, extracts each one and assembles a Batch.
type Engine struct {
	extractor *Extractor
	logger    *zap.Logger
}

// NewEngine builds an Engine. A nil logger disables logging.
func NewEngine(extractor *Extractor, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{extractor: extractor, logger: logger}
}

// Extract walks containers top to bottom and returns at most maxCount posts.
// A failing item is logged and skipped; it never aborts the batch. Posts
// sharing a permalink keep only the first occurrence. A maxCount of zero or
// less yields an empty batch.
func (e *Engine) Extract(containers []Container, maxCount int, now time.Time) Batch {
	batch := Batch{Posts: []timeline.Post{}, Seen: len(containers)}
	if maxCount <= 0 {
		return batch
	}

	ordered := make([]Container, len(containers))
	copy(ordered, containers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Top() < ordered[j].Top()
	})

	seen := make(map[string]struct{}, len(ordered))

	for i, c := range ordered {
		if len(batch.Posts) >= maxCount {
			break
		}

		post, reason, err := e.extractor.Extract(c, now)
		if err != nil {
			batch.Failed++
			e.logger.Debug("skipping item", zap.Int("position", i), zap.Error(err))
			if !errors.Is(err, timeline.ErrItemExtraction) {
				e.logger.Warn("unexpected extraction error", zap.Error(err))
			}
			continue
		}
		if reason != Accepted {
			batch.Excluded++
			e.logger.Debug("excluding item", zap.Int("position", i), zap.String("reason", string(reason)))
			continue
		}
		if _, dup := seen[post.Permalink]; dup {
			batch.Duplicates++
			e.logger.Debug("excluding item", zap.Int("position", i), zap.String("reason", string(ExcludedDuplicate)))
			continue
		}
		seen[post.Permalink] = struct{}{}

		post.SequenceIndex = len(batch.Posts) + 1
		if e.extractor.IsRecent(post, now) {
			batch.Recent++
		}
		batch.Posts = append(batch.Posts, post)
	}

	e.logger.Debug("batch extracted",
		zap.Int("containers", len(ordered)),
		zap.Int("posts", len(batch.Posts)),
		zap.Int("recent", batch.Recent),
		zap.Int("excluded", batch.Excluded),
		zap.Int("failed", batch.Failed),
		zap.Int("duplicates", batch.Duplicates),
	)
	return batch
}
