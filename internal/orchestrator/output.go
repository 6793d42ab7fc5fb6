package orchestrator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/JakeFAU/timeline-scraper/internal/timeline"
)

// boundedBuffer keeps at most limit bytes and silently drops the rest so the
// worker never blocks on a full pipe.
type boundedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *boundedBuffer) Bytes() []byte { return b.buf.Bytes() }

// lineLogger forwards each line written to it as one log entry.
type lineLogger struct {
	logger  *zap.Logger
	pending []byte
	maxLine int
}

func newLineLogger(logger *zap.Logger) *lineLogger {
	return &lineLogger{logger: logger, maxLine: 64 << 10}
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.pending = append(l.pending, p...)
	for {
		i := bytes.IndexByte(l.pending, '\n')
		if i < 0 {
			break
		}
		l.emit(l.pending[:i])
		l.pending = l.pending[i+1:]
	}
	if len(l.pending) > l.maxLine {
		l.emit(l.pending)
		l.pending = nil
	}
	return len(p), nil
}

// Flush logs any trailing partial line.
func (l *lineLogger) Flush() {
	if len(l.pending) > 0 {
		l.emit(l.pending)
		l.pending = nil
	}
}

func (l *lineLogger) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}
	l.logger.Info("worker output", zap.ByteString("line", line))
}

// parseEnvelope decodes exactly one ScrapeResult from data.
func parseEnvelope(data []byte) (timeline.ScrapeResult, error) {
	var res timeline.ScrapeResult
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return res, fmt.Errorf("%w: empty output", timeline.ErrEnvelopeParse)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&res); err != nil {
		return timeline.ScrapeResult{}, fmt.Errorf("%w: %v", timeline.ErrEnvelopeParse, err)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return timeline.ScrapeResult{}, fmt.Errorf("%w: trailing data after envelope", timeline.ErrEnvelopeParse)
	}

	if res.Tweets == nil {
		res.Tweets = []timeline.Post{}
	}
	if res.TweetsCount != len(res.Tweets) {
		return timeline.ScrapeResult{}, fmt.Errorf("%w: tweetsCount %d does not match %d tweets",
			timeline.ErrEnvelopeParse, res.TweetsCount, len(res.Tweets))
	}
	if !res.Success && res.Error == "" {
		return timeline.ScrapeResult{}, fmt.Errorf("%w: failure envelope without error", timeline.ErrEnvelopeParse)
	}
	return res, nil
}
