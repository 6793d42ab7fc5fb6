package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(policy Policy) *Engine {
	return NewEngine(NewExtractor(DefaultStrategies(), policy), zap.NewNop())
}

func requireBatchInvariants(t *testing.T, batch Batch, maxCount int) {
	t.Helper()
	require.LessOrEqual(t, len(batch.Posts), maxCount)
	seen := map[string]bool{}
	for i, p := range batch.Posts {
		require.Equal(t, i+1, p.SequenceIndex)
		require.NotEmpty(t, p.Permalink)
		require.False(t, seen[p.Permalink], "duplicate permalink %s", p.Permalink)
		seen[p.Permalink] = true
		require.Equal(t, p.MediaCount > 0, p.HasMedia)
		require.GreaterOrEqual(t, p.LikeCount, 0)
	}
}

func TestEngineFiveContainerScenario(t *testing.T) {
	t.Parallel()

	pinned := post("100", time.Hour)
	pinned.social = "Pinned"
	unlinked := post("101", 2*time.Hour)
	unlinked.href = ""

	containers := []Container{
		container(t, 0, pinned),
		container(t, 100, post("1", 3*time.Hour)),
		container(t, 200, unlinked),
		container(t, 300, post("2", 4*time.Hour)),
		container(t, 400, post("3", 5*time.Hour)),
	}

	batch := newTestEngine(DefaultPolicy()).Extract(containers, 3, testNow)
	requireBatchInvariants(t, batch, 3)
	require.Len(t, batch.Posts, 3)
	require.Equal(t, 5, batch.Seen)
	require.Equal(t, 2, batch.Excluded)
	require.Equal(t, 3, batch.Recent)

	var links []string
	for _, p := range batch.Posts {
		links = append(links, p.Permalink)
	}
	require.Equal(t, []string{
		"https://x.com/gopher/status/1",
		"https://x.com/gopher/status/2",
		"https://x.com/gopher/status/3",
	}, links)
}

func TestEngineSortsByVerticalPosition(t *testing.T) {
	t.Parallel()

	containers := []Container{
		container(t, 900, post("3", time.Hour)),
		container(t, 10, post("1", time.Hour)),
		container(t, 450, post("2", time.Hour)),
	}

	batch := newTestEngine(DefaultPolicy()).Extract(containers, 2, testNow)
	requireBatchInvariants(t, batch, 2)
	require.Len(t, batch.Posts, 2)
	require.Equal(t, "https://x.com/gopher/status/1", batch.Posts[0].Permalink)
	require.Equal(t, "https://x.com/gopher/status/2", batch.Posts[1].Permalink)
	require.Equal(t, 900.0, containers[0].Top(), "input order is left untouched")
}

func TestEngineDropsDuplicatesAndFailures(t *testing.T) {
	t.Parallel()

	fields := DefaultStrategies()
	broken := &fakeContainer{
		top:     150,
		values:  map[string]string{fields.Permalink[0].String(): "/gopher/status/9"},
		panicOn: fields.Author[0].String(),
	}
	containers := []Container{
		container(t, 100, post("1", time.Hour)),
		broken,
		container(t, 200, post("1", time.Hour)),
		container(t, 300, post("2", 10*24*time.Hour)),
	}

	batch := newTestEngine(DefaultPolicy()).Extract(containers, 10, testNow)
	requireBatchInvariants(t, batch, 10)
	require.Len(t, batch.Posts, 2)
	require.Equal(t, 1, batch.Failed)
	require.Equal(t, 1, batch.Duplicates)
	require.Equal(t, 1, batch.Recent, "10 day old post is fresh but not recent")
}

func TestEngineRecencyPolicy(t *testing.T) {
	t.Parallel()

	containers := []Container{
		container(t, 0, post("1", time.Hour)),
		container(t, 1, post("2", 90*24*time.Hour)),
	}

	on := newTestEngine(DefaultPolicy()).Extract(containers, 5, testNow)
	require.Len(t, on.Posts, 1)
	require.Equal(t, 1, on.Excluded)

	policy := DefaultPolicy()
	policy.RecencyFilter = false
	off := newTestEngine(policy).Extract(containers, 5, testNow)
	require.Len(t, off.Posts, 2)
	require.Zero(t, off.Excluded)
	require.Equal(t, "https://x.com/gopher/status/2", off.Posts[1].Permalink)
}

func TestEngineEmptyInputs(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(DefaultPolicy())

	batch := engine.Extract(nil, 5, testNow)
	require.NotNil(t, batch.Posts)
	require.Empty(t, batch.Posts)
	require.Zero(t, batch.Seen)

	batch = engine.Extract([]Container{container(t, 0, post("1", time.Hour))}, 0, testNow)
	require.Empty(t, batch.Posts)
	require.Equal(t, 1, batch.Seen)
}

func TestEngineIsDeterministic(t *testing.T) {
	t.Parallel()

	containers := []Container{
		container(t, 5, post("5", time.Hour)),
		container(t, 5, post("6", time.Hour)),
		container(t, 1, post("1", time.Hour)),
	}
	engine := newTestEngine(DefaultPolicy())

	first := engine.Extract(containers, 3, testNow)
	second := engine.Extract(containers, 3, testNow)
	require.Equal(t, first, second)
	require.Equal(t, "https://x.com/gopher/status/5", first.Posts[1].Permalink, "ties keep input order")
}
