package train

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/twlda/twlda/internal/gibbs"
	"github.com/twlda/twlda/internal/record"
)

func writeTweetBuffer(t *testing.T, tweets []record.Tweet) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "buffer.bin")
	var buf []byte
	for _, tw := range tweets {
		buf = record.EncodeTweet(buf, tw)
	}
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func smallHyper() gibbs.Hyper {
	return gibbs.Hyper{
		TopicCount: 2,
		WordCount:  4,
		AlphaM1:    0.1,
		BetaM1:     0.1,
		BetaBgM1:   0.1,
		GammaM1:    0.1,
	}
}

func TestInitializeProducesValidCountsAndParams(t *testing.T) {
	tweets := []record.Tweet{
		{User: 0, Words: []uint32{0, 1}},
		{User: 0, Words: []uint32{1, 2}},
		{User: 1, Words: []uint32{2, 3}},
	}
	tweetPath := writeTweetBuffer(t, tweets)
	dir := filepath.Dir(tweetPath)

	m := NewModel(smallHyper(), 2)
	ckpt := Checkpoint{
		TweetParamPath: filepath.Join(dir, "init.tweet-param.bin"),
		UserParamPath:  filepath.Join(dir, "init.user-param.bin"),
	}
	require.NoError(t, m.Initialize(Streams{
		TweetPath:         tweetPath,
		OutTweetParamPath: ckpt.TweetParamPath,
		OutUserParamPath:  ckpt.UserParamPath,
	}, 7))

	require.NoError(t, m.Counts.CheckInvariants())
	require.EqualValues(t, 6, m.Counts.ForegroundTotal()+m.Counts.BackgroundTotal())

	info, err := os.Stat(ckpt.UserParamPath)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestRunIterationPreservesInvariantsAndWordCounts(t *testing.T) {
	tweets := []record.Tweet{
		{User: 0, Words: []uint32{0, 1, 2}},
		{User: 0, Words: []uint32{1, 2}},
		{User: 1, Words: []uint32{2, 3}},
		{User: 1, Words: []uint32{0, 3}},
	}
	tweetPath := writeTweetBuffer(t, tweets)
	dir := filepath.Dir(tweetPath)

	m := NewModel(smallHyper(), 2)
	init := Checkpoint{
		TweetParamPath: filepath.Join(dir, "init.tweet-param.bin"),
		UserParamPath:  filepath.Join(dir, "init.user-param.bin"),
	}
	require.NoError(t, m.Initialize(Streams{
		TweetPath:         tweetPath,
		OutTweetParamPath: init.TweetParamPath,
		OutUserParamPath:  init.UserParamPath,
	}, 7))

	totalWords := int64(0)
	for _, tw := range tweets {
		totalWords += int64(len(tw.Words))
	}
	require.Equal(t, totalWords, m.Counts.ForegroundTotal()+m.Counts.BackgroundTotal())

	next := Checkpoint{
		TweetParamPath: filepath.Join(dir, "next.tweet-param.bin"),
		UserParamPath:  filepath.Join(dir, "next.user-param.bin"),
	}
	stat, err := m.RunIteration(Streams{
		TweetPath:           tweetPath,
		PriorTweetParamPath: init.TweetParamPath,
		PriorUserParamPath:  init.UserParamPath,
		OutTweetParamPath:   next.TweetParamPath,
		OutUserParamPath:    next.UserParamPath,
	}, DefaultBatchBytes)
	require.NoError(t, err)

	require.NoError(t, m.Counts.CheckInvariants())
	require.Equal(t, totalWords, m.Counts.ForegroundTotal()+m.Counts.BackgroundTotal())
	require.Equal(t, totalWords, stat.WordsProcessed)
	require.GreaterOrEqual(t, stat.UpdateRate(), 0.0)
	require.LessOrEqual(t, stat.UpdateRate(), 1.0)
}

func TestOrchestratorZeroIterationsIsNoOp(t *testing.T) {
	tweets := []record.Tweet{
		{User: 0, Words: []uint32{0, 1}},
		{User: 1, Words: []uint32{2, 3}},
	}
	tweetPath := writeTweetBuffer(t, tweets)
	dir := filepath.Dir(tweetPath)

	m := NewModel(smallHyper(), 1)
	init := Checkpoint{
		TweetParamPath: filepath.Join(dir, "init.tweet-param.bin"),
		UserParamPath:  filepath.Join(dir, "init.user-param.bin"),
	}
	require.NoError(t, m.Initialize(Streams{
		TweetPath:         tweetPath,
		OutTweetParamPath: init.TweetParamPath,
		OutUserParamPath:  init.UserParamPath,
	}, 1))

	before, err := os.ReadFile(init.UserParamPath)
	require.NoError(t, err)

	o := NewOrchestrator(m, tweetPath, dir, DefaultBatchBytes)
	final := Checkpoint{
		TweetParamPath: filepath.Join(dir, "final.tweet-param.bin"),
		UserParamPath:  filepath.Join(dir, "final.user-param.bin"),
	}
	_, err = o.Run(0, init, final, nil)
	require.NoError(t, err)

	after, err := os.ReadFile(final.UserParamPath)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestOrchestratorMultipleIterationsRotatesThroughScratchSlots(t *testing.T) {
	tweets := []record.Tweet{
		{User: 0, Words: []uint32{0, 1, 2}},
		{User: 1, Words: []uint32{2, 3}},
		{User: 2, Words: []uint32{0, 3}},
	}
	tweetPath := writeTweetBuffer(t, tweets)
	dir := filepath.Dir(tweetPath)

	m := NewModel(smallHyper(), 2)
	init := Checkpoint{
		TweetParamPath: filepath.Join(dir, "init.tweet-param.bin"),
		UserParamPath:  filepath.Join(dir, "init.user-param.bin"),
	}
	require.NoError(t, m.Initialize(Streams{
		TweetPath:         tweetPath,
		OutTweetParamPath: init.TweetParamPath,
		OutUserParamPath:  init.UserParamPath,
	}, 3))

	o := NewOrchestrator(m, tweetPath, dir, DefaultBatchBytes)
	final := Checkpoint{
		TweetParamPath: filepath.Join(dir, "final.tweet-param.bin"),
		UserParamPath:  filepath.Join(dir, "final.user-param.bin"),
	}

	seen := 0
	_, err := o.Run(4, init, final, func(i int, stat IterationStats) { seen++ })
	require.NoError(t, err)
	require.Equal(t, 4, seen)
	require.NoError(t, m.Counts.CheckInvariants())

	_, err = os.Stat(final.TweetParamPath)
	require.NoError(t, err)
	_, err = os.Stat(final.UserParamPath)
	require.NoError(t, err)
}

func TestSaveTopicParamsWritesOneRecordPerTopicIncludingBackground(t *testing.T) {
	tweets := []record.Tweet{
		{User: 0, Words: []uint32{0, 1}},
	}
	tweetPath := writeTweetBuffer(t, tweets)
	dir := filepath.Dir(tweetPath)

	m := NewModel(smallHyper(), 1)
	init := Checkpoint{
		TweetParamPath: filepath.Join(dir, "init.tweet-param.bin"),
		UserParamPath:  filepath.Join(dir, "init.user-param.bin"),
	}
	require.NoError(t, m.Initialize(Streams{
		TweetPath:         tweetPath,
		OutTweetParamPath: init.TweetParamPath,
		OutUserParamPath:  init.UserParamPath,
	}, 2))

	path := filepath.Join(dir, "topic-param.bin")
	require.NoError(t, m.SaveTopicParams(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	off := 0
	count := 0
	for off < len(data) {
		n := record.TopicParamSegmentFor(m.Hyper.WordCount)(data[off:])
		require.Greater(t, n, 0)
		off += n
		count++
	}
	require.Equal(t, m.Hyper.TopicCount+1, count)
}
