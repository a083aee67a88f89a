package makebuffer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/twlda/twlda/internal/record"
	"github.com/twlda/twlda/internal/segment"
)

func writeInput(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "input.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readAllTweets(t *testing.T, path string) []record.Tweet {
	t.Helper()
	r, err := segment.Open(path, record.TweetSegment)
	require.NoError(t, err)
	defer r.Close()

	var tweets []record.Tweet
	for {
		item := r.Next(false)
		if item == nil {
			break
		}
		tw, n := record.DecodeTweet(item)
		require.Equal(t, len(item), n)
		tweets = append(tweets, tw)
	}
	return tweets
}

func outPaths(dir string) Options {
	return Options{
		BufferPath:  filepath.Join(dir, "buffer.bin"),
		UserPath:    filepath.Join(dir, "user.txt"),
		WordPath:    filepath.Join(dir, "word.txt"),
		TweetIDPath: filepath.Join(dir, "id.bin"),
		SummaryPath: filepath.Join(dir, "summary.txt"),
	}
}

// TestEndToEndBuildsExpectedCounts checks that corpus
// "a\tx y\nb\tx\na\ty y" produces two users and tweets whose total word
// count is 4.
func TestEndToEndBuildsExpectedCounts(t *testing.T) {
	input := writeInput(t, "a\tx y\nb\tx\na\ty y\n")
	dir := t.TempDir()
	opts := outPaths(dir)
	opts.InputPath = input

	result, err := Build(opts)
	require.NoError(t, err)
	require.Equal(t, 2, result.UserCount)
	require.Equal(t, 2, result.WordCount) // "x", "y"
	require.Equal(t, 3, result.Summary.ValidTweetNum)
	require.Equal(t, 3, result.Summary.TotalTweetNum)

	tweets := readAllTweets(t, opts.BufferPath)
	require.Len(t, tweets, 3)

	total := 0
	for _, tw := range tweets {
		total += len(tw.Words)
	}
	require.Equal(t, 4, total)
}

// TestStopwordOnlyTweetIsInvalid checks that a tweet reduced to nothing by
// stopword filtering is dropped from the valid-tweet count.
func TestStopwordOnlyTweetIsInvalid(t *testing.T) {
	input := writeInput(t, "a\tthe a an\na\thello world\n")
	dir := t.TempDir()
	stopPath := filepath.Join(dir, "stop.txt")
	require.NoError(t, os.WriteFile(stopPath, []byte("the\na\nan\n"), 0o644))

	opts := outPaths(dir)
	opts.InputPath = input
	opts.StopwordPath = stopPath

	result, err := Build(opts)
	require.NoError(t, err)
	require.Less(t, result.Summary.ValidTweetNum, result.Summary.TotalTweetNum)
	require.Equal(t, 1, result.Summary.ValidTweetNum)
}

// TestMinUserFreqDropsSingleTweetUsers checks that a user below the minimum
// tweet-frequency cutoff is excluded from the dictionary entirely.
func TestMinUserFreqDropsSingleTweetUsers(t *testing.T) {
	input := writeInput(t, "a\tx y\nb\tx\na\ty y\n")
	dir := t.TempDir()
	opts := outPaths(dir)
	opts.InputPath = input
	opts.MinUserFreq = 2

	result, err := Build(opts)
	require.NoError(t, err)
	require.Equal(t, 1, result.UserCount, "user b has a single tweet and should be dropped")
	require.Equal(t, 2, result.Summary.ValidTweetNum, "b's tweet should be reported invalid")
	require.Equal(t, 3, result.Summary.TotalTweetNum)
}

func TestMinWordFreqDropsRareWords(t *testing.T) {
	input := writeInput(t, "a\tx x x\nb\tx y\n")
	dir := t.TempDir()
	opts := outPaths(dir)
	opts.InputPath = input
	opts.MinWordFreq = 2

	result, err := Build(opts)
	require.NoError(t, err)
	require.Equal(t, 1, result.WordCount, "y occurs once and should be filtered")
}
