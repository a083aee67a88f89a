package record

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextSegmentTerminators(t *testing.T) {
	cases := []struct {
		name string
		data string
		want int
	}{
		{"lf", "hello\nworld", 6},
		{"cr", "hello\rworld", 6},
		{"crlf", "hello\r\nworld", 7},
		{"lfcr", "hello\n\rworld", 7},
		{"no terminator yet", "hello", 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, TextSegment([]byte(c.data)))
		})
	}
}

func TestTrimTerminator(t *testing.T) {
	require.Equal(t, "hello", string(TrimTerminator([]byte("hello\r\n"))))
	require.Equal(t, "hello", string(TrimTerminator([]byte("hello\n"))))
	require.Equal(t, "hello", string(TrimTerminator([]byte("hello"))))
}

func TestTweetRoundTrip(t *testing.T) {
	tw := Tweet{User: 7, Words: []uint32{1, 2, 300, 4}}
	buf := EncodeTweet(nil, tw)

	n := TweetSegment(buf)
	require.Equal(t, len(buf), n)

	got, m := DecodeTweet(buf)
	require.Equal(t, len(buf), m)
	require.Equal(t, tw, got)
}

func TestTweetSegmentIncomplete(t *testing.T) {
	tw := Tweet{User: 1, Words: []uint32{10, 20, 30}}
	buf := EncodeTweet(nil, tw)
	require.Zero(t, TweetSegment(buf[:len(buf)-1]))
}

func TestTweetParamRoundTrip(t *testing.T) {
	p := TweetParam{Topic: 3, WordTags: []bool{true, false, true, true, false, false, false, false, true}}
	buf := EncodeTweetParam(nil, p)

	n := TweetParamSegment(buf)
	require.Equal(t, len(buf), n)

	got, m := DecodeTweetParam(buf)
	require.Equal(t, len(buf), m)
	require.Equal(t, p, got)
}

func TestUserParamRoundTrip(t *testing.T) {
	const topicCount = 5
	u := UserParam{User: 42, Topics: []uint64{0, 3, 0, 0, 1}}
	buf := EncodeUserParam(nil, u)

	seg := UserParamSegmentFor(topicCount)
	require.Equal(t, len(buf), seg(buf))

	got, m := DecodeUserParam(buf, topicCount)
	require.Equal(t, len(buf), m)
	require.Equal(t, u, got)
}

func TestTopicParamRoundTrip(t *testing.T) {
	const wordCount = 6
	tp := TopicParam{Words: []uint64{0, 5, 0, 0, 9, 0}}
	buf := EncodeTopicParam(nil, tp)

	seg := TopicParamSegmentFor(wordCount)
	require.Equal(t, len(buf), seg(buf))

	got, m := DecodeTopicParam(buf, wordCount)
	require.Equal(t, len(buf), m)
	require.Equal(t, tp, got)
}

func TestTweetIDRoundTrip(t *testing.T) {
	buf := EncodeTweetID(nil, 1<<40)
	n := TweetIDSegment(buf)
	require.Equal(t, len(buf), n)

	got, m := DecodeTweetID(buf)
	require.Equal(t, len(buf), m)
	require.EqualValues(t, 1<<40, got)
}

func TestHyperParamsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hyper.txt")

	h := HyperParams{TopicCount: 4, WordCount: 1000, AlphaM1: 0.01, BetaM1: 0.02, BetaBgM1: 0.03, GammaM1: 0.9}
	require.NoError(t, SaveHyperParams(path, h))

	got, err := LoadHyperParams(path)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestSummaryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "summary.txt")

	s := Summary{WordCount: 100, UserCount: 10, ValidTweetNum: 9, TotalTweetNum: 12}
	require.NoError(t, SaveSummary(path, s))

	got, err := LoadSummary(path)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestLoadHyperParamsMissingKeyFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hyper.txt")
	require.NoError(t, os.WriteFile(path, []byte("topic=4\n"), 0o644))

	_, err := LoadHyperParams(path)
	require.Error(t, err)
}
