// Package record defines the binary record layouts for tweets,
// tweet-params, user-params, topic-params and tweet-ids, each as a
// segment.Func paired with an Encode/Decode function, plus the text
// key=value codec for HyperParams and Summary.
package record

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/twlda/twlda/internal/varint"
)

// TextSegment returns the length of the next raw input-text line, up to and
// including the next \r, \n, \r\n, or \n\r terminator. It returns 0 if data
// does not yet contain a terminated line, including at end of file: a final
// unterminated line is never yielded.
func TextSegment(data []byte) int {
	n := 0
	for n < len(data) && data[n] != '\r' && data[n] != '\n' {
		n++
	}
	if n >= len(data) {
		return 0
	}
	tail := data[n]
	if n+1 < len(data) && data[n+1] != tail && (data[n+1] == '\r' || data[n+1] == '\n') {
		n++
	}
	return n + 1
}

// TrimTerminator strips a trailing \r, \n, \r\n, or \n\r from a line
// returned by TextSegment.
func TrimTerminator(line []byte) []byte {
	n := len(line)
	for n > 0 && (line[n-1] == '\r' || line[n-1] == '\n') {
		n--
	}
	return line[:n]
}

// Tweet is one immutable document: the author's user id and the sequence of
// word ids making up the tweet.
type Tweet struct {
	User  uint32
	Words []uint32
}

// TweetSegment returns the length of the next tweet record:
// varint(user), varint(wc), wc*varint(word).
func TweetSegment(data []byte) int {
	off, ok := skipVarint(data, 0)
	if !ok {
		return 0
	}
	wc, n := varint.Decode(data[off:])
	if n == 0 {
		return 0
	}
	off += n
	for i := uint64(0); i < wc; i++ {
		var ok bool
		off, ok = skipVarint(data, off)
		if !ok {
			return 0
		}
	}
	return off
}

// EncodeTweet appends the binary encoding of t to dst.
func EncodeTweet(dst []byte, t Tweet) []byte {
	dst = varint.Encode(dst, uint64(t.User))
	dst = varint.Encode(dst, uint64(len(t.Words)))
	for _, w := range t.Words {
		dst = varint.Encode(dst, uint64(w))
	}
	return dst
}

// DecodeTweet decodes a tweet record, returning the number of bytes
// consumed, or 0 on a malformed record.
func DecodeTweet(data []byte) (Tweet, int) {
	user, n := varint.DecodeInto(data, 32)
	if n == 0 {
		return Tweet{}, 0
	}
	off := n
	wc, n := varint.Decode(data[off:])
	if n == 0 {
		return Tweet{}, 0
	}
	off += n

	words := make([]uint32, wc)
	for i := range words {
		w, n := varint.DecodeInto(data[off:], 32)
		if n == 0 {
			return Tweet{}, 0
		}
		off += n
		words[i] = uint32(w)
	}
	return Tweet{User: uint32(user), Words: words}, off
}

// TweetParam is the per-iteration assignment for one tweet: its topic and a
// per-word foreground(1)/background(0) tag bitmap, packed LSB-first 8 per
// byte.
type TweetParam struct {
	Topic    uint32
	WordTags []bool
}

// TweetParamSegment returns the length of the next tweet-param record:
// varint(topic), varint(wc), ceil(wc/8) tag bytes.
func TweetParamSegment(data []byte) int {
	off, ok := skipVarint(data, 0)
	if !ok {
		return 0
	}
	wc, n := varint.Decode(data[off:])
	if n == 0 {
		return 0
	}
	off += n
	tagBytes := int((wc + 7) / 8)
	if off+tagBytes > len(data) {
		return 0
	}
	return off + tagBytes
}

// EncodeTweetParam appends the binary encoding of p to dst.
func EncodeTweetParam(dst []byte, p TweetParam) []byte {
	dst = varint.Encode(dst, uint64(p.Topic))
	dst = varint.Encode(dst, uint64(len(p.WordTags)))
	for i := 0; i < len(p.WordTags); i += 8 {
		var b byte
		for j := 0; j < 8 && i+j < len(p.WordTags); j++ {
			if p.WordTags[i+j] {
				b |= 1 << uint(j)
			}
		}
		dst = append(dst, b)
	}
	return dst
}

// DecodeTweetParam decodes a tweet-param record.
func DecodeTweetParam(data []byte) (TweetParam, int) {
	topic, n := varint.DecodeInto(data, 32)
	if n == 0 {
		return TweetParam{}, 0
	}
	off := n
	wc, n := varint.Decode(data[off:])
	if n == 0 {
		return TweetParam{}, 0
	}
	off += n

	tags := make([]bool, wc)
	for i := 0; i < int(wc); i += 8 {
		if off >= len(data) {
			return TweetParam{}, 0
		}
		b := data[off]
		off++
		for j := 0; j < 8 && i+j < int(wc); j++ {
			tags[i+j] = b&(1<<uint(j)) != 0
		}
	}
	return TweetParam{Topic: uint32(topic), WordTags: tags}, off
}

// UserParam is one user's sparse topic-count vector, length T.
type UserParam struct {
	User   uint32
	Topics []uint64 // length T
}

// UserParamSegmentFor returns a segment.Func bound to a fixed topic count T,
// since the sparse array's length is a hyperparameter, not self-describing.
func UserParamSegmentFor(topicCount int) func(data []byte) int {
	return func(data []byte) int {
		off, ok := skipVarint(data, 0)
		if !ok {
			return 0
		}
		n := sparseSegmentLen(data[off:], topicCount)
		if n == 0 {
			return 0
		}
		return off + n
	}
}

// EncodeUserParam appends the binary encoding of u to dst.
func EncodeUserParam(dst []byte, u UserParam) []byte {
	dst = varint.Encode(dst, uint64(u.User))
	dst = varint.EncodeSparse(dst, u.Topics)
	return dst
}

// DecodeUserParam decodes a user-param record for a model with topicCount
// topics.
func DecodeUserParam(data []byte, topicCount int) (UserParam, int) {
	user, n := varint.DecodeInto(data, 32)
	if n == 0 {
		return UserParam{}, 0
	}
	off := n
	topics, m := varint.DecodeSparse(data[off:], topicCount)
	if m == 0 {
		return UserParam{}, 0
	}
	return UserParam{User: uint32(user), Topics: topics}, off + m
}

// TopicParam is one topic's sparse word-count vector, length W. Topic index
// T (equal to the hyperparameter topic count) denotes the background
// pseudo-topic.
type TopicParam struct {
	Words []uint64 // length W
}

// TopicParamSegmentFor returns a segment.Func bound to a fixed vocabulary
// size W.
func TopicParamSegmentFor(wordCount int) func(data []byte) int {
	return func(data []byte) int {
		return sparseSegmentLen(data, wordCount)
	}
}

// EncodeTopicParam appends the binary encoding of t to dst.
func EncodeTopicParam(dst []byte, t TopicParam) []byte {
	return varint.EncodeSparse(dst, t.Words)
}

// DecodeTopicParam decodes a topic-param record for a vocabulary of size W.
func DecodeTopicParam(data []byte, wordCount int) (TopicParam, int) {
	words, n := varint.DecodeSparse(data, wordCount)
	if n == 0 {
		return TopicParam{}, 0
	}
	return TopicParam{Words: words}, n
}

// TweetIDSegment returns the length of the next tweet-id record: a single
// varint-64.
func TweetIDSegment(data []byte) int {
	_, n := varint.Decode(data)
	return n
}

// EncodeTweetID appends a 64-bit tweet id to dst.
func EncodeTweetID(dst []byte, id uint64) []byte {
	return varint.Encode(dst, id)
}

// DecodeTweetID decodes a tweet id.
func DecodeTweetID(data []byte) (uint64, int) {
	return varint.Decode(data)
}

// skipVarint advances off past one varint in data, reporting failure if data
// runs out mid-varint.
func skipVarint(data []byte, off int) (int, bool) {
	if off > len(data) {
		return 0, false
	}
	_, n := varint.Decode(data[off:])
	if n == 0 {
		return 0, false
	}
	return off + n, true
}

// sparseSegmentLen returns the byte length of a sparse array encoding of the
// given length, or 0 if data does not yet hold a complete one.
func sparseSegmentLen(data []byte, length int) int {
	count, n := varint.Decode(data)
	if n == 0 {
		return 0
	}
	off := n
	index := 0
	for i := uint64(0); i < count; i++ {
		delta, m := varint.Decode(data[off:])
		if m == 0 {
			return 0
		}
		off += m
		index += int(delta)
		if index >= length {
			return 0
		}
		_, m = varint.Decode(data[off:])
		if m == 0 {
			return 0
		}
		off += m
	}
	return off
}

// HyperParams holds the model's structural and Dirichlet-prior
// hyperparameters, persisted as key=value text so training can resume
// without re-specifying them on the command line.
type HyperParams struct {
	TopicCount int
	WordCount  int
	AlphaM1    float64
	BetaM1     float64
	BetaBgM1   float64
	GammaM1    float64
}

// Summary is written once by make-buffer: vocabulary size, user count, and
// valid/total tweet counts (tweets dropped for being stopword-only or
// belonging to a too-rare user are invalid).
type Summary struct {
	WordCount     int
	UserCount     int
	ValidTweetNum int
	TotalTweetNum int
}

// SaveHyperParams writes h as key=value lines.
func SaveHyperParams(path string, h HyperParams) error {
	return saveKV(path, []kv{
		{"topic", strconv.Itoa(h.TopicCount)},
		{"word", strconv.Itoa(h.WordCount)},
		{"alpha_m1", formatFloat(h.AlphaM1)},
		{"beta_m1", formatFloat(h.BetaM1)},
		{"beta_bg_m1", formatFloat(h.BetaBgM1)},
		{"gamma_m1", formatFloat(h.GammaM1)},
	})
}

// LoadHyperParams loads a key=value hyperparameter file.
func LoadHyperParams(path string) (HyperParams, error) {
	m, err := loadKV(path)
	if err != nil {
		return HyperParams{}, err
	}
	var h HyperParams
	var err2 error
	h.TopicCount, err2 = intField(m, "topic", err2)
	h.WordCount, err2 = intField(m, "word", err2)
	h.AlphaM1, err2 = floatField(m, "alpha_m1", err2)
	h.BetaM1, err2 = floatField(m, "beta_m1", err2)
	h.BetaBgM1, err2 = floatField(m, "beta_bg_m1", err2)
	h.GammaM1, err2 = floatField(m, "gamma_m1", err2)
	if err2 != nil {
		return HyperParams{}, fmt.Errorf("record: load hyperparams %s: %w", path, err2)
	}
	return h, nil
}

// SaveSummary writes s as key=value lines.
func SaveSummary(path string, s Summary) error {
	return saveKV(path, []kv{
		{"word", strconv.Itoa(s.WordCount)},
		{"user", strconv.Itoa(s.UserCount)},
		{"valid_tweet", strconv.Itoa(s.ValidTweetNum)},
		{"total_tweet", strconv.Itoa(s.TotalTweetNum)},
	})
}

// LoadSummary loads a key=value summary file.
func LoadSummary(path string) (Summary, error) {
	m, err := loadKV(path)
	if err != nil {
		return Summary{}, err
	}
	var s Summary
	var err2 error
	s.WordCount, err2 = intField(m, "word", err2)
	s.UserCount, err2 = intField(m, "user", err2)
	s.ValidTweetNum, err2 = intField(m, "valid_tweet", err2)
	s.TotalTweetNum, err2 = intField(m, "total_tweet", err2)
	if err2 != nil {
		return Summary{}, fmt.Errorf("record: load summary %s: %w", path, err2)
	}
	return s, nil
}

type kv struct {
	key, value string
}

func saveKV(path string, pairs []kv) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("record: create %s: %w", path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, p := range pairs {
		if _, err := fmt.Fprintf(w, "%s=%s\n", p.key, p.value); err != nil {
			return err
		}
	}
	return w.Flush()
}

func loadKV(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("record: open %s: %w", path, err)
	}
	defer f.Close()

	m := make(map[string]string)
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("record: malformed line %q in %s", line, path)
		}
		m[key] = value
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func intField(m map[string]string, key string, prevErr error) (int, error) {
	if prevErr != nil {
		return 0, prevErr
	}
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("missing key %q", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("key %q: %w", key, err)
	}
	return n, nil
}

func floatField(m map[string]string, key string, prevErr error) (float64, error) {
	if prevErr != nil {
		return 0, prevErr
	}
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("missing key %q", key)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("key %q: %w", key, err)
	}
	return f, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
