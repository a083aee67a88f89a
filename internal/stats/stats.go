// Package stats holds the sufficient-statistic count tensors that are the
// model's state: topic x word counts, per-topic totals, global
// foreground/background totals, and per-user topic counts. Mutation happens
// only in the orchestrator's reconciliation phase — these types carry
// no locking of their own: workers only ever read them during a batch.
package stats

import "fmt"

// Counts holds the (T+1) x W topic-word table and its derived totals. The
// background pseudo-topic is row index TopicCount.

type Counts struct {
	TopicCount int
	WordCount  int

	topicWord [][]int64 // [0..T], each length W; index T is background
	topicAll  []int64   // [0..T]
	total     [2]int64  // [0]=background words, [1]=foreground words
}

// NewCounts allocates a zeroed count table for a model with topicCount
// topics (plus the implicit background pseudo-topic) over a vocabulary of
// wordCount words.
func NewCounts(topicCount, wordCount int) *Counts {
	tw := make([][]int64, topicCount+1)
	for i := range tw {
		tw[i] = make([]int64, wordCount)
	}
	return &Counts{
		TopicCount: topicCount,
		WordCount:  wordCount,
		topicWord:  tw,
		topicAll:   make([]int64, topicCount+1),
	}
}

// backgroundIndex returns the row used for the background pseudo-topic.
func (c *Counts) backgroundIndex() int {
	return c.TopicCount
}

// Word returns n_tw[topic][word]. Pass c.TopicCount for the background row.
func (c *Counts) Word(topic, word int) int64 {
	return c.topicWord[topic][word]
}

// TopicTotal returns n_t[topic] = sum_w n_tw[topic][w].
func (c *Counts) TopicTotal(topic int) int64 {
	return c.topicAll[topic]
}

// ForegroundTotal returns n_total[1], the count of words currently tagged to
// some real topic (not background).
func (c *Counts) ForegroundTotal() int64 {
	return c.total[1]
}

// BackgroundTotal returns n_total[0], the count of words currently tagged
// background.
func (c *Counts) BackgroundTotal() int64 {
	return c.total[0]
}

// Inc increments the (topic, word) cell and its derived totals. topic ==
// c.TopicCount denotes the background pseudo-topic.
func (c *Counts) Inc(topic, word int) {
	c.topicWord[topic][word]++
	c.topicAll[topic]++
	if topic == c.backgroundIndex() {
		c.total[0]++
	} else {
		c.total[1]++
	}
}

// Dec decrements the (topic, word) cell and its derived totals. It panics if
// any count would go negative: a fatal internal consistency failure that
// should be impossible for a correctly reconciled batch.
func (c *Counts) Dec(topic, word int) {
	if c.topicWord[topic][word] <= 0 {
		panic(fmt.Sprintf("stats: n_tw[%d][%d] would go negative", topic, word))
	}
	c.topicWord[topic][word]--
	c.topicAll[topic]--
	if c.topicAll[topic] < 0 {
		panic(fmt.Sprintf("stats: n_t[%d] went negative", topic))
	}
	if topic == c.backgroundIndex() {
		c.total[0]--
		if c.total[0] < 0 {
			panic("stats: n_total[0] went negative")
		}
	} else {
		c.total[1]--
		if c.total[1] < 0 {
			panic("stats: n_total[1] went negative")
		}
	}
}

// SetRow overwrites topic's entire word-count row and recomputes its
// derived totals. It is used to load a persisted TopicParam record
// directly, rather than replaying Inc one word at a time, for inference and
// the dump commands where only the final counts matter.
func (c *Counts) SetRow(topic int, words []uint64) {
	row := c.topicWord[topic]
	var oldSum, newSum int64
	for _, v := range row {
		oldSum += v
	}
	for i, v := range words {
		row[i] = int64(v)
		newSum += int64(v)
	}
	c.topicAll[topic] += newSum - oldSum
	if topic == c.backgroundIndex() {
		c.total[0] += newSum - oldSum
	} else {
		c.total[1] += newSum - oldSum
	}
}

// Density reports the fraction of (topic, word) cells that are nonzero, a
// crude sparsity/convergence signal reported alongside the update rate.
func (c *Counts) Density() float64 {
	nonzero, total := 0, 0
	for _, row := range c.topicWord {
		for _, v := range row {
			total++
			if v != 0 {
				nonzero++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(nonzero) / float64(total)
}

// TopicRow returns topic's word-count row as a read-only-by-convention
// slice, for snapshotting into a TopicParam record.
func (c *Counts) TopicRow(topic int) []int64 {
	return c.topicWord[topic]
}

// CheckInvariants verifies that row sums equal topic totals, topic totals
// sum to the foreground total, the background total matches its row, and
// nothing is negative. It is a test/debug helper, not called on the hot
// path.
func (c *Counts) CheckInvariants() error {
	var fgSum int64
	for t := 0; t <= c.TopicCount; t++ {
		var rowSum int64
		for _, v := range c.topicWord[t] {
			if v < 0 {
				return fmt.Errorf("stats: n_tw[%d] has a negative entry", t)
			}
			rowSum += v
		}
		if rowSum != c.topicAll[t] {
			return fmt.Errorf("stats: topic %d row sum %d != n_t %d", t, rowSum, c.topicAll[t])
		}
		if t == c.backgroundIndex() {
			if rowSum != c.total[0] {
				return fmt.Errorf("stats: background row sum %d != n_total[0] %d", rowSum, c.total[0])
			}
		} else {
			fgSum += rowSum
		}
	}
	if fgSum != c.total[1] {
		return fmt.Errorf("stats: foreground row sums %d != n_total[1] %d", fgSum, c.total[1])
	}
	return nil
}

// UserCounts is one user's sparse topic-count vector, n_ut[u][*], plus its
// row total n_u[u].
type UserCounts struct {
	TopicCount int
	topics     []int64
	total      int64
}

// NewUserCounts allocates a zeroed per-user topic-count vector.
func NewUserCounts(topicCount int) *UserCounts {
	return &UserCounts{TopicCount: topicCount, topics: make([]int64, topicCount)}
}

// NewUserCountsFrom seeds a UserCounts from a decoded sparse topic vector
// (loaded from a UserParam record).
func NewUserCountsFrom(topics []uint64) *UserCounts {
	u := &UserCounts{TopicCount: len(topics), topics: make([]int64, len(topics))}
	for t, v := range topics {
		u.topics[t] = int64(v)
		u.total += int64(v)
	}
	return u
}

// Topic returns n_ut[u][topic].
func (u *UserCounts) Topic(topic int) int64 {
	return u.topics[topic]
}

// Total returns n_u[u].
func (u *UserCounts) Total() int64 {
	return u.total
}

// Inc increments the user's count for topic.
func (u *UserCounts) Inc(topic int) {
	u.topics[topic]++
	u.total++
}

// Dec decrements the user's count for topic, panicking on underflow.
func (u *UserCounts) Dec(topic int) {
	if u.topics[topic] <= 0 {
		panic(fmt.Sprintf("stats: n_ut[*][%d] would go negative", topic))
	}
	u.topics[topic]--
	u.total--
	if u.total < 0 {
		panic("stats: n_u went negative")
	}
}

// Snapshot returns the topic vector as a sparse uint64 array suitable for
// EncodeUserParam/EncodeSparse.
func (u *UserCounts) Snapshot() []uint64 {
	out := make([]uint64, u.TopicCount)
	for i, v := range u.topics {
		out[i] = uint64(v)
	}
	return out
}
