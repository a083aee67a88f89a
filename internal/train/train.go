// Package train implements the batch orchestrator and the fresh-model
// initialization sweep: it streams tweets and their prior-iteration
// parameters off disk in lockstep, demand-loads user state, fans sampling
// out across a worker pool, reconciles the resulting deltas into the shared
// sufficient statistics, and streams the new parameters back out, rotating
// between two on-disk checkpoint slots each iteration.
package train

import (
	"fmt"
	"math/rand"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/twlda/twlda/internal/gibbs"
	"github.com/twlda/twlda/internal/parallel"
	"github.com/twlda/twlda/internal/record"
	"github.com/twlda/twlda/internal/segment"
	"github.com/twlda/twlda/internal/stats"
)

// DefaultBatchBytes is the default size of a batch of tweet-buffer bytes
// assembled before dispatching to workers: 16 MiB of tweet data.
const DefaultBatchBytes int64 = 16 << 20

// Model owns the sufficient statistics and hyperparameters for the
// lifetime of a training run. It carries no paths or file handles of its
// own; those belong to Streams and are supplied per iteration.
type Model struct {
	Hyper  gibbs.Hyper
	Counts *stats.Counts

	pool     *parallel.Pool
	samplers []*gibbs.Sampler
}

// NewModel allocates a fresh, zeroed model for the given hyperparameters,
// with one Sampler per worker, each seeded deterministically from its
// worker id.
func NewModel(hyper gibbs.Hyper, threads int) *Model {
	counts := stats.NewCounts(hyper.TopicCount, hyper.WordCount)
	pool := parallel.New(threads)
	samplers := make([]*gibbs.Sampler, pool.Workers)
	for id := range samplers {
		samplers[id] = gibbs.New(hyper, counts, int64(id)+1)
	}
	return &Model{Hyper: hyper, Counts: counts, pool: pool, samplers: samplers}
}

// Streams names the files one iteration reads from and writes to.
type Streams struct {
	TweetPath           string // fixed for the lifetime of training
	PriorTweetParamPath string
	PriorUserParamPath  string
	OutTweetParamPath   string
	OutUserParamPath    string
}

// IterationStats reports the per-iteration signals surfaced to progress
// reporting.
type IterationStats struct {
	WordsProcessed int64
	WordsChanged   int64
	Density        float64
}

// UpdateRate returns the fraction of word-level tag/topic changes over
// words processed, a crude convergence signal.
func (s IterationStats) UpdateRate() float64 {
	if s.WordsProcessed == 0 {
		return 0
	}
	return float64(s.WordsChanged) / float64(s.WordsProcessed)
}

// batchItem is one tweet carried through assembly, partitioning, sampling
// and reconciliation.
type batchItem struct {
	tweet record.Tweet
	prior record.TweetParam
}

// Initialize performs the fresh-model sweep: every tweet in the buffer
// is assigned a uniform-random topic and each word a uniform-random
// foreground/background tag, counts are accumulated, and the implied
// tweet-param and user-param streams are written out. It must be called
// exactly once, before the first call to RunIteration, on a Model whose
// Counts are still zero.
func (m *Model) Initialize(streams Streams, seed int64) error {
	tr, err := segment.Open(streams.TweetPath, record.TweetSegment)
	if err != nil {
		return err
	}
	defer tr.Close()

	tw, err := newWriter(streams.OutTweetParamPath)
	if err != nil {
		return err
	}
	defer tw.Close()

	uw, err := newWriter(streams.OutUserParamPath)
	if err != nil {
		return err
	}
	defer uw.Close()

	rng := rand.New(rand.NewSource(seed))
	T := m.Hyper.TopicCount
	background := T

	users := orderedmap.New[uint32, *stats.UserCounts]()
	var buf []byte
	for {
		item := tr.Next(false)
		if item == nil {
			break
		}
		tweet, n := record.DecodeTweet(item)
		if n != len(item) {
			return fmt.Errorf("train: init: malformed tweet record")
		}

		user, ok := users.Get(tweet.User)
		if !ok {
			user = stats.NewUserCounts(T)
			users.Set(tweet.User, user)
		}

		topic := rng.Intn(T)
		tags := make([]bool, len(tweet.Words))
		for i, w := range tweet.Words {
			fg := rng.Intn(2) == 1
			tags[i] = fg
			idx := background
			if fg {
				idx = topic
			}
			m.Counts.Inc(idx, int(w))
		}
		user.Inc(topic)

		buf = buf[:0]
		buf = record.EncodeTweetParam(buf, record.TweetParam{Topic: uint32(topic), WordTags: tags})
		if err := tw.Write(buf); err != nil {
			return err
		}
	}

	for pair := users.Oldest(); pair != nil; pair = pair.Next() {
		buf = buf[:0]
		buf = record.EncodeUserParam(buf, record.UserParam{User: pair.Key, Topics: pair.Value.Snapshot()})
		if err := uw.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// RunIteration performs one full pass over the tweet buffer: batch
// assembly, partitioning, sampling, reconciliation, and flush, rotating
// through streams' prior and output files. The tweet buffer and prior
// streams are read start to finish exactly once; callers make one call per
// training iteration.
func (m *Model) RunIteration(streams Streams, batchBytes int64) (IterationStats, error) {
	if batchBytes <= 0 {
		batchBytes = DefaultBatchBytes
	}
	T := m.Hyper.TopicCount

	tr, err := segment.Open(streams.TweetPath, record.TweetSegment)
	if err != nil {
		return IterationStats{}, err
	}
	defer tr.Close()

	pr, err := segment.Open(streams.PriorTweetParamPath, record.TweetParamSegment)
	if err != nil {
		return IterationStats{}, err
	}
	defer pr.Close()

	ur, err := segment.Open(streams.PriorUserParamPath, record.UserParamSegmentFor(T))
	if err != nil {
		return IterationStats{}, err
	}
	defer ur.Close()

	tw, err := newWriter(streams.OutTweetParamPath)
	if err != nil {
		return IterationStats{}, err
	}
	defer tw.Close()

	uw, err := newWriter(streams.OutUserParamPath)
	if err != nil {
		return IterationStats{}, err
	}
	defer uw.Close()

	users := orderedmap.New[uint32, *stats.UserCounts]()

	var stat IterationStats
	var outBuf []byte
	for {
		items, stragglerUser, eof, err := assembleBatch(tr, pr, ur, users, T, batchBytes)
		if err != nil {
			return stat, err
		}
		if len(items) == 0 {
			break
		}

		outputs, err := m.sample(items, users)
		if err != nil {
			return stat, err
		}

		for i, item := range items {
			newParam := outputs[i]
			old := item.prior

			userCounts, _ := users.Get(item.tweet.User)
			if old.Topic != newParam.Topic {
				userCounts.Dec(int(old.Topic))
				userCounts.Inc(int(newParam.Topic))
			}

			for j, w := range item.tweet.Words {
				oldIdx := backgroundOr(old.Topic, old.WordTags[j], T)
				newIdx := backgroundOr(newParam.Topic, newParam.WordTags[j], T)
				stat.WordsProcessed++
				if oldIdx != newIdx {
					m.Counts.Dec(oldIdx, int(w))
					m.Counts.Inc(newIdx, int(w))
					stat.WordsChanged++
				}
			}

			outBuf = outBuf[:0]
			outBuf = record.EncodeTweetParam(outBuf, newParam)
			if err := tw.Write(outBuf); err != nil {
				return stat, err
			}
		}

		if err := flushUsers(uw, users, stragglerUser, eof); err != nil {
			return stat, err
		}

		if eof {
			break
		}
	}

	stat.Density = m.Counts.Density()
	return stat, nil
}

// backgroundOr returns the topic-table row a word belongs to: the
// background row when tag is false, topic otherwise.
func backgroundOr(topic uint32, tag bool, backgroundIndex int) int {
	if tag {
		return int(topic)
	}
	return backgroundIndex
}

// assembleBatch pulls tweet and tweet-param
// records in lockstep until batchBytes worth of tweet data has been
// gathered or the tweet stream ends, loading a fresh user-param record for
// every user seen for the first time this iteration.
func assembleBatch(
	tr, pr, ur *segment.Reader,
	users *orderedmap.OrderedMap[uint32, *stats.UserCounts],
	topicCount int,
	batchBytes int64,
) (items []batchItem, stragglerUser uint32, eof bool, err error) {
	var used int64
	for {
		tweetBytes := tr.Next(false)
		if tweetBytes == nil {
			if pr.Next(false) != nil {
				return nil, 0, false, fmt.Errorf("train: tweet-param stream has records beyond the tweet stream")
			}
			return items, stragglerUser, true, nil
		}
		paramBytes := pr.Next(false)
		if paramBytes == nil {
			return nil, 0, false, fmt.Errorf("train: tweet stream and tweet-param stream disagree on length")
		}

		tweet, n := record.DecodeTweet(tweetBytes)
		if n != len(tweetBytes) {
			return nil, 0, false, fmt.Errorf("train: malformed tweet record")
		}
		prior, m := record.DecodeTweetParam(paramBytes)
		if m != len(paramBytes) {
			return nil, 0, false, fmt.Errorf("train: malformed tweet-param record")
		}
		if len(prior.WordTags) != len(tweet.Words) {
			return nil, 0, false, fmt.Errorf("train: tweet-param word count does not match tweet")
		}

		if _, ok := users.Get(tweet.User); !ok {
			userBytes := ur.Next(false)
			if userBytes == nil {
				return nil, 0, false, fmt.Errorf("train: user-param stream exhausted before user %d", tweet.User)
			}
			up, n := record.DecodeUserParam(userBytes, topicCount)
			if n != len(userBytes) {
				return nil, 0, false, fmt.Errorf("train: malformed user-param record")
			}
			if up.User != tweet.User {
				return nil, 0, false, fmt.Errorf("train: user-param stream misaligned: expected user %d, got %d", tweet.User, up.User)
			}
			users.Set(tweet.User, stats.NewUserCountsFrom(up.Topics))
		}

		items = append(items, batchItem{tweet: tweet, prior: prior})
		stragglerUser = tweet.User
		used += int64(len(tweetBytes))
		if used >= batchBytes {
			return items, stragglerUser, false, nil
		}
	}
}

// sample splits items into m.pool.Workers contiguous spans and fans them
// out to the worker pool, each worker drawing from its own persistent
// Sampler.
func (m *Model) sample(items []batchItem, users *orderedmap.OrderedMap[uint32, *stats.UserCounts]) ([]record.TweetParam, error) {
	outputs := make([]record.TweetParam, len(items))
	workers := m.pool.Workers
	if workers > len(items) {
		workers = len(items)
	}
	if workers == 0 {
		return outputs, nil
	}

	spanSize := (len(items) + workers - 1) / workers
	err := m.pool.Run(func(id int) error {
		start := id * spanSize
		if start >= len(items) {
			return nil
		}
		end := start + spanSize
		if end > len(items) {
			end = len(items)
		}
		sampler := m.samplers[id]
		for i := start; i < end; i++ {
			userCounts, _ := users.Get(items[i].tweet.User)
			outputs[i] = sampler.Sample(items[i].tweet, items[i].prior, userCounts)
		}
		return nil
	})
	return outputs, err
}

// flushUsers writes out and evicts every active user except the straggler
// (the user whose tweets may continue into the next batch), in first-seen
// order. At end of file there is no straggler to protect and every active
// user is flushed.
func flushUsers(
	w *writer,
	users *orderedmap.OrderedMap[uint32, *stats.UserCounts],
	stragglerUser uint32,
	eof bool,
) error {
	var toDelete []uint32
	var buf []byte
	for pair := users.Oldest(); pair != nil; pair = pair.Next() {
		if !eof && pair.Key == stragglerUser {
			continue
		}
		buf = buf[:0]
		buf = record.EncodeUserParam(buf, record.UserParam{User: pair.Key, Topics: pair.Value.Snapshot()})
		if err := w.Write(buf); err != nil {
			return err
		}
		toDelete = append(toDelete, pair.Key)
	}
	for _, key := range toDelete {
		users.Delete(key)
	}
	return nil
}
