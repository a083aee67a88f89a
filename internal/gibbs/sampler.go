// Package gibbs implements the per-tweet joint resampling step: a new
// topic for the tweet and a new foreground/background tag for each of its
// words, conditioned on the current (read-only, for the duration of a
// batch) sufficient statistics.
package gibbs

import (
	"math"
	"math/rand"

	"github.com/twlda/twlda/internal/record"
	"github.com/twlda/twlda/internal/stats"
	"github.com/twlda/twlda/internal/xfloat"
)

// Hyper holds the structural and Dirichlet-prior hyperparameters the
// sampler needs on every draw.
type Hyper struct {
	TopicCount int
	WordCount  int
	AlphaM1    float64
	BetaM1     float64
	BetaBgM1   float64
	GammaM1    float64
}

// Sampler draws a new (topic, word-tags) assignment for one tweet at a time.
// Counts is a snapshot that must not change for the lifetime of a batch;
// each worker owns a distinct Sampler (and thus a distinct *rand.Rand) so
// that sampling never touches shared mutable state.
type Sampler struct {
	Hyper  Hyper
	Counts *stats.Counts
	Rng    *rand.Rand
}

// New returns a Sampler seeded deterministically from seed: each worker
// owns its own PRNG, seeded deterministically per worker id. The sampler is
// therefore not deterministic across different thread counts, only across
// repeated runs with the same thread count.
func New(hyper Hyper, counts *stats.Counts, seed int64) *Sampler {
	return &Sampler{Hyper: hyper, Counts: counts, Rng: rand.New(rand.NewSource(seed))}
}

// Sample draws a new topic for tweet and a new tag for each of its words,
// given the tweet's current (prior-iteration) assignment and the tweet
// author's current per-topic tweet counts. The prior assignment is not
// decremented from the counts before sampling — the delta-reconciliation
// design forces this approximation.
func (s *Sampler) Sample(tweet record.Tweet, prior record.TweetParam, user *stats.UserCounts) record.TweetParam {
	topic := s.sampleTopic(tweet, prior, user)
	tags := s.sampleTags(tweet, topic)
	return record.TweetParam{Topic: uint32(topic), WordTags: tags}
}

// sampleTopic draws a new topic for tweet by candidate-scoring each
// topic's posterior likelihood, trying the tweet's previous topic first.
func (s *Sampler) sampleTopic(tweet record.Tweet, prior record.TweetParam, user *stats.UserCounts) int {
	T := s.Hyper.TopicCount
	W := float64(s.Hyper.WordCount)

	var topicWords []uint32
	for i, w := range tweet.Words {
		if prior.WordTags[i] {
			topicWords = append(topicWords, w)
		}
	}

	// Candidate topics are enumerated with the previous topic first, a
	// micro-optimization that gives the early-exit threshold its best shot
	// at firing early for topics that are unlikely to unseat the
	// incumbent.
	candidates := make([]int, T)
	candidates[0] = int(prior.Topic)
	for t, j := 0, 1; t < T; t++ {
		if t != int(prior.Topic) {
			candidates[j] = t
			j++
		}
	}

	probs := make([]float64, T)
	exps := make([]int, T)
	maxExp := math.MinInt

	userTotal := float64(user.Total())
	for _, topic := range candidates {
		theta := (float64(user.Topic(topic)) + s.Hyper.AlphaM1) / (userTotal + s.Hyper.AlphaM1*float64(T))

		prod := xfloat.NewProduct()
		n := prod.Mult(theta)
		topicAll := float64(s.Counts.TopicTotal(topic))
		for _, w := range topicWords {
			phi := (float64(s.Counts.Word(topic, int(w))) + s.Hyper.BetaM1) / (topicAll + s.Hyper.BetaM1*W)
			n = prod.Mult(phi)
			if n&15 == 0 && prod.E+52 < maxExp {
				break
			}
		}

		x, e := prod.Finish()
		probs[topic] = x
		exps[topic] = e
		if e > maxExp {
			maxExp = e
		}
	}

	sum := 0.0
	for t := 0; t < T; t++ {
		probs[t] = xfloat.Pack(probs[t], exps[t]-maxExp)
		sum += probs[t]
	}

	choice := s.Rng.Float64() * sum
	cum := 0.0
	selected := T - 1
	for t := 0; t < T; t++ {
		cum += probs[t]
		if choice <= cum {
			selected = t
			break
		}
	}
	return selected
}

// sampleTags draws a new foreground/background tag for each word in
// tweet independently, given the tweet's newly sampled topic.
func (s *Sampler) sampleTags(tweet record.Tweet, topic int) []bool {
	W := float64(s.Hyper.WordCount)
	background := s.Hyper.TopicCount

	pi0 := float64(s.Counts.BackgroundTotal()) + s.Hyper.GammaM1
	pi1 := float64(s.Counts.ForegroundTotal()) + s.Hyper.GammaM1
	bgTotal := float64(s.Counts.TopicTotal(background))
	topicTotal := float64(s.Counts.TopicTotal(topic))

	tags := make([]bool, len(tweet.Words))
	for i, w := range tweet.Words {
		phi0 := (float64(s.Counts.Word(background, int(w))) + s.Hyper.BetaBgM1) / (bgTotal + s.Hyper.BetaBgM1*W)
		phi1 := (float64(s.Counts.Word(topic, int(w))) + s.Hyper.BetaM1) / (topicTotal + s.Hyper.BetaM1*W)

		prob0 := pi0 * phi0
		prob1 := pi1 * phi1

		choice := s.Rng.Float64() * (prob0 + prob1)
		tags[i] = choice > prob0
	}
	return tags
}
