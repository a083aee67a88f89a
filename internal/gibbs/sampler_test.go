package gibbs

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/twlda/twlda/internal/record"
	"github.com/twlda/twlda/internal/stats"
)

func uniformTweetParam(topicCount, wordCount int) record.TweetParam {
	tags := make([]bool, wordCount)
	for i := range tags {
		tags[i] = true
	}
	return record.TweetParam{Topic: 0, WordTags: tags}
}

// TestTopicChoiceApproximatelyUniformUnderFlatPriors checks a sampler
// marginal sanity property: with alpha-1 huge relative to the counts, theta
// dominates the prior-count term and the topic choice should look close to
// uniform over many draws.
func TestTopicChoiceApproximatelyUniformUnderFlatPriors(t *testing.T) {
	const topicCount, wordCount = 4, 10
	counts := stats.NewCounts(topicCount, wordCount)
	for topic := 0; topic < topicCount; topic++ {
		for w := 0; w < wordCount; w++ {
			counts.Inc(topic, w)
		}
	}

	hyper := Hyper{TopicCount: topicCount, WordCount: wordCount, AlphaM1: 1e6, BetaM1: 1e6, BetaBgM1: 1e6, GammaM1: 1e6}
	s := New(hyper, counts, 1)

	user := stats.NewUserCounts(topicCount)
	tweet := record.Tweet{User: 1, Words: []uint32{0, 1, 2}}
	prior := uniformTweetParam(topicCount, len(tweet.Words))

	const trials = 4000
	observed := make([]float64, topicCount)
	for i := 0; i < trials; i++ {
		p := s.Sample(tweet, prior, user)
		observed[p.Topic]++
	}
	for i := range observed {
		observed[i] /= trials
	}

	uniform := make([]float64, topicCount)
	for i := range uniform {
		uniform[i] = 1.0 / float64(topicCount)
	}

	kl := stat.KullbackLeibler(observed, uniform)
	require.Less(t, kl, 0.05, "topic distribution %v should be close to uniform (KL=%f)", observed, kl)
}

// TestForegroundFractionRisesWhenGammaFavorsForeground checks a second
// marginal sanity property: with gamma-1 small next to a foreground total
// far above the background total, pi1 >> pi0 and resampling should push the
// foreground-tag fraction up. gamma-1 is added to both pi0 and pi1, so a
// large gamma-1 alone would make them nearly equal.
func TestForegroundFractionRisesWhenGammaFavorsForeground(t *testing.T) {
	const topicCount, wordCount = 2, 5
	counts := stats.NewCounts(topicCount, wordCount)
	// one background count and 1000 topic-0 counts per word: n_total[0] = 5,
	// n_total[1] = 5000, while phi stays 0.2 on both sides
	for w := 0; w < wordCount; w++ {
		counts.Inc(topicCount, w) // background
		for i := 0; i < 1000; i++ {
			counts.Inc(0, w) // topic 0
		}
	}

	hyper := Hyper{TopicCount: topicCount, WordCount: wordCount, AlphaM1: 0.1, BetaM1: 0.1, BetaBgM1: 0.1, GammaM1: 0.1}
	s := New(hyper, counts, 2)

	user := stats.NewUserCounts(topicCount)
	tweet := record.Tweet{User: 1, Words: []uint32{0, 1, 2, 3, 4}}
	prior := record.TweetParam{Topic: 0, WordTags: make([]bool, len(tweet.Words))}

	fractionOf := func(p record.TweetParam) float64 {
		n := 0
		for _, tag := range p.WordTags {
			if tag {
				n++
			}
		}
		return float64(n) / float64(len(p.WordTags))
	}

	first := s.Sample(tweet, prior, user)
	require.Greater(t, fractionOf(first), 0.5, "pi1 >> pi0 should push most words foreground immediately")
}

func TestSampleIsDeterministicForFixedSeed(t *testing.T) {
	const topicCount, wordCount = 3, 6
	counts := stats.NewCounts(topicCount, wordCount)
	for topic := 0; topic <= topicCount; topic++ {
		for w := 0; w < wordCount; w++ {
			counts.Inc(topic, w)
		}
	}
	hyper := Hyper{TopicCount: topicCount, WordCount: wordCount, AlphaM1: 0.1, BetaM1: 0.1, BetaBgM1: 0.1, GammaM1: 0.1}

	tweet := record.Tweet{User: 1, Words: []uint32{0, 1, 2, 3}}
	prior := uniformTweetParam(topicCount, len(tweet.Words))
	user := stats.NewUserCounts(topicCount)

	a := New(hyper, counts, 42).Sample(tweet, prior, user)
	b := New(hyper, counts, 42).Sample(tweet, prior, user)
	require.Equal(t, a, b)
}
