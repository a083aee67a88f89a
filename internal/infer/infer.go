// Package infer implements single-document inference against a frozen,
// trained model: given a tweet's word sequence and the trained topic-word
// counts, pick the topic that best explains the words and report a
// per-mode figure of merit alongside it.
package infer

import (
	"fmt"
	"math"
	"strings"

	"github.com/twlda/twlda/internal/record"
	"github.com/twlda/twlda/internal/segment"
	"github.com/twlda/twlda/internal/stats"
	"github.com/twlda/twlda/internal/xfloat"
)

// Mode selects the scoring rule infer-prob/infer-score expose.
type Mode int

const (
	// Probability normalizes an extended-exponent product of phi across
	// candidate topics, the same kernel the training sampler's topic step
	// uses minus the per-user theta term (there is no user to condition
	// on at inference time).
	Probability Mode = iota
	// Score reports an unnormalized mean word-count ratio, a cheaper
	// figure of merit than Probability that does not need the
	// extended-exponent machinery.
	Score
)

// Result is one tweet's inferred topic and its mode-dependent figure of
// merit. Topic is -1 if the tweet contributed no known words.
type Result struct {
	Topic int
	Value float64
}

// Model holds the trained topic-word counts and hyperparameters inference
// needs. It never mutates Counts.
type Model struct {
	TopicCount int
	WordCount  int
	BetaM1     float64
	Counts     *stats.Counts
}

// LoadModel reads a topic-param stream (the output of train's final flush)
// into a fresh Model.
func LoadModel(topicParamPath string, topicCount, wordCount int, betaM1 float64) (*Model, error) {
	r, err := segment.Open(topicParamPath, record.TopicParamSegmentFor(wordCount))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	counts := stats.NewCounts(topicCount, wordCount)
	for topic := 0; topic <= topicCount; topic++ {
		item := r.Next(false)
		if item == nil {
			return nil, fmt.Errorf("infer: topic-param stream ended after %d of %d topics", topic, topicCount+1)
		}
		tp, n := record.DecodeTopicParam(item, wordCount)
		if n != len(item) {
			return nil, fmt.Errorf("infer: malformed topic-param record for topic %d", topic)
		}
		counts.SetRow(topic, tp.Words)
	}
	return &Model{TopicCount: topicCount, WordCount: wordCount, BetaM1: betaM1, Counts: counts}, nil
}

// Infer scores every candidate topic against words (already mapped to word
// ids by the caller via the trained word dictionary; unknown words should
// be dropped before calling) and returns the best topic and its score.
func (m *Model) Infer(words []int, mode Mode) Result {
	if len(words) == 0 {
		return Result{Topic: -1}
	}
	if mode == Score {
		return m.inferScore(words)
	}
	return m.inferProbability(words)
}

// inferScore scores each topic by the mean per-word count under that topic
// (Laplace-smoothed by BetaM1); no extended-exponent renormalization is
// needed since there is no product of many small factors.
func (m *Model) inferScore(words []int) Result {
	W := float64(m.WordCount)
	best := Result{Topic: -1}
	for topic := 0; topic < m.TopicCount; topic++ {
		var sum float64
		for _, w := range words {
			sum += float64(m.Counts.Word(topic, w))
		}
		score := (sum + m.BetaM1*float64(len(words))) / (float64(m.Counts.TopicTotal(topic)) + m.BetaM1*W) / float64(len(words))
		if best.Topic == -1 || score > best.Value {
			best = Result{Topic: topic, Value: score}
		}
	}
	return best
}

// inferProbability scores each topic with an extended-exponent product of
// phi(t, w) over words, normalized across topics at the end, using the
// same early-exit-at-52-bits discipline as the training sampler.
func (m *Model) inferProbability(words []int) Result {
	W := float64(m.WordCount)
	probs := make([]float64, m.TopicCount)
	exps := make([]int, m.TopicCount)
	maxExp := math.MinInt

	for topic := 0; topic < m.TopicCount; topic++ {
		sum := float64(m.Counts.TopicTotal(topic)) + m.BetaM1*W
		prod := xfloat.NewProduct()
		n := 0
		for _, w := range words {
			phi := (float64(m.Counts.Word(topic, w)) + m.BetaM1) / sum
			n = prod.Mult(phi)
			if n&15 == 0 && prod.BelowByBits(maxExp, 52) {
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

	best := Result{Topic: -1}
	total := 0.0
	for topic := 0; topic < m.TopicCount; topic++ {
		p := xfloat.Pack(probs[topic], exps[topic]-maxExp)
		probs[topic] = p
		total += p
		if best.Topic == -1 || p > best.Value {
			best = Result{Topic: topic, Value: p}
		}
	}
	if total > 0 {
		best.Value = probs[best.Topic] / total
	}
	return best
}

// Tokenize splits a line the way make-buffer's input format does: an
// optional "user\t" prefix followed by space-separated tokens.
func Tokenize(line string) []string {
	if tab := strings.IndexByte(line, '\t'); tab >= 0 {
		line = line[tab+1:]
	}
	if line == "" {
		return nil
	}
	return strings.Split(line, " ")
}

// MapWords resolves tokens to word ids via dictionary, dropping any token
// absent from the trained vocabulary.
func MapWords(tokens []string, dictionary map[string]int) []int {
	var ids []int
	for _, tok := range tokens {
		if id, ok := dictionary[tok]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
