// Package dump implements the text listing commands dump-topic, dump-user
// and dump-tweet, each turning a binary parameter stream back into a
// human- (or script-) readable line format. dump-topic and dump-user sort
// each line by decreasing count; dump-tweet follows the input line order.
package dump

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/twlda/twlda/internal/record"
	"github.com/twlda/twlda/internal/segment"
)

// countEntry pairs an id with its count, for a stable descending sort.
type countEntry struct {
	id    int
	count int64
}

func sortDescending(counts []int64) []countEntry {
	entries := make([]countEntry, len(counts))
	for i, c := range counts {
		entries[i] = countEntry{id: i, count: c}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].count > entries[j].count })
	return entries
}

// Topic writes one line per topic 0..topicCount inclusive (topicCount
// itself is the background pseudo-topic): "topic<TAB>word count<TAB>word
// count..." in decreasing count order, stopping at the first zero. If
// normalize is true, counts are replaced by their Dirichlet-smoothed
// posterior share of the topic (the "save_topic_word_distribution" form the
// original keeps separate from the raw sparse dump).
func Topic(w io.Writer, words []string, topicParamPath string, topicCount, wordCount int, betaM1 float64, normalize bool) error {
	r, err := segment.Open(topicParamPath, record.TopicParamSegmentFor(wordCount))
	if err != nil {
		return err
	}
	defer r.Close()

	bw := bufio.NewWriter(w)
	dense := make([]int64, wordCount)
	for topic := 0; topic <= topicCount; topic++ {
		item := r.Next(false)
		if item == nil {
			return fmt.Errorf("dump: topic-param stream ended after %d of %d topics", topic, topicCount+1)
		}
		tp, n := record.DecodeTopicParam(item, wordCount)
		if n != len(item) {
			return fmt.Errorf("dump: malformed topic-param record for topic %d", topic)
		}

		for i := range dense {
			dense[i] = 0
		}
		var total int64
		for i, v := range tp.Words {
			dense[i] = int64(v)
			total += int64(v)
		}

		if _, err := fmt.Fprintf(bw, "%d", topic); err != nil {
			return err
		}
		for _, e := range sortDescending(dense) {
			if e.count == 0 {
				break
			}
			if e.id >= len(words) {
				return fmt.Errorf("dump: word id %d has no label", e.id)
			}
			if normalize {
				share := (float64(e.count) + betaM1) / (float64(total) + betaM1*float64(wordCount))
				if _, err := fmt.Fprintf(bw, "\t%s %g", words[e.id], share); err != nil {
					return err
				}
			} else {
				if _, err := fmt.Fprintf(bw, "\t%s %d", words[e.id], e.count); err != nil {
					return err
				}
			}
		}
		if _, err := fmt.Fprint(bw, "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// User writes one line per user record: "user<TAB>topic count<TAB>topic
// count..." in decreasing count order, stopping at the first zero.
func User(w io.Writer, users []string, userParamPath string, topicCount int, alphaM1 float64, normalize bool) error {
	r, err := segment.Open(userParamPath, record.UserParamSegmentFor(topicCount))
	if err != nil {
		return err
	}
	defer r.Close()

	bw := bufio.NewWriter(w)
	dense := make([]int64, topicCount)
	for {
		item := r.Next(false)
		if item == nil {
			break
		}
		up, n := record.DecodeUserParam(item, topicCount)
		if n != len(item) {
			return fmt.Errorf("dump: malformed user-param record")
		}
		if int(up.User) >= len(users) {
			return fmt.Errorf("dump: user id %d has no label", up.User)
		}

		for i := range dense {
			dense[i] = 0
		}
		var total int64
		for i, v := range up.Topics {
			dense[i] = int64(v)
			total += int64(v)
		}

		if _, err := fmt.Fprint(bw, users[up.User]); err != nil {
			return err
		}
		for _, e := range sortDescending(dense) {
			if e.count == 0 {
				break
			}
			if normalize {
				share := (float64(e.count) + alphaM1) / (float64(total) + alphaM1*float64(topicCount))
				if _, err := fmt.Fprintf(bw, "\t%d %g", e.id, share); err != nil {
					return err
				}
			} else {
				if _, err := fmt.Fprintf(bw, "\t%d %d", e.id, e.count); err != nil {
					return err
				}
			}
		}
		if _, err := fmt.Fprint(bw, "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Tweet writes one line per line of the raw input text: "topic<TAB>
// original_text", with topic -1 for tweets dropped during make-buffer
// (those without a tweet-param record). The merge is driven by the
// tweet-id stream, which names which input line each surviving tweet-param
// record corresponds to.
func Tweet(w io.Writer, tweetParamPath, originalTextPath, tweetIDPath string) error {
	pr, err := segment.Open(tweetParamPath, record.TweetParamSegment)
	if err != nil {
		return err
	}
	defer pr.Close()

	idr, err := segment.Open(tweetIDPath, record.TweetIDSegment)
	if err != nil {
		return err
	}
	defer idr.Close()

	tr, err := segment.Open(originalTextPath, record.TextSegment)
	if err != nil {
		return err
	}
	defer tr.Close()

	bw := bufio.NewWriter(w)
	var lineIndex uint64
	for {
		paramItem := pr.Next(false)
		idItem := idr.Next(false)
		if paramItem == nil || idItem == nil {
			if (paramItem == nil) != (idItem == nil) {
				return fmt.Errorf("dump: tweet-param stream and tweet-id stream disagree on length")
			}
			break
		}

		param, n := record.DecodeTweetParam(paramItem)
		if n != len(paramItem) {
			return fmt.Errorf("dump: malformed tweet-param record")
		}
		id, m := record.DecodeTweetID(idItem)
		if m != len(idItem) {
			return fmt.Errorf("dump: malformed tweet-id record")
		}

		for lineIndex <= id {
			line := tr.Next(false)
			if line == nil {
				return fmt.Errorf("dump: original text ended before tweet-id %d", id)
			}
			topic := -1
			if lineIndex == id {
				topic = int(param.Topic)
			}
			if _, err := fmt.Fprintf(bw, "%d\t%s\n", topic, record.TrimTerminator(line)); err != nil {
				return err
			}
			lineIndex++
		}
	}

	for {
		line := tr.Next(false)
		if line == nil {
			break
		}
		if _, err := fmt.Fprintf(bw, "%d\t%s\n", -1, record.TrimTerminator(line)); err != nil {
			return err
		}
	}
	return bw.Flush()
}
