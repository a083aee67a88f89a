// Package makebuffer implements the make-buffer preprocessor: it reads the
// raw tab/space-delimited text corpus, builds the user and word
// dictionaries, and emits the compact tweet buffer, tweet-id stream, and
// summary that training and inference consume.
package makebuffer

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/twlda/twlda/internal/dict"
	"github.com/twlda/twlda/internal/record"
	"github.com/twlda/twlda/internal/segment"
)

const defaultUser = "*"

// Options configures one make-buffer run.
type Options struct {
	InputPath    string
	BufferPath   string // <buffer>.buffer.bin
	UserPath     string // <buffer>.user.txt
	WordPath     string // <buffer>.word.txt
	TweetIDPath  string // <buffer>.id.bin
	SummaryPath  string // <buffer>.summary.txt
	StopwordPath string // optional
	MinUserFreq  int
	MinWordFreq  int
}

// splitLine separates an optional "user\t" prefix from the remaining
// space-separated tokens. A missing user is the literal "*".
func splitLine(line string) (user string, tokens []string) {
	if tab := strings.IndexByte(line, '\t'); tab >= 0 {
		user = line[:tab]
		line = line[tab+1:]
	} else {
		user = defaultUser
	}
	if line == "" {
		return user, nil
	}
	return user, strings.Split(line, " ")
}

// Result summarizes a completed make-buffer run.
type Result struct {
	Summary   record.Summary
	UserCount int
	WordCount int
}

// Build runs the full make-buffer pipeline.
func Build(opts Options) (Result, error) {
	userTable, wordTable, err := scanFrequencies(opts.InputPath)
	if err != nil {
		return Result{}, err
	}

	if opts.StopwordPath != "" {
		stop, err := dict.LoadStopwords(opts.StopwordPath)
		if err != nil {
			return Result{}, err
		}
		for word := range stop {
			wordTable.Remove(word)
		}
	}

	users := dict.Build(userTable, opts.MinUserFreq)
	if err := dict.Save(opts.UserPath, userTable, users); err != nil {
		return Result{}, err
	}

	words := dict.Build(wordTable, opts.MinWordFreq)
	if err := dict.Save(opts.WordPath, wordTable, words); err != nil {
		return Result{}, err
	}

	summary, err := writeBuffer(opts, users, words)
	if err != nil {
		return Result{}, err
	}
	if err := record.SaveSummary(opts.SummaryPath, summary); err != nil {
		return Result{}, err
	}

	return Result{Summary: summary, UserCount: users.Len(), WordCount: words.Len()}, nil
}

// scanFrequencies makes the first pass over the corpus, counting user and
// word occurrences.
func scanFrequencies(path string) (*dict.FreqTable, *dict.FreqTable, error) {
	r, err := segment.Open(path, record.TextSegment)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()

	users := dict.NewFreqTable()
	words := dict.NewFreqTable()
	for {
		item := r.Next(false)
		if item == nil {
			break
		}
		line := string(record.TrimTerminator(item))
		user, tokens := splitLine(line)
		users.Add(user)
		for _, tok := range tokens {
			if tok != "" {
				words.Add(tok)
			}
		}
	}
	return users, words, nil
}

// writeBuffer makes the second pass, emitting the tweet buffer and tweet-id
// stream and tallying the summary counts. A tweet is invalid (dropped) if
// its user was filtered out by min-user-freq, or if every one of its tokens
// was filtered out (stopword or min-word-freq) leaving no words at all.
func writeBuffer(opts Options, users, words *dict.Dictionary) (record.Summary, error) {
	r, err := segment.Open(opts.InputPath, record.TextSegment)
	if err != nil {
		return record.Summary{}, err
	}
	defer r.Close()

	bw, err := newBinaryWriter(opts.BufferPath)
	if err != nil {
		return record.Summary{}, err
	}
	defer bw.Close()

	idw, err := newBinaryWriter(opts.TweetIDPath)
	if err != nil {
		return record.Summary{}, err
	}
	defer idw.Close()

	var summary record.Summary
	var lineIndex uint64
	var buf []byte
	for {
		item := r.Next(false)
		if item == nil {
			break
		}
		summary.TotalTweetNum++
		origin := lineIndex
		lineIndex++

		line := string(record.TrimTerminator(item))
		userStr, tokens := splitLine(line)

		userID, ok := users.ID(userStr)
		if !ok {
			continue
		}

		var wordIDs []uint32
		for _, tok := range tokens {
			if tok == "" {
				continue
			}
			if id, ok := words.ID(tok); ok {
				wordIDs = append(wordIDs, id)
			}
		}
		if len(wordIDs) == 0 {
			continue
		}

		buf = buf[:0]
		buf = record.EncodeTweet(buf, record.Tweet{User: userID, Words: wordIDs})
		if err := bw.Write(buf); err != nil {
			return record.Summary{}, err
		}

		buf = buf[:0]
		buf = record.EncodeTweetID(buf, origin)
		if err := idw.Write(buf); err != nil {
			return record.Summary{}, err
		}

		summary.ValidTweetNum++
	}

	summary.WordCount = words.Len()
	summary.UserCount = users.Len()
	return summary, nil
}

// binaryWriter is a small buffered-file sink shared by the two output
// streams make-buffer produces.
type binaryWriter struct {
	f *os.File
	w *bufio.Writer
}

func newBinaryWriter(path string) (*binaryWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("makebuffer: create %s: %w", path, err)
	}
	return &binaryWriter{f: f, w: bufio.NewWriter(f)}, nil
}

func (w *binaryWriter) Write(p []byte) error {
	if _, err := w.w.Write(p); err != nil {
		return fmt.Errorf("makebuffer: write: %w", err)
	}
	return nil
}

func (w *binaryWriter) Close() error {
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
