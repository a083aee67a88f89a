package train

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/twlda/twlda/internal/record"
	"github.com/twlda/twlda/internal/segment"
)

// Checkpoint names the on-disk tweet-param/user-param pair that one
// iteration reads as its prior state or writes as its new state.
type Checkpoint struct {
	TweetParamPath string
	UserParamPath  string
}

// Orchestrator drives a fixed number of training iterations over a Model.
// Intermediate iterations ping-pong between two on-disk scratch slots so
// that a crash mid-iteration leaves the previous iteration's files intact,
// and only the final iteration writes to the caller-specified output
// paths.
type Orchestrator struct {
	Model      *Model
	TweetPath  string
	BatchBytes int64
	WorkDir    string
}

// NewOrchestrator returns an Orchestrator bound to model, reading the fixed
// tweet buffer at tweetPath and using workDir for its two scratch slots.
func NewOrchestrator(model *Model, tweetPath, workDir string, batchBytes int64) *Orchestrator {
	return &Orchestrator{Model: model, TweetPath: tweetPath, BatchBytes: batchBytes, WorkDir: workDir}
}

// Run executes iterations passes starting from the initial checkpoint,
// ping-ponging through scratch slots and writing the last iteration's
// output to final. Zero iterations is a no-op that copies initial straight
// to final, so train-cont invoked with zero iterations leaves the
// checkpoint unchanged. onIteration, if non-nil, is called after every
// completed iteration for progress reporting.
func (o *Orchestrator) Run(iterations int, initial, final Checkpoint, onIteration func(i int, stat IterationStats)) (IterationStats, error) {
	if iterations == 0 {
		if err := copyCheckpoint(initial, final); err != nil {
			return IterationStats{}, err
		}
		return IterationStats{}, nil
	}

	in := initial
	var last IterationStats
	for i := 0; i < iterations; i++ {
		out := final
		if i < iterations-1 {
			out = o.slot(i % 2)
		}
		streams := Streams{
			TweetPath:           o.TweetPath,
			PriorTweetParamPath: in.TweetParamPath,
			PriorUserParamPath:  in.UserParamPath,
			OutTweetParamPath:   out.TweetParamPath,
			OutUserParamPath:    out.UserParamPath,
		}
		stat, err := o.Model.RunIteration(streams, o.BatchBytes)
		if err != nil {
			return last, fmt.Errorf("train: iteration %d: %w", i, err)
		}
		last = stat
		if onIteration != nil {
			onIteration(i, stat)
		}
		in = out
	}
	return last, nil
}

// slot names one of the two scratch checkpoint slots used between the
// first and last iteration.
func (o *Orchestrator) slot(n int) Checkpoint {
	return Checkpoint{
		TweetParamPath: filepath.Join(o.WorkDir, fmt.Sprintf("ckpt%d.tweet-param.bin", n)),
		UserParamPath:  filepath.Join(o.WorkDir, fmt.Sprintf("ckpt%d.user-param.bin", n)),
	}
}

// copyCheckpoint duplicates a checkpoint's two files verbatim.
func copyCheckpoint(src, dst Checkpoint) error {
	if err := copyFile(src.TweetParamPath, dst.TweetParamPath); err != nil {
		return err
	}
	return copyFile(src.UserParamPath, dst.UserParamPath)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("train: open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("train: create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("train: copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}

// LoadTopicParams reads a topic-param stream written by a previous training
// run's SaveTopicParams into m.Counts, resuming the sufficient statistics a
// train-cont invocation needs before it can continue iterating from a fresh
// process with no in-memory state of its own.
func (m *Model) LoadTopicParams(path string) error {
	r, err := segment.Open(path, record.TopicParamSegmentFor(m.Hyper.WordCount))
	if err != nil {
		return err
	}
	defer r.Close()

	for t := 0; t <= m.Hyper.TopicCount; t++ {
		item := r.Next(false)
		if item == nil {
			return fmt.Errorf("train: topic-param stream ended after %d of %d topics", t, m.Hyper.TopicCount+1)
		}
		tp, n := record.DecodeTopicParam(item, m.Hyper.WordCount)
		if n != len(item) {
			return fmt.Errorf("train: malformed topic-param record for topic %d", t)
		}
		m.Counts.SetRow(t, tp.Words)
	}
	return nil
}

// SaveTopicParams flushes the current topic-word counts to path, one
// TopicParam record per topic row 0..T inclusive (row T is the background
// pseudo-topic), once training completes.
func (m *Model) SaveTopicParams(path string) error {
	w, err := newWriter(path)
	if err != nil {
		return err
	}
	defer w.Close()

	var buf []byte
	for t := 0; t <= m.Hyper.TopicCount; t++ {
		row := m.Counts.TopicRow(t)
		words := make([]uint64, len(row))
		for i, v := range row {
			words[i] = uint64(v)
		}
		buf = buf[:0]
		buf = record.EncodeTopicParam(buf, record.TopicParam{Words: words})
		if err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
