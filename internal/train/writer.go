package train

import (
	"bufio"
	"fmt"
	"os"
)

// writer is a small buffered-file sink for the tweet-param and user-param
// streams an iteration produces.
type writer struct {
	f *os.File
	w *bufio.Writer
}

func newWriter(path string) (*writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("train: create %s: %w", path, err)
	}
	return &writer{f: f, w: bufio.NewWriter(f)}, nil
}

func (w *writer) Write(p []byte) error {
	if _, err := w.w.Write(p); err != nil {
		return fmt.Errorf("train: write: %w", err)
	}
	return nil
}

func (w *writer) Close() error {
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
