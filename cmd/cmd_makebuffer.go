package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/twlda/twlda/internal/makebuffer"
)

func newMakeBufferCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "make-buffer",
		Short: "Convert a text corpus into the binary tweet buffer and dictionaries",
		RunE:  makeBufferHandler,
	}
	c.Flags().String("input", "", "Input tweet text file (required)")
	c.Flags().String("buffer", "", "Path prefix of buffer files (required)")
	c.Flags().String("stopword", "", "Stopwords list file")
	c.Flags().Int("user-freq", 1, "Minimum user frequency")
	c.Flags().Int("word-freq", 1, "Minimum word frequency")
	return c
}

func makeBufferHandler(cmd *cobra.Command, args []string) error {
	input, err := requiredString(cmd, "input")
	if err != nil {
		return err
	}
	bufferPrefix, err := requiredString(cmd, "buffer")
	if err != nil {
		return err
	}
	stopword, _ := cmd.Flags().GetString("stopword")
	userFreq, _ := cmd.Flags().GetInt("user-freq")
	wordFreq, _ := cmd.Flags().GetInt("word-freq")

	paths := deriveBufferPaths(bufferPrefix)
	result, err := makebuffer.Build(makebuffer.Options{
		InputPath:    input,
		BufferPath:   paths.Tweet,
		UserPath:     paths.User,
		WordPath:     paths.Word,
		TweetIDPath:  paths.TweetID,
		SummaryPath:  paths.Summary,
		StopwordPath: stopword,
		MinUserFreq:  userFreq,
		MinWordFreq:  wordFreq,
	})
	if err != nil {
		return fmt.Errorf("make-buffer: %w", err)
	}

	slog.Info("make-buffer complete",
		"users", result.UserCount,
		"words", result.WordCount,
		"valid_tweets", result.Summary.ValidTweetNum,
		"total_tweets", result.Summary.TotalTweetNum,
	)
	return nil
}
