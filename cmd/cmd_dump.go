package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/twlda/twlda/internal/dict"
	"github.com/twlda/twlda/internal/dump"
	"github.com/twlda/twlda/internal/record"
)

func newDumpTopicCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "dump-topic",
		Short: "Dump the topic-word distribution to a text file",
		RunE:  dumpTopicHandler,
	}
	c.Flags().String("buffer", "", "Path prefix of buffer files (required)")
	c.Flags().String("hyper-param", "", "Hyperparameter file (required)")
	c.Flags().String("input-param", "", "Path prefix of input parameter files (required)")
	c.Flags().String("output", "", "Output text file (required)")
	c.Flags().Bool("distribution", false, "Print normalized posterior shares instead of raw counts")
	return c
}

func dumpTopicHandler(cmd *cobra.Command, args []string) error {
	bufferPrefix, err := requiredString(cmd, "buffer")
	if err != nil {
		return err
	}
	hyperParamPath, err := requiredString(cmd, "hyper-param")
	if err != nil {
		return err
	}
	inputParamPrefix, err := requiredString(cmd, "input-param")
	if err != nil {
		return err
	}
	outputPath, err := requiredString(cmd, "output")
	if err != nil {
		return err
	}
	normalize, _ := cmd.Flags().GetBool("distribution")

	hyper, err := record.LoadHyperParams(hyperParamPath)
	if err != nil {
		return fmt.Errorf("dump-topic: %w", err)
	}
	bufPaths := deriveBufferPaths(bufferPrefix)
	words, err := dict.LoadLabels(bufPaths.Word)
	if err != nil {
		return fmt.Errorf("dump-topic: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("dump-topic: create %s: %w", outputPath, err)
	}
	defer out.Close()

	paramPaths := deriveParamPaths(inputParamPrefix)
	return dump.Topic(out, words, paramPaths.Topic, hyper.TopicCount, hyper.WordCount, hyper.BetaM1, normalize)
}

func newDumpUserCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "dump-user",
		Short: "Dump the user-topic distribution to a text file",
		RunE:  dumpUserHandler,
	}
	c.Flags().String("buffer", "", "Path prefix of buffer files (required)")
	c.Flags().String("hyper-param", "", "Hyperparameter file (required)")
	c.Flags().String("input-param", "", "Path prefix of input parameter files (required)")
	c.Flags().String("output", "", "Output text file (required)")
	c.Flags().Bool("distribution", false, "Print normalized posterior shares instead of raw counts")
	return c
}

func dumpUserHandler(cmd *cobra.Command, args []string) error {
	bufferPrefix, err := requiredString(cmd, "buffer")
	if err != nil {
		return err
	}
	hyperParamPath, err := requiredString(cmd, "hyper-param")
	if err != nil {
		return err
	}
	inputParamPrefix, err := requiredString(cmd, "input-param")
	if err != nil {
		return err
	}
	outputPath, err := requiredString(cmd, "output")
	if err != nil {
		return err
	}
	normalize, _ := cmd.Flags().GetBool("distribution")

	hyper, err := record.LoadHyperParams(hyperParamPath)
	if err != nil {
		return fmt.Errorf("dump-user: %w", err)
	}
	bufPaths := deriveBufferPaths(bufferPrefix)
	users, err := dict.LoadLabels(bufPaths.User)
	if err != nil {
		return fmt.Errorf("dump-user: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("dump-user: create %s: %w", outputPath, err)
	}
	defer out.Close()

	paramPaths := deriveParamPaths(inputParamPrefix)
	return dump.User(out, users, paramPaths.User, hyper.TopicCount, hyper.AlphaM1, normalize)
}

func newDumpTweetCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "dump-tweet",
		Short: "Dump the topic assigned to each input tweet to a text file",
		RunE:  dumpTweetHandler,
	}
	c.Flags().String("input", "", "Input tweet text file (required)")
	c.Flags().String("buffer", "", "Path prefix of buffer files (required)")
	c.Flags().String("hyper-param", "", "Hyperparameter file (required)")
	c.Flags().String("input-param", "", "Path prefix of input parameter files (required)")
	c.Flags().String("output", "", "Output text file (required)")
	return c
}

func dumpTweetHandler(cmd *cobra.Command, args []string) error {
	inputPath, err := requiredString(cmd, "input")
	if err != nil {
		return err
	}
	bufferPrefix, err := requiredString(cmd, "buffer")
	if err != nil {
		return err
	}
	if _, err := requiredString(cmd, "hyper-param"); err != nil {
		return err
	}
	inputParamPrefix, err := requiredString(cmd, "input-param")
	if err != nil {
		return err
	}
	outputPath, err := requiredString(cmd, "output")
	if err != nil {
		return err
	}

	bufPaths := deriveBufferPaths(bufferPrefix)
	paramPaths := deriveParamPaths(inputParamPrefix)

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("dump-tweet: create %s: %w", outputPath, err)
	}
	defer out.Close()

	return dump.Tweet(out, paramPaths.Tweet, inputPath, bufPaths.TweetID)
}
