package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/twlda/twlda/internal/dict"
	"github.com/twlda/twlda/internal/infer"
	"github.com/twlda/twlda/internal/record"
	"github.com/twlda/twlda/internal/segment"
)

const (
	inferProbMode  = infer.Probability
	inferScoreMode = infer.Score
)

func newInferCmd(use, short string, mode infer.Mode) *cobra.Command {
	c := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return inferHandler(cmd, mode)
		},
	}
	c.Flags().String("input", "", "Input tweet text file (required)")
	c.Flags().String("buffer", "", "Path prefix of buffer files (required)")
	c.Flags().String("hyper-param", "", "Hyperparameter file (required)")
	c.Flags().String("input-param", "", "Path prefix of input parameter files (required)")
	c.Flags().String("output", "", "Output text file (required)")
	return c
}

func inferHandler(cmd *cobra.Command, mode infer.Mode) error {
	inputPath, err := requiredString(cmd, "input")
	if err != nil {
		return err
	}
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

	hyper, err := record.LoadHyperParams(hyperParamPath)
	if err != nil {
		return fmt.Errorf("infer: %w", err)
	}

	bufPaths := deriveBufferPaths(bufferPrefix)
	labels, err := dict.LoadLabels(bufPaths.Word)
	if err != nil {
		return fmt.Errorf("infer: %w", err)
	}
	wordIDs := make(map[string]int, len(labels))
	for i, w := range labels {
		wordIDs[w] = i
	}

	paramPaths := deriveParamPaths(inputParamPrefix)
	model, err := infer.LoadModel(paramPaths.Topic, hyper.TopicCount, hyper.WordCount, hyper.BetaM1)
	if err != nil {
		return fmt.Errorf("infer: %w", err)
	}

	r, err := segment.Open(inputPath, record.TextSegment)
	if err != nil {
		return fmt.Errorf("infer: %w", err)
	}
	defer r.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("infer: create %s: %w", outputPath, err)
	}
	defer out.Close()
	w := bufio.NewWriter(out)

	for {
		item := r.Next(false)
		if item == nil {
			break
		}
		line := string(record.TrimTerminator(item))
		tokens := infer.Tokenize(line)
		ids := infer.MapWords(tokens, wordIDs)
		result := model.Infer(ids, mode)
		if _, err := fmt.Fprintf(w, "%d\t%g\t%s\n", result.Topic, result.Value, line); err != nil {
			return fmt.Errorf("infer: write: %w", err)
		}
	}
	return w.Flush()
}
