package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/twlda/twlda/internal/config"
	"github.com/twlda/twlda/internal/gibbs"
	"github.com/twlda/twlda/internal/progress"
	"github.com/twlda/twlda/internal/record"
	"github.com/twlda/twlda/internal/train"
)

func registerHyperFlags(c *cobra.Command) {
	c.Flags().Int("topic", 100, "Number of topics")
	c.Flags().Float64("alpha-m1", 0.5, "Alpha minus one")
	c.Flags().Float64("beta-m1", 0.01, "Beta minus one")
	c.Flags().Float64("beta-bg-m1", 0.1, "Background beta minus one")
	c.Flags().Float64("gamma-m1", 20.0, "Gamma minus one")
}

func registerRunFlags(c *cobra.Command) {
	c.Flags().Int("thread", 0, "Number of threads (default: TWLDA_THREADS or all CPUs)")
	c.Flags().Int("batch", 16, "Batch size in megabytes")
	c.Flags().Int("iterate", 100, "Number of iterations")
}

func threadCount(cmd *cobra.Command) int {
	n, _ := cmd.Flags().GetInt("thread")
	if n > 0 {
		return n
	}
	return config.Threads()
}

func newTrainCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "train",
		Short: "Train a fresh model from a tweet buffer",
		RunE:  trainHandler,
	}
	c.Flags().String("buffer", "", "Path prefix of buffer files (required)")
	c.Flags().String("output-param", "", "Path prefix of output parameter files (required)")
	c.Flags().String("hyper-param", "", "Hyperparameter file to write (required)")
	registerHyperFlags(c)
	registerRunFlags(c)
	return c
}

func newTrainContCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "train-cont",
		Short: "Continue training a model from a previous checkpoint",
		RunE:  trainContHandler,
	}
	c.Flags().String("buffer", "", "Path prefix of buffer files (required)")
	c.Flags().String("output-param", "", "Path prefix of output parameter files (required)")
	c.Flags().String("hyper-param", "", "Hyperparameter file to load (required)")
	c.Flags().String("input-param", "", "Path prefix of input parameter files (required)")
	registerRunFlags(c)
	return c
}

func trainHandler(cmd *cobra.Command, args []string) error {
	bufferPrefix, err := requiredString(cmd, "buffer")
	if err != nil {
		return err
	}
	outputParamPrefix, err := requiredString(cmd, "output-param")
	if err != nil {
		return err
	}
	hyperParamPath, err := requiredString(cmd, "hyper-param")
	if err != nil {
		return err
	}

	topic, _ := cmd.Flags().GetInt("topic")
	alphaM1, _ := cmd.Flags().GetFloat64("alpha-m1")
	betaM1, _ := cmd.Flags().GetFloat64("beta-m1")
	betaBgM1, _ := cmd.Flags().GetFloat64("beta-bg-m1")
	gammaM1, _ := cmd.Flags().GetFloat64("gamma-m1")
	threads := threadCount(cmd)
	batchMB, _ := cmd.Flags().GetInt("batch")
	iterations, _ := cmd.Flags().GetInt("iterate")

	bufPaths := deriveBufferPaths(bufferPrefix)
	summary, err := record.LoadSummary(bufPaths.Summary)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	hyper := record.HyperParams{
		TopicCount: topic,
		WordCount:  summary.WordCount,
		AlphaM1:    alphaM1,
		BetaM1:     betaM1,
		BetaBgM1:   betaBgM1,
		GammaM1:    gammaM1,
	}
	if err := record.SaveHyperParams(hyperParamPath, hyper); err != nil {
		return fmt.Errorf("train: %w", err)
	}

	model := train.NewModel(hyperToGibbs(hyper), threads)
	workDir := filepath.Dir(outputParamPrefix)

	initCkpt := train.Checkpoint{
		TweetParamPath: filepath.Join(workDir, "twlda-init.tweet-param.bin"),
		UserParamPath:  filepath.Join(workDir, "twlda-init.user-param.bin"),
	}
	defer os.Remove(initCkpt.TweetParamPath)
	defer os.Remove(initCkpt.UserParamPath)

	if err := model.Initialize(train.Streams{
		TweetPath:         bufPaths.Tweet,
		OutTweetParamPath: initCkpt.TweetParamPath,
		OutUserParamPath:  initCkpt.UserParamPath,
	}, 1); err != nil {
		return fmt.Errorf("train: init: %w", err)
	}

	outParamPaths := deriveParamPaths(outputParamPrefix)
	return runIterations(model, bufPaths.Tweet, workDir, int64(batchMB)<<20, iterations, initCkpt, train.Checkpoint{
		TweetParamPath: outParamPaths.Tweet,
		UserParamPath:  outParamPaths.User,
	}, outParamPaths.Topic)
}

func trainContHandler(cmd *cobra.Command, args []string) error {
	bufferPrefix, err := requiredString(cmd, "buffer")
	if err != nil {
		return err
	}
	outputParamPrefix, err := requiredString(cmd, "output-param")
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

	threads := threadCount(cmd)
	batchMB, _ := cmd.Flags().GetInt("batch")
	iterations, _ := cmd.Flags().GetInt("iterate")

	bufPaths := deriveBufferPaths(bufferPrefix)
	summary, err := record.LoadSummary(bufPaths.Summary)
	if err != nil {
		return fmt.Errorf("train-cont: %w", err)
	}

	hyper, err := record.LoadHyperParams(hyperParamPath)
	if err != nil {
		return fmt.Errorf("train-cont: %w", err)
	}
	if hyper.WordCount != summary.WordCount {
		return fmt.Errorf("train-cont: hyper-param word count %d does not match buffer word count %d", hyper.WordCount, summary.WordCount)
	}

	model := train.NewModel(hyperToGibbs(hyper), threads)
	inParamPaths := deriveParamPaths(inputParamPrefix)
	if err := model.LoadTopicParams(inParamPaths.Topic); err != nil {
		return fmt.Errorf("train-cont: %w", err)
	}

	workDir := filepath.Dir(outputParamPrefix)
	outParamPaths := deriveParamPaths(outputParamPrefix)
	return runIterations(model, bufPaths.Tweet, workDir, int64(batchMB)<<20, iterations, train.Checkpoint{
		TweetParamPath: inParamPaths.Tweet,
		UserParamPath:  inParamPaths.User,
	}, train.Checkpoint{
		TweetParamPath: outParamPaths.Tweet,
		UserParamPath:  outParamPaths.User,
	}, outParamPaths.Topic)
}

func hyperToGibbs(h record.HyperParams) gibbs.Hyper {
	return gibbs.Hyper{
		TopicCount: h.TopicCount,
		WordCount:  h.WordCount,
		AlphaM1:    h.AlphaM1,
		BetaM1:     h.BetaM1,
		BetaBgM1:   h.BetaBgM1,
		GammaM1:    h.GammaM1,
	}
}

// runIterations drives the orchestrator for the requested number of
// iterations, reporting per-iteration progress on a carriage-returned
// stdout line, then flushes topic params and prints the end-of-run summary
// table alongside the final update rate and word density.
func runIterations(model *train.Model, tweetPath, workDir string, batchBytes int64, iterations int, initial, final train.Checkpoint, topicParamPath string) error {
	orch := train.NewOrchestrator(model, tweetPath, workDir, batchBytes)

	bar := progress.NewBar(os.Stdout, "training")
	var lastStat train.IterationStats
	var totalWords int64
	stat, err := orch.Run(iterations, initial, final, func(i int, s train.IterationStats) {
		lastStat = s
		totalWords += s.WordsProcessed
		bar.Report(totalWords, s.UpdateRate(), s.Density)
	})
	bar.Done()
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	lastStat = stat

	if err := model.SaveTopicParams(topicParamPath); err != nil {
		return fmt.Errorf("train: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"TOPIC", "WORDS"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	for t := 0; t <= model.Hyper.TopicCount; t++ {
		label := fmt.Sprintf("%d", t)
		if t == model.Hyper.TopicCount {
			label = "background"
		}
		table.Append([]string{label, fmt.Sprintf("%d", model.Counts.TopicTotal(t))})
	}
	table.Render()

	fmt.Printf("final update rate: %.2f%%, density: %.4f\n", lastStat.UpdateRate()*100, lastStat.Density)
	return nil
}
