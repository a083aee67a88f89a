// Package cmd assembles the twlda CLI: one cobra.Command per subcommand
// dispatching on the position-1 subcommand name (make-buffer, train,
// train-cont, infer-prob, infer-score, dump-topic, dump-user, dump-tweet).
package cmd

import (
	"log/slog"
	"os"
	"runtime"

	"github.com/containerd/console"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/twlda/twlda/internal/config"
)

// appendEnvDocs appends an "Environment Variables" section to cmd's usage
// template.
func appendEnvDocs(cmd *cobra.Command, envs []config.EnvVar) {
	if len(envs) == 0 {
		return
	}
	usage := "\nEnvironment Variables:\n"
	for _, e := range envs {
		usage += "      " + pad(e.Name, 16) + e.Description + "\n"
	}
	cmd.SetUsageTemplate(cmd.UsageTemplate() + usage)
}

func pad(s string, n int) string {
	for len(s) < n {
		s += " "
	}
	return s
}

// NewCLI assembles the root command and its subcommand tree.
func NewCLI() *cobra.Command {
	level := slog.LevelInfo
	if config.Debug() {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if runtime.GOOS == "windows" && term.IsTerminal(int(os.Stdout.Fd())) {
		console.ConsoleFromFile(os.Stdin) //nolint:errcheck
	}

	rootCmd := &cobra.Command{
		Use:           "twlda",
		Short:         "Collapsed Gibbs sampler for the Twitter-LDA topic model",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	makeBufferCmd := newMakeBufferCmd()
	trainCmd := newTrainCmd()
	trainContCmd := newTrainContCmd()
	inferProbCmd := newInferCmd("infer-prob", "Infer the top topic (by probability) for each input tweet", inferProbMode)
	inferScoreCmd := newInferCmd("infer-score", "Infer the top topic (by score) for each input tweet", inferScoreMode)
	dumpTopicCmd := newDumpTopicCmd()
	dumpUserCmd := newDumpUserCmd()
	dumpTweetCmd := newDumpTweetCmd()

	envs := config.AsMap()
	appendEnvDocs(trainCmd, []config.EnvVar{envs["TWLDA_DEBUG"], envs["TWLDA_THREADS"]})
	appendEnvDocs(trainContCmd, []config.EnvVar{envs["TWLDA_DEBUG"], envs["TWLDA_THREADS"]})
	appendEnvDocs(inferProbCmd, []config.EnvVar{envs["TWLDA_DEBUG"], envs["TWLDA_THREADS"]})
	appendEnvDocs(inferScoreCmd, []config.EnvVar{envs["TWLDA_DEBUG"], envs["TWLDA_THREADS"]})

	rootCmd.AddCommand(
		makeBufferCmd,
		trainCmd,
		trainContCmd,
		inferProbCmd,
		inferScoreCmd,
		dumpTopicCmd,
		dumpUserCmd,
		dumpTweetCmd,
	)

	return rootCmd
}
