// Command twlda trains and queries Twitter-LDA topic models: make-buffer,
// train, train-cont, infer-prob, infer-score, dump-topic, dump-user, and
// dump-tweet.
package main

import (
	"fmt"
	"os"

	"github.com/twlda/twlda/cmd"
)

func main() {
	root := cmd.NewCLI()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
