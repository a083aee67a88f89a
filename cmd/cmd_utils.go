package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// requiredString reads a required string flag, returning a "missing option"
// diagnostic if it was never set.
func requiredString(cmd *cobra.Command, name string) (string, error) {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", fmt.Errorf("missing required option --%s", name)
	}
	return v, nil
}

// bufferPaths derives the five make-buffer output paths from the --buffer
// prefix: <buffer>.{buffer,id,word,user,summary}.{bin,txt}.
type bufferPaths struct {
	Tweet   string
	TweetID string
	Word    string
	User    string
	Summary string
}

func deriveBufferPaths(prefix string) bufferPaths {
	return bufferPaths{
		Tweet:   prefix + ".buffer.bin",
		TweetID: prefix + ".id.bin",
		Word:    prefix + ".word.txt",
		User:    prefix + ".user.txt",
		Summary: prefix + ".summary.txt",
	}
}

// paramPaths derives the three param-stream paths from an --input-param or
// --output-param prefix: <output-param>.{user-param,tweet-param,
// topic-param}.bin.
type paramPaths struct {
	Tweet string
	User  string
	Topic string
}

func deriveParamPaths(prefix string) paramPaths {
	return paramPaths{
		Tweet: prefix + ".tweet-param.bin",
		User:  prefix + ".user-param.bin",
		Topic: prefix + ".topic-param.bin",
	}
}
