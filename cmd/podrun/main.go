// Command podrun turns a document into a multi-speaker podcast: an LLM drafts
// the dialogue script, a streaming speech model voices every line, and the
// per-turn audio is stitched into one WAV file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
