// Package main is the entry point for procsniff.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/procsniff/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
