// Package main provides the entry point for the microblog core service.
package main

import (
	"os"

	"github.com/pdenham/microblog/cmd/microblog/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
