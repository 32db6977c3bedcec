package main

import (
	"fmt"
	"os"
)

func main() {
	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "stillmem: %v\n", err)
		os.Exit(1)
	}
}
