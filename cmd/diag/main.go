// Command diag fetches one element-set group and prints what the parser
// accepted and where each satellite is.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
