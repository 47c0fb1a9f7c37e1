// Command hotelctl drives the recommendation pipeline from a terminal: ask
// questions, sync the catalog and clear sessions against the configured
// backends.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
