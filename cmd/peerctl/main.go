// peerctl is an operator tool for the PeerFuse matching engine. It scores
// profile pairs offline, runs pool simulations for weight tuning, and prints
// the effective scoring weights.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
