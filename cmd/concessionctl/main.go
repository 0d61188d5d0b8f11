// Command concessionctl runs operator tasks against the concession store.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(newCLI()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "concessionctl: %v\n", err)
		os.Exit(1)
	}
}
