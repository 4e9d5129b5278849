// Command kioskctl drives a retail kiosk over its serial link: it mirrors
// the product catalog to the device and records the sales it reports.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
