// Command packed scans Go packages for hook annotations and generates the
// files that declare method hooks to the packed runtime.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
