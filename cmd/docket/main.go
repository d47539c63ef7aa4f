// Command docket submits contract documents for analysis, runs jobs in
// process or on a task queue, and reports their status and results.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
