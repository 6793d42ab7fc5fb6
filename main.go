// The main package for the timeline-scraper executable.
package main

import (
	"github.com/JakeFAU/timeline-scraper/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
