//go:build !unix

package orchestrator

import "os/exec"

// isolate relies on the default Cancel, which kills only the worker itself.
func isolate(*exec.Cmd) {}
