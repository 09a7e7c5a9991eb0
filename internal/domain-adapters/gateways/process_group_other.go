//go:build !unix

package gateways

import "os/exec"

// isolateProcessGroup is a no-op where process groups are unavailable;
// cancellation kills only the direct child.
func isolateProcessGroup(*exec.Cmd) {}
