//go:build !linux

package postmaster

import "os/exec"

// configureSysProcAttr is a no-op on platforms without Pdeathsig support.
func configureSysProcAttr(_ *exec.Cmd) {}
