//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package runner

import "os/exec"

func setProcessGroup(*exec.Cmd) {}
