//go:build windows

package core

import "os/exec"

func configureCommandProcess(cmd *exec.Cmd) {}
