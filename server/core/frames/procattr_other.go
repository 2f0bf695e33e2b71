//go:build !unix

package frames

import "os/exec"

func configureProcessGroup(cmd *exec.Cmd) {}
