//go:build !unix

package buildpipeline

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

func signalName(ps *os.ProcessState) (string, bool) {
	return "", false
}
