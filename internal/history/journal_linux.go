//go:build linux

package history

import (
	"bytes"
	"fmt"
	"os/exec"
)

// runJournalctl queries the systemd journal for ani-cli's tag over an
// absolute unix-seconds window.
func runJournalctl(sinceSecs, untilSecs int64) (string, error) {
	cmd := exec.Command("journalctl",
		"-t", "ani-cli",
		"--since", fmt.Sprintf("@%d", sinceSecs),
		"--until", fmt.Sprintf("@%d", untilSecs),
		"--output=short-unix",
		"--no-pager",
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return out.String(), nil
}
