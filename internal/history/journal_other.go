//go:build !linux

package history

// runJournalctl is a no-op where there is no systemd journal; detection then
// rests on the snapshot diff alone.
func runJournalctl(sinceSecs, untilSecs int64) (string, error) {
	return "", nil
}
