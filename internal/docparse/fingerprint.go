package docparse

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
)

// Fingerprint derives a document's content identity from its path,
// modification time, and size. Unchanged files keep their fingerprint; any
// edit that touches mtime or size yields a new one, which sync treats as a
// changed document.
func Fingerprint(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat file failed: %w", err)
	}
	seed := fmt.Sprintf("%s_%d_%d", path, info.ModTime().UnixNano(), info.Size())
	sum := md5.Sum([]byte(seed))
	return hex.EncodeToString(sum[:]), nil
}
