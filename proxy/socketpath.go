package proxy

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// MakeSocketPath returns a fresh unix socket path inside dir. An empty dir
// selects os.TempDir(). Uniqueness comes from a random uuid, nothing is
// registered or reserved.
func MakeSocketPath(dir string) string {
	if dir == "" {
		dir = os.TempDir()
	}

	return filepath.Join(dir, "server-"+uuid.NewString()+".sock")
}
