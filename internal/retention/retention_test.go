package retention

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestEnforcePrunesOldestDayFirst(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "coinbase", "BTC-USD", "MD")

	writeFile(t, filepath.Join(dir, "price.01.01.26.bin"), 1000)
	writeFile(t, filepath.Join(dir, "price.02.01.26.bin"), 1000)
	writeFile(t, filepath.Join(dir, "price.03.01.26.bin"), 1000)

	enforce(root, 1500)

	if _, err := os.Stat(filepath.Join(dir, "price.01.01.26.bin")); !os.IsNotExist(err) {
		t.Fatalf("expected oldest day file to be pruned")
	}
	if _, err := os.Stat(filepath.Join(dir, "price.03.01.26.bin")); err != nil {
		t.Fatalf("expected newest day file to survive: %v", err)
	}
}

func TestEnforceNoOpUnderBudget(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "coinbase", "BTC-USD", "MD")
	writeFile(t, filepath.Join(dir, "price.01.01.26.bin"), 100)

	enforce(root, 10_000)

	if _, err := os.Stat(filepath.Join(dir, "price.01.01.26.bin")); err != nil {
		t.Fatalf("file should not have been pruned: %v", err)
	}
}
