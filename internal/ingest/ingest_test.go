package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListImages(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.png"), pngMagic)
	writeFile(t, filepath.Join(root, "a.JPG"), []byte{0xFF, 0xD8, 0xFF})
	writeFile(t, filepath.Join(root, "notes.txt"), []byte("x"))
	writeFile(t, filepath.Join(root, "league", "night.jpeg"), []byte{0xFF, 0xD8, 0xFF})
	writeFile(t, filepath.Join(root, ".cache", "thumb.png"), pngMagic)
	writeFile(t, filepath.Join(root, ".hidden.png"), pngMagic)

	got, stats, err := ListImages(root, true)
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	want := []string{
		filepath.Join(root, "a.JPG"),
		filepath.Join(root, "b.png"),
		filepath.Join(root, "league", "night.jpeg"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
	if stats.Matched != 3 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}

	all, _, err := ListImages(root, false)
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("with hidden: got %d paths, want 5", len(all))
	}
}

func TestListImagesErrors(t *testing.T) {
	if _, _, err := ListImages("  ", true); err == nil {
		t.Error("expected error for blank root")
	}
	if _, _, err := ListImages(filepath.Join(t.TempDir(), "missing"), true); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "final.png")
	data := append(append([]byte{}, pngMagic...), 1, 2, 3)
	writeFile(t, path, data)

	f, err := ReadFile(path, 1<<20)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	sum := sha256.Sum256(data)
	if f.HashHex != hex.EncodeToString(sum[:]) {
		t.Errorf("hash = %s", f.HashHex)
	}
	if f.Upload.MediaType != "image/png" || f.Upload.Filename != "final.png" {
		t.Errorf("upload = %+v", f.Upload)
	}
	if diff := cmp.Diff(data, f.Upload.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}

	if _, err := ReadFile(path, 4); !errors.Is(err, common.ErrValidation) {
		t.Errorf("oversized: err = %v, want validation", err)
	}

	txt := filepath.Join(dir, "notes.txt")
	writeFile(t, txt, []byte("x"))
	if _, err := ReadFile(txt, 0); !errors.Is(err, common.ErrValidation) {
		t.Errorf("bad extension: err = %v, want validation", err)
	}
}

func TestMediaTypeForPath(t *testing.T) {
	for path, want := range map[string]string{
		"a.png":  "image/png",
		"a.JPG":  "image/jpeg",
		"a.jpeg": "image/jpeg",
	} {
		if got := MediaTypeForPath(path); got != want {
			t.Errorf("MediaTypeForPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestStartWatcher(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "existing.png")
	writeFile(t, existing, pngMagic)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, SkipHidden: true})
	if err != nil {
		t.Fatalf("StartWatcher: %v", err)
	}

	waitFor := func(want string) {
		t.Helper()
		deadline := time.After(5 * time.Second)
		for {
			select {
			case p := <-events:
				if p == want {
					return
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %s", want)
			}
		}
	}

	waitFor(existing)

	fresh := filepath.Join(root, "fresh.jpg")
	writeFile(t, fresh, []byte{0xFF, 0xD8, 0xFF})
	waitFor(fresh)

	cancel()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel not closed after cancel")
		}
	}
}

func TestStartWatcherNoRoots(t *testing.T) {
	if _, _, err := StartWatcher(context.Background(), WatchConfig{}); err == nil {
		t.Fatal("expected error without roots")
	}
}
