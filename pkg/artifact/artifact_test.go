package artifact

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
)

// writeTree creates files (relative path -> content) under root.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

// readZip returns entry name -> content for regular entries, plus all names.
func readZip(t *testing.T, path string) (map[string]string, []string) {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("failed to open archive %s: %v", path, err)
	}
	defer r.Close()

	contents := make(map[string]string)
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("failed to open entry %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("failed to read entry %s: %v", f.Name, err)
		}
		contents[f.Name] = string(data)
	}
	sort.Strings(names)
	return contents, names
}

func TestClassify(t *testing.T) {
	tests := []struct {
		target string
		want   Platform
	}{
		{"StandaloneWindows64", PlatformWindows},
		{"StandaloneWindows", PlatformWindows},
		{"Win64", PlatformWindows},
		{"StandaloneOSX", PlatformMacOS},
		{"OSXUniversal", PlatformMacOS},
		{"WebGL", PlatformWeb},
		{"Android", PlatformOther},
		{"StandaloneLinux64", PlatformOther},
		{"", PlatformOther},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if got := Classify(tt.target); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}
}

func TestArchive_DirectoryIsRootedAtDirectory(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "build-StandaloneWindows64-pr-7")
	writeTree(t, src, map[string]string{
		"Game.exe":                "exe",
		"Game_Data/level0":        "level",
		"Game_Data/Managed/a.dll": "dll",
	})
	dst := src + ArchiveSuffix

	if err := Archive(src, dst); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	contents, names := readZip(t, dst)
	want := map[string]string{
		"Game.exe":                "exe",
		"Game_Data/level0":        "level",
		"Game_Data/Managed/a.dll": "dll",
	}
	for name, content := range want {
		if contents[name] != content {
			t.Errorf("entry %q = %q, want %q", name, contents[name], content)
		}
	}
	for _, n := range names {
		if filepath.IsAbs(n) || n == "build-StandaloneWindows64-pr-7/" {
			t.Errorf("unexpected prefixed entry %q", n)
		}
	}
	if !contains(names, "Game_Data/") || !contains(names, "Game_Data/Managed/") {
		t.Errorf("directory entries missing from %v", names)
	}
}

func TestArchive_SingleFile(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "out", "game.apk")
	writeTree(t, filepath.Join(tmp, "out"), map[string]string{"game.apk": "apk-bytes"})

	dst := src + ArchiveSuffix
	if err := Archive(src, dst); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	contents, names := readZip(t, dst)
	if len(names) != 1 || names[0] != "game.apk" {
		t.Fatalf("entries = %v, want [game.apk]", names)
	}
	if contents["game.apk"] != "apk-bytes" {
		t.Errorf("content = %q", contents["game.apk"])
	}
}

func TestArchive_RerunReplacesPreviousArchive(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "build")
	writeTree(t, src, map[string]string{"a.txt": "one"})
	dst := src + ArchiveSuffix

	// A corrupt leftover must not affect the new archive.
	if err := os.WriteFile(dst, []byte("not a zip"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Archive(src, dst); err != nil {
		t.Fatalf("first Archive() error = %v", err)
	}
	first, _ := readZip(t, dst)

	if err := Archive(src, dst); err != nil {
		t.Fatalf("second Archive() error = %v", err)
	}
	second, names := readZip(t, dst)

	if len(names) != 1 || first["a.txt"] != "one" || second["a.txt"] != "one" {
		t.Errorf("archives differ or are wrong: first=%v second=%v names=%v", first, second, names)
	}

	leftovers, _ := filepath.Glob(filepath.Join(tmp, ".archive-*"))
	if len(leftovers) != 0 {
		t.Errorf("temporary files left behind: %v", leftovers)
	}
}

func TestArchive_MissingSource(t *testing.T) {
	tmp := t.TempDir()
	if err := Archive(filepath.Join(tmp, "missing"), filepath.Join(tmp, "missing.zip")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestPackager_Package(t *testing.T) {
	t.Run("windows directory is archived", func(t *testing.T) {
		tmp := t.TempDir()
		nominal := filepath.Join(tmp, "build-StandaloneWindows64-pr-1")
		writeTree(t, nominal, map[string]string{"Game.exe": "x"})

		res := NewPackager().Package(nominal, "StandaloneWindows64")
		if res.Degraded != nil {
			t.Fatalf("unexpected degrade: %v", res.Degraded)
		}
		if res.Path != nominal+".zip" || !res.Archived {
			t.Errorf("Path = %q archived=%v, want %q archived", res.Path, res.Archived, nominal+".zip")
		}
		if _, err := os.Stat(res.Path); err != nil {
			t.Errorf("archive not written: %v", err)
		}
	})

	t.Run("macOS app bundle is probed and archived", func(t *testing.T) {
		tmp := t.TempDir()
		nominal := filepath.Join(tmp, "build-StandaloneOSX-pr-1")
		writeTree(t, nominal+".app", map[string]string{"Contents/Info.plist": "plist"})

		res := NewPackager().Package(nominal, "StandaloneOSX")
		if res.Path != nominal+".app.zip" {
			t.Fatalf("Path = %q, want %q", res.Path, nominal+".app.zip")
		}
		contents, _ := readZip(t, res.Path)
		if contents["Contents/Info.plist"] != "plist" {
			t.Errorf("bundle contents missing: %v", contents)
		}
	})

	t.Run("macOS without suffix falls back to nominal", func(t *testing.T) {
		tmp := t.TempDir()
		nominal := filepath.Join(tmp, "build-OSXUniversal-pr-1")
		writeTree(t, nominal, map[string]string{"bin": "x"})

		res := NewPackager().Package(nominal, "OSXUniversal")
		if res.Path != nominal+".zip" {
			t.Errorf("Path = %q, want %q", res.Path, nominal+".zip")
		}
	})

	t.Run("web directory is left unarchived", func(t *testing.T) {
		tmp := t.TempDir()
		nominal := filepath.Join(tmp, "build-WebGL-pr-1")
		writeTree(t, nominal, map[string]string{"index.html": "<html>"})

		res := NewPackager().Package(nominal, "WebGL")
		if res.Path != nominal || res.Archived {
			t.Errorf("Path = %q archived=%v, want unarchived %q", res.Path, res.Archived, nominal)
		}
		if _, err := os.Stat(nominal + ".zip"); !os.IsNotExist(err) {
			t.Error("web output must not be archived")
		}
	})

	t.Run("other targets are unchanged", func(t *testing.T) {
		tmp := t.TempDir()
		nominal := filepath.Join(tmp, "build-Android-pr-1")
		writeTree(t, tmp, map[string]string{"build-Android-pr-1": "apk"})

		res := NewPackager().Package(nominal, "Android")
		if res.Path != nominal || res.Archived {
			t.Errorf("Path = %q, want %q", res.Path, nominal)
		}
	})

	t.Run("missing output degrades to nominal path", func(t *testing.T) {
		tmp := t.TempDir()
		nominal := filepath.Join(tmp, "never-built")

		res := NewPackager().Package(nominal, "StandaloneWindows64")
		if res.Path != nominal {
			t.Errorf("Path = %q, want nominal %q", res.Path, nominal)
		}
		if res.Degraded == nil {
			t.Error("expected Degraded to be set")
		}
	})

	t.Run("archive failure degrades to nominal path", func(t *testing.T) {
		tmp := t.TempDir()
		nominal := filepath.Join(tmp, "build-Win64-pr-1")
		writeTree(t, nominal, map[string]string{"a": "b"})

		p := &Packager{archive: func(src, dst string) error { return errors.New("disk full") }}
		res := p.Package(nominal, "Win64")
		if res.Path != nominal || res.Archived {
			t.Errorf("Path = %q, want nominal %q", res.Path, nominal)
		}
		if res.Degraded == nil {
			t.Error("expected Degraded to be set")
		}
	})
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		name         string
		wantType     string
		wantEncoding string
	}{
		{"bundle.js.br", "application/javascript", "br"},
		{"data.wasm", "application/wasm", ""},
		{"Build/game.wasm.gz", "application/wasm", "gzip"},
		{"index.html", "text/html", ""},
		{"TemplateData/style.css", "text/css", ""},
		{"TemplateData/logo.PNG", "image/png", ""},
		{"Build/game.data.br", "application/octet-stream", "br"},
		{"Build/game.framework.js.gz", "application/javascript", "gzip"},
		{"manifest.json", "application/json", ""},
		{"archive.gz", "application/octet-stream", "gzip"},
		{"LICENSE", "application/octet-stream", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, enc := ContentTypeFor(tt.name)
			if ct != tt.wantType || enc != tt.wantEncoding {
				t.Errorf("ContentTypeFor(%q) = (%q, %q), want (%q, %q)", tt.name, ct, enc, tt.wantType, tt.wantEncoding)
			}
		})
	}
}

func TestSingleFileContentType(t *testing.T) {
	if got := SingleFileContentType("build-StandaloneWindows64-pr-1.zip"); got != ContentTypeZip {
		t.Errorf("zip file content type = %q", got)
	}
	if got := SingleFileContentType("game.apk"); got != ContentTypeBinary {
		t.Errorf("apk content type = %q", got)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
