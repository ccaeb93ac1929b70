// Package testutil provides testing utilities for ndvlink tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

// Fixture is a small development server description: one user, three
// storage areas and a library whose objects live in two different areas.
const Fixture = `host: devhost
users:
  DEV: secret
page_size: 2
areas:
  - {dbid: 0, fnr: 0, kind: inactive}
  - {dbid: 10, fnr: 32, kind: user-library}
  - {dbid: 5, fnr: 7, kind: primary-library}
libraries:
  - name: ABAK-T
    dbid: 10
    fnr: 32
    objects:
      - name: "#BHOBICP"
        long_name: HOBBY-INTERFACE-CALL-PROGRAM-FOR-BATCH
        type: NSP
        user: DEV
        date: 2024-03-01T10:00:00Z
        source: |
          DEFINE DATA LOCAL
          END-DEFINE
          WRITE 'HELLO'
          END
      - name: SUB1
        type: NSN
        dbid: 5
        fnr: 7
        source: "* lives in the primary area"
      - name: MENU
        type: NSM
  - name: ABAK-U
  - name: SYSTEM
`

// FixturePath is where SetupFixture places the fixture.
const FixturePath = "/srv/ndvlink/fixture.yaml"

// SetupFixture returns an in-memory filesystem holding content at
// FixturePath. An empty content uses Fixture.
func SetupFixture(t *testing.T, content string) afero.Fs {
	t.Helper()

	if content == "" {
		content = Fixture
	}
	fs := afero.NewMemMapFs()
	WriteFile(t, fs, FixturePath, content)
	return fs
}

// WriteFile creates path on fs with content, creating parent directories.
func WriteFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()

	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
}

// ReadFile returns the content of path on fs.
func ReadFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("failed to read file %s: %v", path, err)
	}
	return string(data)
}

// IsolateEnv points the config directory at a temporary directory and
// clears every NDVLINK_ variable for the duration of the test.
func IsolateEnv(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, "NDVLINK_") {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
	return dir
}
