package review

import (
	"bytes"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// layoutShadow builds upper/<target>/... with the given relative files.
func layoutShadow(t *testing.T, upper, target string, files map[string]string, dirs []string) {
	t.Helper()
	shadow := filepath.Join(upper, target)
	for rel, content := range files {
		p := filepath.Join(shadow, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(shadow, d), 0755))
	}
}

func TestScanClassification(t *testing.T) {
	upper := t.TempDir()
	target := t.TempDir()

	// pre-existing target file makes the shadow copy an edit
	require.NoError(t, os.WriteFile(filepath.Join(target, "kept.txt"), []byte("old"), 0644))

	layoutShadow(t, upper, target, map[string]string{
		"kept.txt":      "new",
		"fresh.txt":     "x",
		"sub/nested.go": "package sub",
	}, []string{"emptydir"})

	changes, truncated, err := Scan(upper, target)
	require.NoError(t, err)
	assert.False(t, truncated)

	got := map[string]Kind{}
	for _, c := range changes {
		got[c.Path] = c.Kind
	}
	assert.Equal(t, map[string]Kind{
		"kept.txt":      Edited,
		"fresh.txt":     Added,
		"sub/nested.go": Added,
		"emptydir/":     AddedDir,
	}, got)
}

func TestScanNoShadow(t *testing.T) {
	changes, truncated, err := Scan(t.TempDir(), "/nonexistent/target")
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Empty(t, changes)
}

func TestScanSorted(t *testing.T) {
	upper := t.TempDir()
	target := t.TempDir()
	layoutShadow(t, upper, target, map[string]string{
		"z.txt": "", "a.txt": "", "m/p.txt": "",
	}, nil)

	changes, _, err := Scan(upper, target)
	require.NoError(t, err)
	var paths []string
	for _, c := range changes {
		paths = append(paths, c.Path)
	}
	assert.Equal(t, []string{"a.txt", "m/p.txt", "z.txt"}, paths)
}

func TestIsWhiteout(t *testing.T) {
	assert.True(t, isWhiteout(fs.ModeDevice|fs.ModeCharDevice))
	assert.True(t, isWhiteout(fs.ModeCharDevice))
	assert.False(t, isWhiteout(fs.ModeDevice))
	assert.False(t, isWhiteout(0))
	assert.False(t, isWhiteout(fs.ModeDir))
}

func TestRunDiscardDefault(t *testing.T) {
	upper := t.TempDir()
	target := t.TempDir()
	layoutShadow(t, upper, target, map[string]string{"f.txt": "x"}, nil)

	var out bytes.Buffer
	res, err := Run(Options{Upper: upper, Target: target, In: strings.NewReader("\n"), Out: &out})
	require.NoError(t, err)
	assert.Equal(t, Discarded, res)
	assert.Contains(t, out.String(), "f.txt")
	assert.Contains(t, out.String(), "[y/N/d]")

	// nothing was copied
	_, statErr := os.Stat(filepath.Join(target, "f.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunInvalidInputDiscards(t *testing.T) {
	upper := t.TempDir()
	target := t.TempDir()
	layoutShadow(t, upper, target, map[string]string{"f.txt": "x"}, nil)

	var out bytes.Buffer
	res, err := Run(Options{Upper: upper, Target: target, In: strings.NewReader("whatever\n"), Out: &out})
	require.NoError(t, err)
	assert.Equal(t, Discarded, res)
}

func TestRunNoChanges(t *testing.T) {
	var out bytes.Buffer
	res, err := Run(Options{Upper: t.TempDir(), Target: t.TempDir(), In: strings.NewReader(""), Out: &out})
	require.NoError(t, err)
	assert.Equal(t, NoChanges, res)
	assert.Contains(t, out.String(), "no changes")
}

func TestRunApply(t *testing.T) {
	upper := t.TempDir()
	target := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(target, "kept.txt"), []byte("old"), 0644))
	layoutShadow(t, upper, target, map[string]string{
		"kept.txt":  "new",
		"fresh.txt": "hello",
	}, nil)

	var out bytes.Buffer
	res, err := Run(Options{Upper: upper, Target: target, In: strings.NewReader("y\n"), Out: &out})
	require.NoError(t, err)
	assert.Equal(t, Applied, res)

	b, err := os.ReadFile(filepath.Join(target, "kept.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(b))
	b, err = os.ReadFile(filepath.Join(target, "fresh.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
}

func TestRunApplyIdempotent(t *testing.T) {
	upper := t.TempDir()
	target := t.TempDir()
	layoutShadow(t, upper, target, map[string]string{"f.txt": "v1"}, nil)

	for i := 0; i < 2; i++ {
		var out bytes.Buffer
		res, err := Run(Options{Upper: upper, Target: target, In: strings.NewReader("y\n"), Out: &out})
		require.NoError(t, err)
		assert.Equal(t, Applied, res)
	}
	b, err := os.ReadFile(filepath.Join(target, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(b))
}

func TestRunDiffThenDecline(t *testing.T) {
	upper := t.TempDir()
	target := t.TempDir()
	layoutShadow(t, upper, target, map[string]string{"f.txt": "x"}, nil)

	old := execCommand
	var calls [][]string
	execCommand = func(name string, args ...string) *exec.Cmd {
		calls = append(calls, append([]string{name}, args...))
		return exec.Command("true")
	}
	defer func() { execCommand = old }()

	var out bytes.Buffer
	res, err := Run(Options{Upper: upper, Target: target, In: strings.NewReader("d\nn\n"), Out: &out})
	require.NoError(t, err)
	assert.Equal(t, Discarded, res)

	require.Len(t, calls, 1)
	assert.Equal(t, "git", calls[0][0])
	assert.Contains(t, calls[0], "--no-index")
	// the second prompt no longer offers the diff
	assert.Contains(t, out.String(), "[y/N] ")
}

func TestRenderTruncationNotice(t *testing.T) {
	var out bytes.Buffer
	render(&out, []Change{{Path: "a", Kind: Added}}, true)
	assert.Contains(t, out.String(), "capped at 1000")
}
