package override

import (
	"io"
	"os"
	"testing"

	"github.com/agentic-research/riffle/api"
	"github.com/agentic-research/riffle/internal/dump"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func overridePage(title, id, text string) string {
	return "  <page>\n" +
		"    <title>" + title + "</title>\n" +
		"    <id>" + id + "</id>\n" +
		"    <revision>\n" +
		"      <text>" + text + "</text>\n" +
		"    </revision>\n" +
		"  </page>\n"
}

// pagesFS returns a filesystem rooted at a directory holding files.
func pagesFS(t *testing.T, files map[string]string) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("pages", 0o755))
	for name, content := range files {
		require.NoError(t, util.WriteFile(fs, "pages/"+name, []byte(content), 0o644))
	}
	pages, err := fs.Chroot("pages")
	require.NoError(t, err)
	return pages
}

func newTestBuilder(mode api.KeyMode) (*Builder, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewBuilder(api.DefaultFormat(), mode, logger), hook
}

func warnings(hook *logtest.Hook) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			n++
		}
	}
	return n
}

func TestBuilder_IndexesByID(t *testing.T) {
	fs := pagesFS(t, map[string]string{
		"0000": overridePage("Beta", "2", "new b"),
		"0001": overridePage("Delta", "4", "new d"),
	})
	b, _ := newTestBuilder(api.KeyByID)

	idx, err := b.Build(fs)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
	assert.NoError(t, idx.Skipped())

	r, ok := idx.Lookup("2")
	require.True(t, ok)
	assert.Equal(t, "0000", r.Path)
	assert.Equal(t, "Beta", r.Title)

	_, ok = idx.Lookup("Beta")
	assert.False(t, ok, "id mode must not key by title")
}

func TestBuilder_IndexesByTitle(t *testing.T) {
	fs := pagesFS(t, map[string]string{"x": overridePage("Beta", "2", "b")})
	b, _ := newTestBuilder(api.KeyByTitle)

	idx, err := b.Build(fs)
	require.NoError(t, err)
	_, ok := idx.Lookup("Beta")
	assert.True(t, ok)
}

func TestBuilder_KeyFromContentNotFilename(t *testing.T) {
	// Export files often carry the full mediawiki preamble.
	exported := "<mediawiki>\n  <siteinfo>\n  </siteinfo>\n" + overridePage("Beta", "2", "b") + "</mediawiki>\n"
	fs := pagesFS(t, map[string]string{"Beta.xml": exported})
	b, _ := newTestBuilder(api.KeyByID)

	idx, err := b.Build(fs)
	require.NoError(t, err)
	r, ok := idx.Lookup("2")
	require.True(t, ok)
	assert.Equal(t, "Beta.xml", r.Path)
}

func TestBuilder_SkipsBadFiles(t *testing.T) {
	fs := pagesFS(t, map[string]string{
		"good":         overridePage("A", "1", "a"),
		"nokey":        "  <page>\n    <ns>0</ns>\n  </page>\n",
		"malformed":    "  <page>\n    <title>B</title>\n    <id>2\n  </page>\n",
		"unterminated": "  <page>\n    <title>C</title>\n    <id>3</id>\n    <revision>\n",
		"empty":        "",
	})
	b, hook := newTestBuilder(api.KeyByID)

	idx, err := b.Build(fs)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, 4, idx.SkippedCount())
	assert.Equal(t, 4, warnings(hook))
	assert.Len(t, idx.SkippedReasons(), 4)

	skipped := idx.Skipped()
	assert.ErrorIs(t, skipped, ErrNoKey)
	assert.ErrorIs(t, skipped, ErrUnterminated)
	var me *dump.MalformedError
	assert.ErrorAs(t, skipped, &me)
}

type failingFS struct {
	billy.Filesystem
	fail string
}

func (f failingFS) Open(name string) (billy.File, error) {
	if name == f.fail {
		return nil, os.ErrPermission
	}
	return f.Filesystem.Open(name)
}

func TestBuilder_SkipsUnopenableFile(t *testing.T) {
	fs := pagesFS(t, map[string]string{
		"a": overridePage("A", "1", "a"),
		"b": overridePage("B", "2", "b"),
	})
	b, hook := newTestBuilder(api.KeyByID)

	idx, err := b.Build(failingFS{Filesystem: fs, fail: "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
	assert.ErrorIs(t, idx.Skipped(), os.ErrPermission)
	assert.Equal(t, 1, warnings(hook))
}

func TestBuilder_IgnoresDirectories(t *testing.T) {
	fs := pagesFS(t, map[string]string{"a": overridePage("A", "1", "a")})
	require.NoError(t, fs.MkdirAll("nested", 0o755))
	require.NoError(t, util.WriteFile(fs, "nested/b", []byte(overridePage("B", "2", "b")), 0o644))
	b, _ := newTestBuilder(api.KeyByID)

	idx, err := b.Build(fs)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, 0, idx.SkippedCount())
}

func TestBuilder_DuplicateKeyLaterFileWins(t *testing.T) {
	fs := pagesFS(t, map[string]string{
		"0001": overridePage("A", "1", "second"),
		"0000": overridePage("A", "1", "first"),
		"0002": overridePage("Z", "9", "z"),
	})
	b, _ := newTestBuilder(api.KeyByID)

	idx, err := b.Build(fs)
	require.NoError(t, err)
	require.Equal(t, 2, idx.Len())

	r, ok := idx.Lookup("1")
	require.True(t, ok)
	assert.Equal(t, "0001", r.Path)
	// The winner keeps the slot of the first file with that key.
	assert.Equal(t, []string{"1", "9"}, keys(idx.Records()))

	f, err := idx.Open(r)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Contains(t, string(body), "second")
}

func TestBuilder_MissingDirectory(t *testing.T) {
	fs := memfs.New()
	missing, err := fs.Chroot("nope")
	require.NoError(t, err)
	b, _ := newTestBuilder(api.KeyByID)

	_, err = b.Build(missing)
	assert.Error(t, err)
}

func keys(rs []*Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Key
	}
	return out
}
