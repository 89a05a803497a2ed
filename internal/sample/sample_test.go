package sample

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/agentic-research/riffle/api"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	header = "<mediawiki>\n  <siteinfo>\n  </siteinfo>\n"
	footer = "</mediawiki>\n"
)

func page(title string) string {
	return "  <page>\n    <title>" + title + "</title>\n    <id>1</id>\n    <text>body</text>\n  </page>\n"
}

func run(t *testing.T, part int, seed uint64, input string) (string, Stats) {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	var out bytes.Buffer
	st, err := New(api.DefaultFormat(), part, seed, log).Run(strings.NewReader(input), &out)
	require.NoError(t, err)
	return out.String(), st
}

func TestSampler_PartOneKeepsEverything(t *testing.T) {
	in := header + page("A") + page("Template:B") + page("C") + footer
	out, st := run(t, 1, 7, in)
	assert.Equal(t, in, out)
	assert.Equal(t, Stats{Records: 3, Kept: 3, Templates: 1}, st)
}

func TestSampler_KeepsTemplatesAndPreamble(t *testing.T) {
	var b strings.Builder
	b.WriteString(header)
	for i := 0; i < 50; i++ {
		b.WriteString(page(fmt.Sprintf("Page %d", i)))
	}
	b.WriteString(page("Template:Infobox"))
	b.WriteString(footer)

	// A huge part drops, in practice, every ordinary page.
	out, st := run(t, 1<<30, 1, b.String())
	assert.Equal(t, header+page("Template:Infobox")+footer, out)
	assert.Equal(t, 51, st.Records)
	assert.Equal(t, 1, st.Kept)
	assert.Equal(t, 1, st.Templates)
}

func TestSampler_SameSeedSameSample(t *testing.T) {
	var b strings.Builder
	b.WriteString(header)
	for i := 0; i < 200; i++ {
		b.WriteString(page(fmt.Sprintf("Page %d", i)))
	}
	b.WriteString(footer)

	first, st := run(t, 4, 42, b.String())
	second, _ := run(t, 4, 42, b.String())
	assert.Equal(t, first, second)
	assert.Greater(t, st.Kept, 0)
	assert.Less(t, st.Kept, 200)
	assert.Equal(t, st.Kept, strings.Count(first, "  <page>\n"))
	assert.Equal(t, st.Kept, strings.Count(first, "  </page>\n"))
}

func TestSampler_RecordWithoutTitle(t *testing.T) {
	in := header + "  <page>\n    <id>1</id>\n  </page>\n" + footer
	out, st := run(t, 1, 0, in)
	assert.Equal(t, in, out)
	assert.Equal(t, 1, st.Kept)
}

func TestSampler_Truncated(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	_, err := New(api.DefaultFormat(), 1, 0, log).Run(strings.NewReader(header+"  <page>\n    <title>A</title>\n"), &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrTruncated)
	assert.Contains(t, err.Error(), "line 4")
}

func TestSampler_BadPart(t *testing.T) {
	_, err := New(api.DefaultFormat(), 0, 0, nil).Run(strings.NewReader(header), &bytes.Buffer{})
	assert.Error(t, err)
}
