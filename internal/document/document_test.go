package document

import (
	"net/url"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><head>
<title>TCS financials</title>
<script>var growth = "growth script";</script>
<style>.growth { color: red; }</style>
</head><body>
<div>Revenue growth was strong this quarter</div>
<div><span>Growth in deals</span></div>
<div><p>Growth mentioned</p><p>twice</p></div>
<p>Nothing relevant here</p>
<ul><li>CAGR of 18% over five years</li></ul>
<table id="fin">
  <tr><td>Capex</td><td>₹500 crore</td></tr>
  <tr><td>Dividend</td><td>12</td></tr>
</table>
<table id="other"><tr><td>Employees</td></tr></table>
<a href="/stocks/company-info/tcs">TCS</a>
<a href="https://example.org/quote/TCS">Quote</a>
<a href="#top">Top</a>
<a href="javascript:void(0)">JS</a>
<a href="mailto:ir@tcs.com">Mail</a>
<a href="ftp://files.example.org/x">FTP</a>
<a>No href</a>
</body></html>`

func parse(t *testing.T) *Document {
	t.Helper()
	doc, err := Parse(page)
	require.NoError(t, err)
	return doc
}

func TestFindByText(t *testing.T) {
	t.Parallel()

	doc := parse(t)
	growth := regexp.MustCompile(`(?i)growth|cagr`)

	got := doc.FindByText(BlockKinds, growth)
	var texts []string
	for _, s := range got {
		texts = append(texts, VisibleText(s))
	}

	// The div with two <p> children has no single string, but each <p> is
	// checked on its own.
	assert.Equal(t, []string{
		"Revenue growth was strong this quarter",
		"Growth in deals",
		"Growth mentioned",
		"CAGR of 18% over five years",
	}, texts)
}

func TestTables(t *testing.T) {
	t.Parallel()

	doc := parse(t)
	capex := regexp.MustCompile(`(?i)capex`)

	tables := doc.Tables()
	require.Len(t, tables, 2)
	assert.True(t, TableMentions(tables[0], capex))
	assert.False(t, TableMentions(tables[1], capex))

	cells := TableCells(tables[0])
	// 2 rows + 4 cells
	require.Len(t, cells, 6)
	assert.Equal(t, "Capex ₹500 crore", VisibleText(cells[0]))
	assert.Equal(t, "Capex", VisibleText(cells[1]))
}

func TestVisibleText_SkipsScriptAndStyle(t *testing.T) {
	t.Parallel()

	doc := parse(t)
	text := VisibleText(doc.doc.Find("head"))
	assert.Equal(t, "TCS financials", text)
}

func TestLinks(t *testing.T) {
	t.Parallel()

	doc := parse(t)
	base, err := url.Parse("https://www.moneycontrol.com")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://www.moneycontrol.com/stocks/company-info/tcs",
		"https://example.org/quote/TCS",
	}, doc.Links(base))
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	doc, err := Parse("")
	require.NoError(t, err)
	assert.Empty(t, doc.Tables())
	assert.Empty(t, doc.Links(&url.URL{Scheme: "https", Host: "x"}))
}
