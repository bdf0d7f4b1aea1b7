package htmlutil

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const page = `<html><body>
<div id="main">
	<strong>Header:</strong>
	<p>between</p>
	<table id="target"><tr><td>cell</td></tr></table>
	(QR)<em>P/D/F</em>
	<a href="/people?uid=10">  Ada
	Lovelace </a>
	<a href="/people?uid=11">Alan Turing</a>
</div>
</body></html>`

func parse(t testing.TB) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func TestNextElement(t *testing.T) {
	doc := parse(t)

	header := FindElementWithText(doc.Find("strong"), "Header")
	require.NotNil(t, header)

	table := NextElement(header, "table")
	require.NotNil(t, table)
	require.Equal(t, "cell", strings.TrimSpace(GetText(table)))

	require.Nil(t, NextElement(header, "video"))
	require.Nil(t, FindElementWithText(doc.Find("strong"), "Missing"))
}

func TestPreviousText(t *testing.T) {
	doc := parse(t)

	em := doc.Find("em").Nodes[0]
	text, ok := PreviousText(em)
	require.True(t, ok)
	require.Equal(t, "(QR)", strings.TrimSpace(text))

	table := doc.Find("table").Nodes[0]
	_, ok = PreviousText(table.FirstChild)
	require.False(t, ok)
}

func TestRender(t *testing.T) {
	doc := parse(t)
	rendered, err := Render(doc.Find("em").Nodes)
	require.NoError(t, err)
	require.Equal(t, "<em>P/D/F</em>", rendered)
}

func TestGetAnchors(t *testing.T) {
	doc := parse(t)
	anchors := GetAnchors(context.Background(), doc.Find("a"))
	require.Equal(t, []Anchor{
		{Name: "Ada Lovelace", Href: "/people?uid=10"},
		{Name: "Alan Turing", Href: "/people?uid=11"},
	}, anchors)
}
