package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	require.Equal(t, "hello world", CleanText("  hello   world "))
	require.Equal(t, "Carl Norum", CleanText("Carl Norum"))
	require.Equal(t, "", CleanText("   "))
}

func TestAnchors(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<td>
			<a href="/users/116908/carl-norum">Carl  Norum</a>
			<a>no link</a>
		</td>
	`))
	require.NoError(t, err)

	anchors := Anchors(doc.Find("a"))
	require.Equal(t, []Anchor{
		{Name: "Carl Norum", Href: "/users/116908/carl-norum"},
		{Name: "no link", Href: ""},
	}, anchors)
}
