package grade

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

//
// PlainText reduces a formatted (html) assessment title to the
// text a reader would see, with whitespace runs collapsed.
//
func PlainText(formatted string) string {
	if !strings.ContainsAny(formatted, "<&") {
		return strings.Join(strings.Fields(formatted), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(formatted))
	if err != nil {
		return strings.Join(strings.Fields(formatted), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
