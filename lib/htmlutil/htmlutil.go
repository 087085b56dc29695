package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CollapseText trims a display string down to a single line: non-printable
// runes dropped, inner whitespace runs collapsed to one space.
func CollapseText(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	return innerWhitespace.ReplaceAllString(s, " ")
}

// FindLabelValue scans the definition lists under `root` for a <dt> whose
// text matches `label` case-insensitively and returns the selection of the
// <dd> that follows it. The second return is false when no pair matched.
func FindLabelValue(root *goquery.Selection, label *regexp.Regexp) (*goquery.Selection, bool) {
	var value *goquery.Selection
	root.Find("dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		if !label.MatchString(CollapseText(dt.Text())) {
			return true
		}
		dd := dt.NextFiltered("dd")
		if dd.Length() == 0 {
			dd = dt.NextAll().Filter("dd").First()
		}
		if dd.Length() == 0 {
			return true
		}
		value = dd
		return false
	})
	if value == nil {
		return nil, false
	}
	return value, true
}

// An AttrProbe names one place a value may live: a CSS selector plus the
// attribute to read from the first match.
type AttrProbe struct {
	Selector string
	Attr     string
}

// ProbeAttrs runs the probes in order and returns every non-empty value
// found. Callers decide what "parseable" means for their field.
func ProbeAttrs(doc *goquery.Document, probes []AttrProbe) []string {
	var values []string
	for _, p := range probes {
		el := doc.Find(p.Selector).First()
		if el.Length() == 0 {
			continue
		}
		val, ok := el.Attr(p.Attr)
		if ok && val != "" {
			values = append(values, val)
		}
	}
	return values
}
