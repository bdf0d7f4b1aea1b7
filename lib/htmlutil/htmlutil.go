package htmlutil

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("easypce.lib.htmlutil")

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

// IsElement reports whether the node is an element with the given tag name.
func IsElement(node *html.Node, tag string) bool {
	return node != nil && node.Type == html.ElementNode && node.Data == tag
}

// NextElement walks forward through the siblings of node (node itself
// included) and returns the first element with the given tag, or nil.
func NextElement(node *html.Node, tag string) *html.Node {
	for current := node; current != nil; current = current.NextSibling {
		if IsElement(current, tag) {
			return current
		}
	}
	return nil
}

// PreviousText returns the text of the sibling right before node, if
// that sibling is a bare text node.
func PreviousText(node *html.Node) (string, bool) {
	if node == nil || node.PrevSibling == nil {
		return "", false
	}
	if node.PrevSibling.Type != html.TextNode {
		return "", false
	}
	return node.PrevSibling.Data, true
}

// FindElementWithText returns the first element matched by the selection
// whose text contains the given substring.
func FindElementWithText(sel *goquery.Selection, text string) *html.Node {
	for _, n := range sel.Nodes {
		if strings.Contains(GetText(n), text) {
			return n
		}
	}
	return nil
}

// Render serializes the nodes back into markup, verbatim.
func Render(nodes []*html.Node) (string, error) {
	var buffer bytes.Buffer
	for _, n := range nodes {
		err := html.Render(&buffer, n)
		if err != nil {
			return "", err
		}
	}
	return buffer.String(), nil
}

type Anchor struct {
	Name string
	Href string
}

var innerWhitespace = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

func GetAnchors(ctx context.Context, sel *goquery.Selection) []Anchor {
	_, span := tracer.Start(ctx, "GetAnchors")
	defer span.End()

	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				break
			}
		}

		link, err := url.Parse(href)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "got error while parsing url")
			continue
		}

		name := GetText(n)
		name = innerWhitespace.ReplaceAllString(name, " ")
		name = removeNonPrintable(name)
		name = strings.TrimSpace(name)

		linkStr := link.String()
		anchors = append(anchors, Anchor{
			Name: name,
			Href: linkStr,
		})
		span.AddEvent("anchor", trace.WithAttributes(
			attribute.String("name", name),
			attribute.String("url", linkStr),
		))
	}

	return anchors
}
