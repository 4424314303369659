package content

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Sectionize nests a rendered Markdown fragment into sections. Every h2-h6
// heading with an id opens a <section> that takes over the id and runs
// until the next heading of the same or a higher level. The result is
// wrapped in a section with rootID. h1 ids are dropped; the page title is
// not a navigation target.
func Sectionize(fragment, rootID string) (string, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	root := newSection(rootID)
	type open struct {
		level int
		node  *html.Node
	}
	stack := []open{{0, root}}
	for _, n := range nodes {
		switch level := headingLevel(n); {
		case level == 1:
			removeAttr(n, "id")
		case level > 1:
			id := attr(n, "id")
			if id == "" {
				break
			}
			for len(stack) > 1 && stack[len(stack)-1].level >= level {
				stack = stack[:len(stack)-1]
			}
			sec := newSection(id)
			removeAttr(n, "id")
			stack[len(stack)-1].node.AppendChild(sec)
			stack = append(stack, open{level, sec})
		}
		stack[len(stack)-1].node.AppendChild(n)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("rendering sections: %w", err)
	}
	return buf.String(), nil
}

func newSection(id string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: "section", DataAtom: atom.Section}
	if id != "" {
		n.Attr = []html.Attribute{{Key: "id", Val: id}}
	}
	return n
}

func headingLevel(n *html.Node) int {
	if n.Type != html.ElementNode {
		return 0
	}
	switch n.DataAtom {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	case atom.H6:
		return 6
	}
	return 0
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}
