package content

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/ziadkadry99/folio/internal/navspy"
)

// Anchors returns the id of every element in doc, in document order.
func Anchors(doc string) ([]string, error) {
	var ids []string
	z := html.NewTokenizer(strings.NewReader(doc))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("scanning anchors: %w", err)
			}
			return ids, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			_, more := z.TagName()
			for more {
				var key, val []byte
				key, val, more = z.TagAttr()
				if string(key) == "id" && len(val) > 0 {
					ids = append(ids, string(val))
				}
			}
		}
	}
}

// Missing returns the nav ids in document order that have no anchor on
// the page.
func Missing(items []navspy.NavItem, anchors []string) []string {
	present := make(map[string]bool, len(anchors))
	for _, id := range anchors {
		present[id] = true
	}
	var missing []string
	for _, id := range navspy.Flatten(items) {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
