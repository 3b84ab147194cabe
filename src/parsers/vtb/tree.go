// backend/src/parsers/vtb/tree.go
package vtb

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// xmlNode is a minimal in-memory element tree. The money-movement
// sub-report nests rows several levels deep under vintage-dependent
// wrapper elements, so it is decoded fully and walked by element name
// rather than streamed.
type xmlNode struct {
	name     xml.Name
	attrs    map[string]string
	children []*xmlNode
}

// decodeTree reads a whole document into an xmlNode tree. Character data
// is discarded; these reports carry everything in attributes.
func decodeTree(r io.Reader) (*xmlNode, error) {
	dec := xml.NewDecoder(r)
	var root *xmlNode
	var stack []*xmlNode
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading statement tokens: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{name: t.Name, attrs: lowerAttrs(t.Attr)}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple root elements")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unbalanced end element %s", t.Name.Local)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if root == nil {
		return nil, fmt.Errorf("empty document")
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("unterminated element %s", stack[len(stack)-1].name.Local)
	}
	return root, nil
}

// attr returns the first non-empty value among the given lowercase
// attribute names.
func (n *xmlNode) attr(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(n.attrs[k]); v != "" {
			return v
		}
	}
	return ""
}

// hasName reports a case-insensitive local-name match.
func (n *xmlNode) hasName(local string) bool {
	return strings.EqualFold(n.name.Local, local)
}

// nameContains reports a case-insensitive substring match on the local
// element name.
func (n *xmlNode) nameContains(sub string) bool {
	return strings.Contains(strings.ToLower(n.name.Local), strings.ToLower(sub))
}

// findFirst returns the first descendant (depth first, self excluded)
// matching pred.
func (n *xmlNode) findFirst(pred func(*xmlNode) bool) *xmlNode {
	for _, c := range n.children {
		if pred(c) {
			return c
		}
		if m := c.findFirst(pred); m != nil {
			return m
		}
	}
	return nil
}

// walk visits self and every descendant in document order.
func (n *xmlNode) walk(visit func(*xmlNode)) {
	visit(n)
	for _, c := range n.children {
		c.walk(visit)
	}
}
