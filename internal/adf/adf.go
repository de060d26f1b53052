package adf

import "strings"

// Node types and marks of the small ADF subset the service emits
const (
	TypeDoc         = "doc"
	TypeParagraph   = "paragraph"
	TypeBulletList  = "bulletList"
	TypeOrderedList = "orderedList"
	TypeListItem    = "listItem"
	TypeText        = "text"
	MarkStrong      = "strong"
)

// Doc is an Atlassian Document Format root
type Doc struct {
	Type    string  `json:"type"`
	Version int     `json:"version"`
	Content []*Node `json:"content"`
}

// Node is a block, list item or inline node
type Node struct {
	Type    string  `json:"type"`
	Content []*Node `json:"content,omitempty"`
	Text    string  `json:"text,omitempty"`
	Marks   []Mark  `json:"marks,omitempty"`
}

type Mark struct {
	Type string `json:"type"`
}

const (
	bulletMarker  = "- "
	orderedMarker = "# "
)

// Compile turns operator entered plain text into an ADF document.
// Supported dialect: blank lines keep vertical spacing, lines starting
// with "- " or "# " accumulate into bullet/ordered lists, *word* marks
// a bold span. Any input is accepted, the function never fails
func Compile(text string) *Doc {
	res := &Doc{Type: TypeDoc, Version: 1, Content: []*Node{}}
	text = strings.TrimSpace(text)
	if text == "" {
		return res
	}

	var listKind string
	var listItems []*Node

	flushList := func() {
		if len(listItems) == 0 {
			return
		}
		res.Content = append(res.Content, &Node{Type: listKind, Content: listItems})
		listItems = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t\r")
		switch {
		case line == "":
			flushList()
			res.Content = append(res.Content, &Node{Type: TypeParagraph, Content: []*Node{}})
		case strings.HasPrefix(line, bulletMarker):
			if listKind != TypeBulletList {
				flushList()
				listKind = TypeBulletList
			}
			listItems = append(listItems, listItem(line[len(bulletMarker):]))
		case strings.HasPrefix(line, orderedMarker):
			if listKind != TypeOrderedList {
				flushList()
				listKind = TypeOrderedList
			}
			listItems = append(listItems, listItem(line[len(orderedMarker):]))
		default:
			flushList()
			res.Content = append(res.Content, paragraph(line))
		}
	}
	flushList()
	return res
}

func listItem(text string) *Node {
	return &Node{Type: TypeListItem, Content: []*Node{paragraph(strings.TrimSpace(text))}}
}

func paragraph(text string) *Node {
	return &Node{Type: TypeParagraph, Content: inline(text)}
}

// inline scans the line for *bold* spans. Matching is left to right and
// non-nested: the first unescaped '*' opens a span only if a closing '*'
// follows, a lone '*' stays literal text
func inline(text string) []*Node {
	var res []*Node
	add := func(s string, strong bool) {
		if s == "" {
			return
		}
		n := &Node{Type: TypeText, Text: s}
		if strong {
			n.Marks = []Mark{{Type: MarkStrong}}
		}
		res = append(res, n)
	}

	for len(text) > 0 {
		open := strings.IndexByte(text, '*')
		if open < 0 {
			add(text, false)
			break
		}
		end := strings.IndexByte(text[open+1:], '*')
		if end < 0 {
			// unmatched delimiter, keep the rest as literal
			add(text, false)
			break
		}
		add(text[:open], false)
		add(text[open+1:open+1+end], true)
		text = text[open+end+2:]
	}
	if res == nil {
		res = []*Node{}
	}
	return res
}

// PlainText renders the document back to the source dialect. It is the
// inverse of Compile for documents Compile produced
func PlainText(doc *Doc) string {
	var sb strings.Builder
	for i, n := range doc.Content {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch n.Type {
		case TypeParagraph:
			sb.WriteString(inlineText(n.Content))
		case TypeBulletList, TypeOrderedList:
			marker := bulletMarker
			if n.Type == TypeOrderedList {
				marker = orderedMarker
			}
			for j, it := range n.Content {
				if j > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(marker)
				if len(it.Content) > 0 {
					sb.WriteString(inlineText(it.Content[0].Content))
				}
			}
		}
	}
	return sb.String()
}

func inlineText(nodes []*Node) string {
	var sb strings.Builder
	for _, n := range nodes {
		if hasStrong(n) {
			sb.WriteString("*")
			sb.WriteString(n.Text)
			sb.WriteString("*")
		} else {
			sb.WriteString(n.Text)
		}
	}
	return sb.String()
}

func hasStrong(n *Node) bool {
	for _, m := range n.Marks {
		if m.Type == MarkStrong {
			return true
		}
	}
	return false
}
