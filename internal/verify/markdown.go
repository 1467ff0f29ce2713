package verify

import (
	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownImages scans every .md file below root for image links to missing files.
func MarkdownImages(root string) (Report, error) {
	return scan(root, ".md", KindMarkdown, extractMarkdownImages)
}

func extractMarkdownImages(body []byte) ([]string, error) {
	root := goldmark.New().Parser().Parse(text.NewReader(body))

	var refs []string
	err := gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		if img, ok := n.(*gmast.Image); ok {
			refs = append(refs, string(img.Destination))
		}
		return gmast.WalkContinue, nil
	})
	return refs, err
}
