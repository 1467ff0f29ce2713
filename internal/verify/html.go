package verify

import (
	"bytes"

	"golang.org/x/net/html"
)

// HTMLImages scans every .html file below root for <img src> references to missing files.
func HTMLImages(root string) (Report, error) {
	return scan(root, ".html", KindHTML, extractHTMLImages)
}

func extractHTMLImages(data []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var refs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "img" {
			for _, a := range n.Attr {
				if a.Key == "src" && a.Val != "" {
					refs = append(refs, a.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return refs, nil
}
