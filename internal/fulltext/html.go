// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"bytes"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

var excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

// noiseTags are removed before conversion.
var noiseTags = map[string]bool{
	"nav": true, "header": true, "footer": true, "aside": true,
	"script": true, "style": true, "noscript": true, "form": true,
	"button": true, "iframe": true,
}

// htmlConverter turns an arXiv HTML rendition into markdown.
type htmlConverter struct {
	converter *md.Converter
}

func newHTMLConverter() *htmlConverter {
	c := md.NewConverter("", true, nil)
	c.Use(plugin.GitHubFlavored())
	return &htmlConverter{converter: c}
}

// Convert returns the title and the markdown body of the page. The body is
// taken from the first <article>, then <main>, then <body>.
func (c *htmlConverter) Convert(page []byte) (title, markdown string, err error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return "", "", err
	}
	if t := findElement(doc, "title"); t != nil {
		title = strings.TrimSpace(textContent(t))
	}

	root := doc
	for _, tag := range []string{"article", "main", "body"} {
		if n := findElement(doc, tag); n != nil {
			root = n
			break
		}
	}
	removeNoise(root)

	var sb strings.Builder
	if err := html.Render(&sb, root); err != nil {
		return title, "", err
	}
	out, err := c.converter.ConvertString(sb.String())
	if err != nil {
		return title, "", err
	}
	return title, cleanMarkdown(out), nil
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func removeNoise(n *html.Node) {
	var drop []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode && noiseTags[node.Data] {
			drop = append(drop, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	for _, node := range drop {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

func cleanMarkdown(s string) string {
	s = excessiveLinesRe.ReplaceAllString(s, "\n\n\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
