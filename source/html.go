package source

import (
	"bytes"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

var excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

// HTMLResult is the outcome of converting an HTML requirements page.
type HTMLResult struct {
	Title    string
	Markdown string
}

// ConvertHTML turns an HTML document into markdown requirement text. The
// <title> element, or failing that the first H1, becomes the title.
func ConvertHTML(content []byte) (*HTMLResult, error) {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	title := htmlTitle(doc)

	body := mainContent(doc)
	markdown, err := converter.ConvertString(body)
	if err != nil {
		return nil, err
	}
	markdown = cleanMarkdown(markdown)

	if title == "" {
		title = markdownTitle(markdown)
	}
	return &HTMLResult{Title: title, Markdown: markdown}, nil
}

func htmlTitle(doc *html.Node) string {
	if n := findElement(doc, "title"); n != nil && n.FirstChild != nil {
		return strings.TrimSpace(n.FirstChild.Data)
	}
	return ""
}

// mainContent prefers <main> or <article>; otherwise it strips page chrome
// from <body>.
func mainContent(doc *html.Node) string {
	for _, tag := range []string{"main", "article"} {
		if n := findElement(doc, tag); n != nil {
			return renderNode(n)
		}
	}

	removeElements(doc, map[string]bool{
		"head": true, "nav": true, "header": true, "footer": true, "aside": true,
		"script": true, "style": true, "noscript": true, "iframe": true, "form": true,
	})
	if body := findElement(doc, "body"); body != nil {
		return renderNode(body)
	}
	return renderNode(doc)
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

func removeElements(n *html.Node, tags map[string]bool) {
	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode && tags[node.Data] {
			toRemove = append(toRemove, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)

	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

func renderNode(n *html.Node) string {
	var sb strings.Builder
	_ = html.Render(&sb, n)
	return sb.String()
}

func cleanMarkdown(content string) string {
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
