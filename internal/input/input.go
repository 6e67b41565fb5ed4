// Package input turns user-supplied text, files and HTML pages into the
// plain description handed to a mapping session.
package input

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// DefaultMaxBytes caps how much of an input file is read
const DefaultMaxBytes = 1 << 20

// ErrEmpty is returned when the input holds no usable text
var ErrEmpty = errors.New("input is empty")

// Normalize trims the text, repairs invalid UTF-8 and collapses runs of blank lines
func Normalize(text string) string {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var out []string
	blank := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// FromArgs joins command-line words into one description
func FromArgs(args []string) (string, error) {
	text := Normalize(strings.Join(args, " "))
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

// ReadFile reads a description from path. HTML files are reduced to their
// visible text; at most maxBytes are read (DefaultMaxBytes when <= 0).
func ReadFile(path string, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open input file: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes))
	if err != nil {
		return "", fmt.Errorf("read input file: %w", err)
	}

	var text string
	if isHTML(path, data) {
		text, err = VisibleText(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("parse HTML input: %w", err)
		}
	} else {
		text = Normalize(string(data))
	}

	if text == "" {
		return "", fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return text, nil
}

// VisibleText extracts text nodes from HTML, skipping scripts and styles.
// Block elements start a new line.
func VisibleText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head", "template":
				return
			case "p", "div", "br", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "pre", "blockquote", "section", "article":
				buf.WriteString("\n")
			}
		}

		if n.Type == html.TextNode {
			text := strings.Join(strings.Fields(n.Data), " ")
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	return Normalize(buf.String()), nil
}

func isHTML(path string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	head := strings.ToLower(strings.TrimSpace(string(data[:min(len(data), 512)])))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}
