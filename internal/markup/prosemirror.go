package markup

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

// ProseMirrorToHTML converts a decoded ProseMirror JSON document to markup.
func ProseMirrorToHTML(doc interface{}) string {
	if doc == nil {
		return ""
	}

	root, ok := doc.(map[string]interface{})
	if !ok {
		return ""
	}

	return renderNode(root)
}

// ProseMirrorJSONToHTML decodes raw ProseMirror JSON and renders it.
func ProseMirrorJSONToHTML(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("decode prosemirror doc: %w", err)
	}
	return ProseMirrorToHTML(doc), nil
}

func renderNode(node map[string]interface{}) string {
	nodeType, _ := node["type"].(string)
	if nodeType == "" {
		return ""
	}

	switch nodeType {
	case "doc":
		return renderContent(node["content"])
	case "paragraph":
		content := renderContent(node["content"])
		return fmt.Sprintf("<p%s>%s</p>", alignAttr(node), content)
	case "heading":
		level := 1
		if attrs, ok := node["attrs"].(map[string]interface{}); ok {
			if lvl, ok := attrs["level"].(float64); ok && lvl >= 1 && lvl <= 6 {
				level = int(lvl)
			}
		}
		content := renderContent(node["content"])
		return fmt.Sprintf("<h%d%s>%s</h%d>", level, alignAttr(node), content, level)
	case "bulletList":
		return fmt.Sprintf("<ul>%s</ul>", renderContent(node["content"]))
	case "orderedList":
		return fmt.Sprintf("<ol>%s</ol>", renderContent(node["content"]))
	case "listItem":
		return fmt.Sprintf("<li>%s</li>", renderContent(node["content"]))
	case "blockquote":
		return fmt.Sprintf("<blockquote>%s</blockquote>", renderContent(node["content"]))
	case "codeBlock":
		content := renderContent(node["content"])
		return fmt.Sprintf("<pre><code>%s</code></pre>", content)
	case "text":
		text, _ := node["text"].(string)
		marks, _ := node["marks"].([]interface{})
		return renderTextWithMarks(text, marks)
	case "hardBreak":
		return "<br>"
	case "horizontalRule":
		return "<hr>"
	default:
		return renderContent(node["content"])
	}
}

func alignAttr(node map[string]interface{}) string {
	attrs, ok := node["attrs"].(map[string]interface{})
	if !ok {
		return ""
	}
	align, _ := attrs["textAlign"].(string)
	switch align {
	case "center", "right", "justify":
		return fmt.Sprintf(` style="text-align: %s"`, align)
	default:
		return ""
	}
}

func renderContent(content interface{}) string {
	items, ok := content.([]interface{})
	if !ok {
		return ""
	}

	var result strings.Builder
	for _, item := range items {
		if node, ok := item.(map[string]interface{}); ok {
			result.WriteString(renderNode(node))
		}
	}
	return result.String()
}

func renderTextWithMarks(text string, marks []interface{}) string {
	if text == "" {
		return ""
	}

	htmlText := html.EscapeString(text)

	// innermost mark is the last one
	for i := len(marks) - 1; i >= 0; i-- {
		mark, ok := marks[i].(map[string]interface{})
		if !ok {
			continue
		}
		markType, _ := mark["type"].(string)

		switch markType {
		case "bold":
			htmlText = fmt.Sprintf("<strong>%s</strong>", htmlText)
		case "italic":
			htmlText = fmt.Sprintf("<em>%s</em>", htmlText)
		case "underline":
			htmlText = fmt.Sprintf("<u>%s</u>", htmlText)
		case "strike":
			htmlText = fmt.Sprintf("<s>%s</s>", htmlText)
		case "code":
			htmlText = fmt.Sprintf("<code>%s</code>", htmlText)
		case "link":
			href := ""
			if attrs, ok := mark["attrs"].(map[string]interface{}); ok {
				href, _ = attrs["href"].(string)
			}
			htmlText = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(href), htmlText)
		}
	}

	return htmlText
}
