package steps

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// Инлайновые правила Markdown. Жирный раньше курсива, иначе **x**
// разобрался бы как два курсива.
var (
	boldRe   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe = regexp.MustCompile(`\*([^*]+)\*`)
	linkRe   = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
)

// renderHTML конвертирует ограниченное подмножество Markdown в HTML:
// заголовки, списки, цитаты, жирный/курсив, ссылки, абзацы.
// Этого подмножества достаточно для текстов, которые генерируют модели;
// полноценный Markdown-парсер здесь не нужен.
func renderHTML(md string) string {
	var out strings.Builder

	for _, block := range strings.Split(md, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		switch {
		case strings.HasPrefix(block, "#"):
			renderHeading(&out, block)
		case strings.HasPrefix(block, ">"):
			renderBlockquote(&out, block)
		case isList(block, "- ") || isList(block, "* "):
			renderList(&out, block, "ul")
		case isOrderedList(block):
			renderList(&out, block, "ol")
		default:
			fmt.Fprintf(&out, "<p>%s</p>\n", inline(strings.ReplaceAll(block, "\n", " ")))
		}
	}

	return out.String()
}

// inline применяет инлайновые правила к экранированному тексту.
func inline(s string) string {
	s = html.EscapeString(s)
	s = boldRe.ReplaceAllString(s, "<strong>$1</strong>")
	s = italicRe.ReplaceAllString(s, "<em>$1</em>")
	s = linkRe.ReplaceAllString(s, `<a href="$2">$1</a>`)
	return s
}

func renderHeading(out *strings.Builder, block string) {
	// Многострочный блок, начинающийся с заголовка: первая строка —
	// заголовок, остальные — абзац.
	lines := strings.SplitN(block, "\n", 2)

	level := 0
	text := lines[0]
	for strings.HasPrefix(text, "#") && level < 6 {
		level++
		text = text[1:]
	}
	fmt.Fprintf(out, "<h%d>%s</h%d>\n", level, inline(strings.TrimSpace(text)), level)

	if len(lines) == 2 && strings.TrimSpace(lines[1]) != "" {
		fmt.Fprintf(out, "<p>%s</p>\n", inline(strings.ReplaceAll(strings.TrimSpace(lines[1]), "\n", " ")))
	}
}

func renderBlockquote(out *strings.Builder, block string) {
	var quoted []string
	for _, line := range strings.Split(block, "\n") {
		quoted = append(quoted, strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), ">")))
	}
	fmt.Fprintf(out, "<blockquote><p>%s</p></blockquote>\n", inline(strings.Join(quoted, " ")))
}

func renderList(out *strings.Builder, block, tag string) {
	fmt.Fprintf(out, "<%s>\n", tag)
	for _, line := range strings.Split(block, "\n") {
		item := strings.TrimSpace(line)
		item = strings.TrimPrefix(item, "- ")
		item = strings.TrimPrefix(item, "* ")
		item = orderedItemRe.ReplaceAllString(item, "")
		fmt.Fprintf(out, "<li>%s</li>\n", inline(item))
	}
	fmt.Fprintf(out, "</%s>\n", tag)
}

var orderedItemRe = regexp.MustCompile(`^\d+\.\s+`)

func isList(block, marker string) bool {
	for _, line := range strings.Split(block, "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), marker) {
			return false
		}
	}
	return true
}

func isOrderedList(block string) bool {
	for _, line := range strings.Split(block, "\n") {
		if !orderedItemRe.MatchString(strings.TrimSpace(line)) {
			return false
		}
	}
	return true
}
