package engine

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// tokenRe — распознаваемые токены шаблона. Токены литеральные,
// не вложенные; подставленный текст повторно не сканируется.
var tokenRe = regexp.MustCompile(`\{\{(original_input|input|step\.(\d+)\.(text|json))\}\}`)

// Interpolate подставляет значения контекста в шаблон.
//
// Токены (слева направо, без перекрытий):
//   - {{original_input}} — исходный вход execution
//   - {{input}}          — вывод предыдущего выполненного шага
//   - {{step.N.text}}    — текстовый вывод шага N
//   - {{step.N.json}}    — JSON-вывод шага N, сериализованный в строку
//
// Функция тотальна: неразрешимая ссылка подставляет пустую строку,
// ошибок не бывает. Шаблон без токенов возвращается без изменений.
func Interpolate(tmpl string, ctx *Context) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}

	return tokenRe.ReplaceAllStringFunc(tmpl, func(token string) string {
		m := tokenRe.FindStringSubmatch(token)

		switch m[1] {
		case "original_input":
			return ctx.OriginalInput
		case "input":
			return ctx.PreviousOutput
		}

		// step.N.text / step.N.json
		index, err := strconv.Atoi(m[2])
		if err != nil {
			return ""
		}
		out, ok := ctx.Steps[index]
		if !ok {
			return ""
		}

		if m[3] == "text" {
			return out.Text
		}

		if out.JSON == nil {
			return ""
		}
		b, err := json.Marshal(out.JSON)
		if err != nil {
			return ""
		}
		return string(b)
	})
}
