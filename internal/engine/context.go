package engine

// Package engine содержит чистое ядро движка: контекст выполнения,
// интерполяцию шаблонов, вычисление условий, выбор модели и валидацию
// recipe. Никакого I/O.

// StepOutput — результат выполненного шага для использования
// в шаблонах и условиях последующих шагов.
type StepOutput struct {
	// Text — текстовый вывод шага.
	Text string

	// JSON — распарсенный structured-вывод. Nil, если вывод не JSON-образный.
	JSON map[string]any
}

// Context — накопитель выводов шагов в рамках одного execution.
//
// Живёт только в памяти движка и никогда не сохраняется целиком.
//
// Инварианты:
//   - OriginalInput неизменен на протяжении всего запуска.
//   - PreviousOutput изменяется после каждого выполненного
//     (не пропущенного) шага.
//   - Steps[i] существует тогда и только тогда, когда шаг i был выполнен
//     (не пропущен) и успешно завершился до начала текущего шага.
type Context struct {
	// OriginalInput — исходный вход execution.
	OriginalInput string

	// PreviousOutput — вывод последнего выполненного шага.
	PreviousOutput string

	// Steps — выводы выполненных шагов по индексу. Растёт монотонно.
	Steps map[int]StepOutput
}

// NewContext создаёт контекст, инициализированный входом execution.
// Если вход содержит текст, им же засевается PreviousOutput.
func NewContext(input string) *Context {
	return &Context{
		OriginalInput:  input,
		PreviousOutput: input,
		Steps:          make(map[int]StepOutput),
	}
}

// AddStepOutput записывает вывод выполненного шага и
// продвигает PreviousOutput.
//
// Для пропущенных шагов НЕ вызывается: пропуск не изменяет
// ни PreviousOutput, ни Steps.
func (c *Context) AddStepOutput(index int, text string, parsed map[string]any) {
	c.Steps[index] = StepOutput{Text: text, JSON: parsed}
	c.PreviousOutput = text
}

// StepJSON возвращает распарсенный JSON шага index.
// Nil, если шаг не выполнялся или его вывод не был JSON-образным.
func (c *Context) StepJSON(index int) map[string]any {
	return c.Steps[index].JSON
}

// FindStepJSON возвращает JSON первого (по возрастанию индекса) шага,
// удовлетворяющего предикату. Эвристический поиск по форме, не по
// фиксированному индексу; используется сборкой публикуемого материала.
func (c *Context) FindStepJSON(match func(map[string]any) bool) map[string]any {
	// Индексы перебираются по возрастанию для детерминизма.
	for i := 0; i <= maxKey(c.Steps); i++ {
		out, ok := c.Steps[i]
		if !ok || out.JSON == nil {
			continue
		}
		if match(out.JSON) {
			return out.JSON
		}
	}
	return nil
}

func maxKey(m map[int]StepOutput) int {
	max := -1
	for k := range m {
		if k > max {
			max = k
		}
	}
	return max
}
