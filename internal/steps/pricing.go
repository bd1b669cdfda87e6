package steps

// Тарифы провайдеров (USD). Источник истины по стоимости — записи
// cost ledger; тарифы здесь только для их вычисления.
const (
	// costPerAudioMinute — распознавание речи, за минуту аудио.
	costPerAudioMinute = 0.006

	// costPerMillionTokensIn — генерация текста, за миллион входных токенов.
	costPerMillionTokensIn = 3.0

	// costPerMillionTokensOut — генерация текста, за миллион выходных токенов.
	costPerMillionTokensOut = 15.0

	// costPerImage — за одно сгенерированное изображение.
	costPerImage = 0.04

	// costPerVideoSecond — за секунду сгенерированного видео.
	costPerVideoSecond = 0.05
)

// textCost возвращает стоимость вызова генерации текста.
func textCost(tokensIn, tokensOut int) float64 {
	return float64(tokensIn)/1e6*costPerMillionTokensIn +
		float64(tokensOut)/1e6*costPerMillionTokensOut
}
