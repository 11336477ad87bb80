package dialogue

import "strings"

// Animation tags the avatar layer understands.
const (
	AnimGreet     = "saludar"
	AnimCelebrate = "celebrar"
	AnimAsk       = "preguntar"
	AnimComfort   = "consolar"
	AnimNeutral   = "neutral"
)

// ClassifyAnimation derives a display-animation tag from the reply text.
// It is stateless and purely lexical; unknown content maps to neutral.
func ClassifyAnimation(reply string) string {
	lower := strings.ToLower(reply)

	switch {
	case strings.Contains(lower, "hola") || strings.Contains(lower, "bienvenid"):
		return AnimGreet
	case strings.Contains(lower, "felicidades") || strings.Contains(lower, "muy bien") ||
		strings.Contains(lower, "genial") || strings.Contains(lower, "excelente"):
		return AnimCelebrate
	case strings.Contains(lower, "tranquil") || strings.Contains(lower, "no pasa nada") ||
		strings.Contains(lower, "entiendo cómo te sientes") || strings.Contains(lower, "ánimo"):
		return AnimComfort
	case strings.Contains(reply, "?") || strings.Contains(reply, "¿"):
		return AnimAsk
	default:
		return AnimNeutral
	}
}
