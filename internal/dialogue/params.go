package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/lectigo/lectigo/internal/ai"
)

// Analyzer classifies each user utterance into the three session
// parameters. It never fails outward: anything it cannot classify comes
// back as the neutral default.
type Analyzer struct {
	gen *ai.Safe
}

func NewAnalyzer(gen *ai.Safe) *Analyzer {
	return &Analyzer{gen: gen}
}

const analyzePromptFmt = `Analiza el mensaje del niño: %q.
Evalúa:
1. Comprensión (alta/media/baja) - ¿Entiende bien el contenido?
2. Emoción (positiva/neutra/negativa) - ¿Cómo se siente?
3. Motivación (alta/media/baja) - ¿Está interesado en continuar?
Un mensaje corto o ambiguo NO es negativo; solo lenguaje claramente negativo lo es.
Responde en formato JSON: { "comprension": "", "emocion": "", "motivacion": "" }`

// Analyze returns the classification for one utterance. Short or ambiguous
// utterances ("hola", "ok") are neutral by construction and never reach the
// classifier; malformed classifier output degrades to neutral too. A field
// the classifier did not produce comes back empty, so merging keeps the
// session's previous value.
func (a *Analyzer) Analyze(ctx context.Context, utterance string) Params {
	if tooShortToClassify(utterance) {
		return NeutralParams()
	}

	raw, err := a.gen.TryAsk(ctx, fmt.Sprintf(analyzePromptFmt, utterance))
	if err != nil {
		logrus.WithError(err).Warn("parameter analysis unavailable, using neutral defaults")
		return NeutralParams()
	}

	p, ok := parseParams(raw)
	if !ok {
		logrus.WithField("raw", raw).Warn("parameter analysis malformed, using neutral defaults")
		return NeutralParams()
	}
	return p
}

// tooShortToClassify guards greetings and one-word acknowledgements from
// being labeled negative or low.
func tooShortToClassify(utterance string) bool {
	trimmed := strings.TrimSpace(utterance)
	if utf8.RuneCountInString(trimmed) < 4 {
		return true
	}
	return len(strings.Fields(trimmed)) < 2
}

// parseParams extracts the classification JSON from possibly noisy model
// output (code fences, surrounding prose). Missing or out-of-vocabulary
// fields are left empty so the merge keeps the session's previous value
// instead of resetting it to a default.
func parseParams(raw string) (Params, bool) {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	first := strings.Index(cleaned, "{")
	last := strings.LastIndex(cleaned, "}")
	if first == -1 || last == -1 || last < first {
		return Params{}, false
	}
	cleaned = cleaned[first : last+1]

	var p Params
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return Params{}, false
	}

	p.Comprension = strings.ToLower(strings.TrimSpace(p.Comprension))
	p.Emocion = strings.ToLower(strings.TrimSpace(p.Emocion))
	p.Motivacion = strings.ToLower(strings.TrimSpace(p.Motivacion))

	if !validLevel(p.Comprension) {
		p.Comprension = ""
	}
	if !validEmotion(p.Emocion) {
		p.Emocion = ""
	}
	if !validLevel(p.Motivacion) {
		p.Motivacion = ""
	}
	return p, true
}
