package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lectigo/lectigo/internal/ai"
)

// Intent captures what the user wants from the flow itself rather than
// from the conversation content.
type Intent struct {
	WantsToEnd     bool `json:"terminar"`
	ReadyToAdvance bool `json:"avanzar"`
}

// IntentClassifier detects explicit flow intents. The safe default is
// "no intent": a failed or malformed classification never ends a session.
type IntentClassifier struct {
	gen *ai.Safe
}

func NewIntentClassifier(gen *ai.Safe) *IntentClassifier {
	return &IntentClassifier{gen: gen}
}

// farewell phrases short-circuit the classifier.
var farewellPhrases = []string{
	"adiós", "adios", "me voy", "hasta luego", "hasta mañana",
	"ya no quiero hablar", "quiero terminar", "ya me voy", "chao", "nos vemos",
}

const intentPromptFmt = `El niño dijo: %q.
Evalúa su intención:
1. ¿Quiere terminar la conversación?
2. ¿Dice estar listo para pasar a la siguiente parte?
Responde en formato JSON: { "terminar": true/false, "avanzar": true/false }`

func (ic *IntentClassifier) Classify(ctx context.Context, utterance string) Intent {
	lower := strings.ToLower(utterance)
	for _, phrase := range farewellPhrases {
		if strings.Contains(lower, phrase) {
			return Intent{WantsToEnd: true}
		}
	}

	if tooShortToClassify(utterance) {
		return Intent{}
	}

	raw, err := ic.gen.TryAsk(ctx, fmt.Sprintf(intentPromptFmt, utterance))
	if err != nil {
		return Intent{}
	}

	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	first := strings.Index(cleaned, "{")
	last := strings.LastIndex(cleaned, "}")
	if first == -1 || last == -1 || last < first {
		return Intent{}
	}

	var intent Intent
	if err := json.Unmarshal([]byte(cleaned[first:last+1]), &intent); err != nil {
		return Intent{}
	}
	return intent
}
