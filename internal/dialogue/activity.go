package dialogue

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lectigo/lectigo/internal/ai"
)

// Activity catalogs. Each catalog addresses one deficient parameter; the
// general catalog is used when nothing is deficient or no book is known.

type Activity struct {
	Kind   string
	Prompt func(book string, progress int, history string) string
}

var activityCatalogs = map[string][]Activity{
	"emocion": {
		{Kind: "chiste", Prompt: func(book string, _ int, _ string) string {
			return fmt.Sprintf("Genera un chiste breve y apropiado sobre %q o sus personajes.", book)
		}},
		{Kind: "dato_curioso", Prompt: func(book string, progress int, _ string) string {
			return fmt.Sprintf("Comparte un dato curioso o interesante sobre %q que sea relevante para la parte que el usuario ha leído (alrededor del %d%% del libro).", book, progress)
		}},
		{Kind: "animar", Prompt: func(book string, _ int, _ string) string {
			return fmt.Sprintf("Motiva al usuario con un mensaje positivo relacionado con la lectura de %q.", book)
		}},
	},
	"motivacion": {
		{Kind: "reto", Prompt: func(book string, _ int, _ string) string {
			return fmt.Sprintf("Propón un pequeño reto divertido relacionado con %q para motivar al usuario a seguir leyendo.", book)
		}},
		{Kind: "pregunta_intriga", Prompt: func(book string, progress int, _ string) string {
			return fmt.Sprintf("Haz una pregunta intrigante sobre lo que podría pasar después en %q (basado en el %d%% de avance).", book, progress)
		}},
	},
	"comprension": {
		{Kind: "pregunta_comprension", Prompt: func(book string, _ int, _ string) string {
			return fmt.Sprintf("Haz una pregunta sencilla para verificar la comprensión de la parte reciente de %q.", book)
		}},
		{Kind: "resumen", Prompt: func(book string, _ int, _ string) string {
			return fmt.Sprintf("Pide al usuario que resuma brevemente lo que ha leído recientemente en %q.", book)
		}},
	},
	"general": {
		{Kind: "pregunta_exploracion", Prompt: func(book string, progress int, history string) string {
			return fmt.Sprintf("Haz una pregunta exploratoria sobre %q considerando que el usuario ya ha leído hasta el %d%% y el historial previo: %s.", book, progress, history)
		}},
		{Kind: "conexion_personal", Prompt: func(book string, _ int, _ string) string {
			return fmt.Sprintf("Pregunta cómo se relaciona la historia de %q con experiencias personales del usuario.", book)
		}},
	},
}

// genericActivityPrompt is used when no book is known yet; it never
// references a title.
const genericActivityPrompt = "Propón un juego corto y divertido relacionado con la lectura o los cuentos, sin mencionar ningún libro en particular. Sé breve."

// deficitCatalog maps the dominant deficient parameter to its catalog
// name; empty means nothing is deficient.
func deficitCatalog(p Params) string {
	if p.Emocion == EmotionNegativa {
		return "emocion"
	}
	if p.Motivacion == LevelBaja {
		return "motivacion"
	}
	if p.Comprension == LevelBaja {
		return "comprension"
	}
	return ""
}

// Selector picks the next activity prompt for a session. With a ranking
// generator it delegates the choice to the model; without one it picks
// uniformly at random.
type Selector struct {
	ranker *ai.Safe // optional
	rnd    *rand.Rand
}

func NewSelector(ranker *ai.Safe, rnd *rand.Rand) *Selector {
	return &Selector{ranker: ranker, rnd: rnd}
}

// Select returns the generation prompt for the chosen activity plus the
// activity kind (persisted as the session's last activity).
func (sel *Selector) Select(ctx context.Context, s *Session, history string) (prompt string, kind string) {
	if s.Book == "" {
		return genericActivityPrompt, "general"
	}

	name := deficitCatalog(s.Params())
	if name == "" {
		name = "general"
	}
	catalog := activityCatalogs[name]

	act := catalog[0]
	if sel.ranker != nil {
		act = sel.rank(ctx, catalog, s)
	} else if sel.rnd != nil {
		act = catalog[sel.rnd.Intn(len(catalog))]
	}

	return act.Prompt(s.Book, progressOrZero(s), history), act.Kind
}

// rank asks the model to pick exactly one activity identifier from the
// catalog. Anything it returns that is not a catalog entry falls back to
// the first entry; ranking never errors out.
func (sel *Selector) rank(ctx context.Context, catalog []Activity, s *Session) Activity {
	kinds := make([]string, 0, len(catalog))
	for _, a := range catalog {
		kinds = append(kinds, a.Kind)
	}
	prompt := fmt.Sprintf(`El niño lee %q (%d%%) con parámetros comprensión=%s, emoción=%s, motivación=%s.
Elige la mejor actividad para este momento. Responde SOLO con uno de: %s`,
		s.Book, progressOrZero(s), s.Comprension, s.Emocion, s.Motivacion, strings.Join(kinds, ", "))

	resp, err := sel.ranker.TryAsk(ctx, prompt)
	if err != nil {
		return catalog[0]
	}
	resp = strings.ToLower(strings.TrimSpace(resp))
	for _, a := range catalog {
		if strings.Contains(resp, a.Kind) {
			return a
		}
	}
	logrus.WithField("choice", resp).Debug("activity ranking returned unknown identifier, using first entry")
	return catalog[0]
}

func progressOrZero(s *Session) int {
	if s.Progress == nil {
		return 0
	}
	return *s.Progress
}
