package dialogue

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/lectigo/lectigo/internal/models"
)

// Prompt construction for every generation call the orchestrator makes.
// The persona is "Lecti", a reading companion for children; replies are
// short and age-adapted.

func describeAge(u *models.User) string {
	if u.Age == nil {
		return "X"
	}
	return fmt.Sprintf("%d", *u.Age)
}

func describeName(u *models.User) string {
	if u.Name == "" {
		return "un niño"
	}
	return u.Name
}

func describeBook(s *Session) string {
	if s.Book == "" {
		return "un libro"
	}
	return s.Book
}

func describeProgress(s *Session) int {
	if s.Progress == nil {
		return 0
	}
	return *s.Progress
}

// tone picks the register for the reply from the current affect.
func tone(p Params) string {
	if p.Emocion == EmotionNegativa {
		return "empático y motivador"
	}
	if p.Motivacion == LevelBaja {
		return "entusiasta y alentador"
	}
	return "amigable y positivo"
}

func stageInstruction(stage Stage) string {
	switch stage {
	case StageDiagnostic:
		return "Haz solo UNA pregunta clara y simple."
	case StageExploration:
		return "Haz una pregunta o comentario sobre el libro."
	case StageActivity:
		return "Realiza la actividad sugerida de forma divertida."
	default:
		return "Responde de forma cálida y breve."
	}
}

// buildPrompt assembles the persona preamble shared by all stage handlers.
func buildPrompt(u *models.User, s *Session, utterance, extraContext string) string {
	objective := s.Objective
	if objective == "" {
		objective = "fomentar la lectura"
	}
	interests := "no especificados"
	if len(u.Interests) > 0 {
		interests = strings.Join(u.Interests, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Eres Lecti, un asistente de lectura para niños de %s años.\n", describeAge(u))
	fmt.Fprintf(&b, "Usuario: %s | Libro: %q (%d%%)\n", describeName(u), describeBook(s), describeProgress(s))
	fmt.Fprintf(&b, "[Parámetros actuales: Comprensión %s, Emoción %s, Motivación %s]\n",
		s.Comprension, s.Emocion, s.Motivacion)
	fmt.Fprintf(&b, "Etapa: %s | Objetivo: %s\n", s.Stage, objective)
	fmt.Fprintf(&b, "Intereses: %s\n", interests)
	if extraContext != "" {
		b.WriteString(extraContext)
		b.WriteString("\n")
	}
	b.WriteString("Instrucciones:\n")
	b.WriteString("1. Sé breve (1-2 oraciones máximo).\n")
	b.WriteString("2. Adapta el lenguaje a la edad del usuario.\n")
	fmt.Fprintf(&b, "3. Mantén un tono %s.\n", tone(s.Params()))
	fmt.Fprintf(&b, "4. %s\n", stageInstruction(s.Stage))
	fmt.Fprintf(&b, "Último mensaje del usuario: %q\n", utterance)
	b.WriteString("Respuesta:")
	return b.String()
}

// recentContext joins the last few message contents for question prompts.
func recentContext(msgs []Message) string {
	n := len(msgs)
	if n > 3 {
		msgs = msgs[n-3:]
	}
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, " | ")
}

func greetingPrompt(u *models.User) string {
	return fmt.Sprintf("Genera un saludo cálido y amigable para %s de %s años. Sé breve (1-2 oraciones).",
		describeName(u), describeAge(u))
}

// missingFieldPrompt generates the question for exactly one missing datum.
// Fields are always requested one at a time.
func missingFieldPrompt(field Field, u *models.User, s *Session, msgs []Message) string {
	context := recentContext(msgs)
	switch field {
	case FieldName:
		return fmt.Sprintf("Conversación reciente: %q. Pregunta su nombre de forma cálida y breve.", context)
	case FieldAge:
		return fmt.Sprintf("Niño de edad desconocida. Conversación reciente: %q. Pregunta su edad de forma natural y amigable.", context)
	case FieldBook:
		return fmt.Sprintf("Conversación reciente: %q. Pregunta qué libro está leyendo de forma natural.", context)
	case FieldProgress:
		return fmt.Sprintf("El usuario lee %q. Conversación reciente: %q. Pregunta por dónde va en el libro de forma natural.", s.Book, context)
	}
	return fmt.Sprintf("Conversación reciente: %q. Haz una pregunta amigable para seguir la conversación.", context)
}

// cannedQuestions are the offline question texts used when generation is
// unavailable.
var cannedQuestions = map[Field]string{
	FieldName:     "¡Qué gusto leer contigo! ¿Cómo te llamas?",
	FieldAge:      "¡Hola! Para recomendarte libros geniales, dime ¿cuántos años tienes?",
	FieldBook:     "¿Qué libro estás leyendo ahora? Puedes decirme el título o contarme de qué trata.",
	FieldProgress: "¿Por qué parte vas en tu libro? (Ejemplo: \"voy por el capítulo donde...\")",
}

func transitionPrompt(s *Session, progressContext string) string {
	return fmt.Sprintf("Genera un mensaje de transición a la conversación sobre %q (%d%% leído). %s Sé breve.",
		s.Book, describeProgress(s), progressContext)
}

func explorationPrompt(u *models.User, s *Session, utterance string, progressContext string) string {
	return buildPrompt(u, s, utterance, progressContext)
}

func bookConfirmPrompt(suggested string) string {
	return fmt.Sprintf("¿Te refieres al libro %q? Dime sí o no.", suggested)
}

func summaryPrompt(u *models.User, s *Session, msgs []Message, progress []ProgressEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Genera un resumen breve (2-3 oraciones) de una sesión de lectura sobre %q con %s.\n",
		describeBook(s), describeName(u))
	if len(msgs) > 0 {
		b.WriteString("Mensajes recientes:\n")
		for _, m := range msgs {
			fmt.Fprintf(&b, "- %s: %s\n", m.Sender, m.Content)
		}
	}
	if len(progress) > 0 {
		last := progress[0]
		fmt.Fprintf(&b, "Último avance registrado: %q del %d%% al %d%%.\n", last.Book, last.Previous, last.Current)
	}
	return b.String()
}

func closingPrompt(u *models.User, s *Session) string {
	return fmt.Sprintf("Genera un mensaje de cierre cálido para %s sobre la sesión de lectura de %q. Sé breve.",
		describeName(u), describeBook(s))
}

func empathyPrompt(u *models.User, s *Session, utterance string) string {
	return fmt.Sprintf(`%s de %s años parece desanimado. Dijo: %q.
Respóndele con 1-2 oraciones empáticas, cálidas y sin presionarlo a seguir leyendo.`,
		describeName(u), describeAge(u), utterance)
}

func cannedSummary(s *Session) string {
	if s.Book == "" {
		return "Sesión de lectura sin libro registrado."
	}
	return fmt.Sprintf("Sesión de lectura sobre %q.", s.Book)
}

// formatProgressHistory renders the last progress entries for prompts,
// newest first: `"Libro" (40%), ...`.
func formatProgressHistory(entries []ProgressEntry) string {
	if len(entries) == 0 {
		return "sin historial"
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%q (%d%%)", e.Book, e.Current))
	}
	return strings.Join(parts, ", ")
}

// progressContext folds the latest progress-history entry into a prompt.
func progressContext(entries []ProgressEntry) string {
	if len(entries) == 0 {
		return ""
	}
	last := entries[0]
	return fmt.Sprintf("En la última sesión, el usuario leyó hasta el %d%% de %q.", last.Current, last.Book)
}

// Canned empathetic messages per detected emotion, used when generation is
// unavailable in the empathy paths.
var motivationalPool = map[string][]string{
	EmotionNegativa: {
		"Cada página que lees te hace más fuerte.",
		"Los buenos momentos en el libro están por venir.",
	},
	EmotionNeutra: {
		"Vas muy bien con tu lectura.",
		"¡Sigue explorando la historia!",
	},
	EmotionPositiva: {
		"¡Se nota que te encanta este libro!",
		"Tu entusiasmo es contagioso.",
	},
}

func motivationalMessage(rnd *rand.Rand, emotion string) string {
	pool, ok := motivationalPool[emotion]
	if !ok {
		pool = motivationalPool[EmotionNeutra]
	}
	return pool[rnd.Intn(len(pool))]
}
