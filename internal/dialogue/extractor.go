package dialogue

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/lectigo/lectigo/internal/ai"
	"github.com/lectigo/lectigo/internal/models"
)

// Field identifies one diagnostic datum. The values double as the keys the
// clients already use.
type Field string

const (
	FieldName     Field = "NOMBRE"
	FieldAge      Field = "EDAD"
	FieldBook     Field = "LIBRO_ACTUAL"
	FieldProgress Field = "PROGRESO_LIBRO"
)

// fieldPriority is the fixed order missing data is requested in, one
// question at a time.
var fieldPriority = []Field{FieldName, FieldAge, FieldBook, FieldProgress}

// missingFields lists the diagnostic data still absent, in priority order.
// Progress counts as missing until it is positive; a stored 0 does not
// satisfy the diagnostic.
func missingFields(u *models.User, s *Session) []Field {
	var missing []Field
	if u.Name == "" {
		missing = append(missing, FieldName)
	}
	if u.Age == nil {
		missing = append(missing, FieldAge)
	}
	if s.Book == "" {
		missing = append(missing, FieldBook)
	}
	if !s.HasProgress() {
		missing = append(missing, FieldProgress)
	}
	return missing
}

// BookResult is the outcome of book-title extraction. A Suggested title is
// a best guess that still needs an explicit yes/no confirmation before it
// is committed.
type BookResult struct {
	Title     string
	Confirmed bool
	Suggested bool
}

// Extractor pulls diagnostic data out of free-text utterances via the
// classifier. Every method treats unusable output as "absent", never as a
// default value.
type Extractor struct {
	gen *ai.Safe
}

func NewExtractor(gen *ai.Safe) *Extractor {
	return &Extractor{gen: gen}
}

var digitsRe = regexp.MustCompile(`\d+`)

func (e *Extractor) ExtractName(ctx context.Context, utterance string) (string, bool) {
	prompt := fmt.Sprintf("El niño dijo: %q. ¿Menciona su nombre? Responde SOLO con el nombre o \"NO\".", utterance)
	resp, err := e.gen.TryAsk(ctx, prompt)
	if err != nil {
		return "", false
	}
	resp = strings.TrimSpace(strings.Trim(strings.TrimSpace(resp), `"`))
	if resp == "" || strings.EqualFold(resp, "NO") || len(strings.Fields(resp)) > 3 {
		return "", false
	}
	return resp, true
}

func (e *Extractor) ExtractAge(ctx context.Context, utterance string) (int, bool) {
	prompt := fmt.Sprintf("El niño dijo: %q. ¿Menciona su edad? Responde SOLO con el número o \"NO\".", utterance)
	resp, err := e.gen.TryAsk(ctx, prompt)
	if err != nil {
		return 0, false
	}
	if strings.Contains(strings.ToUpper(resp), "NO") {
		return 0, false
	}
	m := digitsRe.FindString(resp)
	if m == "" {
		return 0, false
	}
	age, err := strconv.Atoi(m)
	if err != nil || age < 2 || age > 17 {
		return 0, false
	}
	return age, true
}

// ExtractBook asks first whether the utterance clearly names a known book.
// If not conclusive it falls back to a best-guess classification; a guess
// is returned as Suggested and must be confirmed on the next turn.
func (e *Extractor) ExtractBook(ctx context.Context, utterance string) BookResult {
	prompt := fmt.Sprintf(`Analiza: %q. ¿Contiene claramente el título de un libro infantil conocido?
Responde SOLO con el título exacto entre comillas o "NO".`, utterance)
	resp, err := e.gen.TryAsk(ctx, prompt)
	if err != nil {
		return BookResult{}
	}

	if title, ok := quotedTitle(resp); ok {
		return BookResult{Title: title, Confirmed: true}
	}

	guessPrompt := fmt.Sprintf(`El niño dijo: %q. ¿Menciona algún libro, aunque sea de forma aproximada?
Responde SOLO con tu mejor suposición del título o "NO".`, utterance)
	guess, err := e.gen.TryAsk(ctx, guessPrompt)
	if err != nil {
		return BookResult{}
	}
	guess = strings.TrimSpace(strings.Trim(strings.TrimSpace(guess), `"`))
	guess = strings.TrimRight(guess, ".!")
	if guess == "" || strings.EqualFold(guess, "NO") {
		return BookResult{}
	}
	return BookResult{Title: guess, Suggested: true}
}

// quotedTitle pulls a book title out of a `"Título"` style answer. The
// answer "NO" (or anything without quotes) is not a title.
func quotedTitle(resp string) (string, bool) {
	start := strings.Index(resp, `"`)
	if start == -1 {
		return "", false
	}
	end := strings.Index(resp[start+1:], `"`)
	if end == -1 {
		return "", false
	}
	title := strings.TrimSpace(resp[start+1 : start+1+end])
	if title == "" || strings.EqualFold(title, "NO") {
		return "", false
	}
	return title, true
}

// ConfirmBook resolves the confirmation sub-state: did the child accept
// the suggested title? Unclear answers count as "no" so the flow re-asks
// instead of committing a wrong book.
func (e *Extractor) ConfirmBook(ctx context.Context, utterance, suggested string) bool {
	u := strings.ToLower(utterance)
	if hasWord(u, "sí") || hasWord(u, "si") || strings.Contains(u, "ese es") || strings.Contains(u, "exacto") {
		return true
	}
	if hasWord(u, "no") {
		return false
	}
	prompt := fmt.Sprintf("Le pregunté al niño si su libro es %q y respondió: %q. ¿Confirma que sí? Responde SOLO \"SI\" o \"NO\".",
		suggested, utterance)
	resp, err := e.gen.TryAsk(ctx, prompt)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToUpper(resp), "SI")
}

// hasWord reports whether w appears in s as a whole word. Substrings
// inside other words ("bueno" contains "no") do not count.
func hasWord(s, w string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if f == w {
			return true
		}
	}
	return false
}

// ExtractProgress estimates a 0-100 progress percentage from a free-text
// description of "how far" the child has read. Absent or unparseable
// answers are absent, never 0: a real 0 must stay distinguishable from
// "unknown".
func (e *Extractor) ExtractProgress(ctx context.Context, book, utterance string) (int, bool) {
	prompt := fmt.Sprintf(`El usuario está leyendo %q. Le pregunté por dónde va y respondió: %q.
Basado en esto, estima aproximadamente el porcentaje de avance en el libro (0 a 100).
Responde SOLO con un número entero o "NO" si no se puede estimar.`, book, utterance)
	resp, err := e.gen.TryAsk(ctx, prompt)
	if err != nil {
		return 0, false
	}
	if strings.Contains(strings.ToUpper(resp), "NO") {
		return 0, false
	}
	m := digitsRe.FindString(resp)
	if m == "" {
		return 0, false
	}
	pct, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, true
}
