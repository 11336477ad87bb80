package dialogue

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/lectigo/lectigo/internal/ai"
)

func testSelector(prov *scriptedProvider) *Selector {
	return NewSelector(ai.NewSafe(prov), rand.New(rand.NewSource(1)))
}

func TestSelectWithoutBookIsGeneric(t *testing.T) {
	prov := &scriptedProvider{}
	sel := testSelector(prov)

	prompt, kind := sel.Select(context.Background(), &Session{}, "sin historial")
	if kind != "general" {
		t.Fatalf("kind = %q, want general", kind)
	}
	if !strings.Contains(prompt, "sin mencionar ningún libro") {
		t.Fatalf("generic prompt must not reference a title: %q", prompt)
	}
	if len(prov.prompts) != 0 {
		t.Fatalf("no ranking expected without a book")
	}
}

func TestSelectTargetsDeficientParameter(t *testing.T) {
	cases := []struct {
		params Params
		kinds  []string
	}{
		{Params{Comprension: LevelMedia, Emocion: EmotionNegativa, Motivacion: LevelMedia},
			[]string{"chiste", "dato_curioso", "animar"}},
		{Params{Comprension: LevelMedia, Emocion: EmotionNeutra, Motivacion: LevelBaja},
			[]string{"reto", "pregunta_intriga"}},
		{Params{Comprension: LevelBaja, Emocion: EmotionNeutra, Motivacion: LevelMedia},
			[]string{"pregunta_comprension", "resumen"}},
		{NeutralParams(),
			[]string{"pregunta_exploracion", "conexion_personal"}},
	}

	for _, c := range cases {
		// ranker picks the last catalog entry so both selection and ranking
		// are observable
		last := c.kinds[len(c.kinds)-1]
		prov := &scriptedProvider{respond: func(string) string { return last }}
		sel := testSelector(prov)

		s := &Session{Book: "Caperucita Roja", Progress: intPtr(40)}
		s.SetParams(c.params)

		_, kind := sel.Select(context.Background(), s, "sin historial")
		if kind != last {
			t.Errorf("params %+v: kind = %q, want %q", c.params, kind, last)
		}
	}
}

func TestRankUnknownChoiceFallsBackToFirstEntry(t *testing.T) {
	prov := &scriptedProvider{respond: func(string) string { return "hacer_malabares" }}
	sel := testSelector(prov)

	s := &Session{Book: "Caperucita Roja"}
	s.SetParams(NeutralParams())

	_, kind := sel.Select(context.Background(), s, "sin historial")
	if kind != "pregunta_exploracion" {
		t.Fatalf("unknown ranking choice must fall back to first entry, got %q", kind)
	}
}

func TestRankFailureFallsBackToFirstEntry(t *testing.T) {
	sel := testSelector(&scriptedProvider{fail: true})

	s := &Session{Book: "Caperucita Roja"}
	s.SetParams(Params{Comprension: LevelMedia, Emocion: EmotionNegativa, Motivacion: LevelMedia})

	prompt, kind := sel.Select(context.Background(), s, "sin historial")
	if kind != "chiste" {
		t.Fatalf("ranker failure must fall back to first entry, got %q", kind)
	}
	if !strings.Contains(prompt, "Caperucita Roja") {
		t.Fatalf("activity prompt must reference the book: %q", prompt)
	}
}
