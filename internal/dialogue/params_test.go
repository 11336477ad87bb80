package dialogue

import (
	"context"
	"testing"

	"github.com/lectigo/lectigo/internal/ai"
)

func TestAnalyzeShortUtteranceIsNeutralWithoutClassifying(t *testing.T) {
	prov := &scriptedProvider{}
	a := NewAnalyzer(ai.NewSafe(prov))

	for _, utterance := range []string{"hola", "ok", "sí", "  jaja  ", ""} {
		got := a.Analyze(context.Background(), utterance)
		if got != NeutralParams() {
			t.Errorf("%q: got %+v, want neutral", utterance, got)
		}
	}
	if len(prov.prompts) != 0 {
		t.Fatalf("short utterances must not reach the classifier, got %d calls", len(prov.prompts))
	}
}

func TestAnalyzeParsesFencedJSON(t *testing.T) {
	prov := &scriptedProvider{respond: func(string) string {
		return "```json\n{\"comprension\":\"ALTA\",\"emocion\":\"positiva\",\"motivacion\":\"alta\"}\n```"
	}}
	a := NewAnalyzer(ai.NewSafe(prov))

	got := a.Analyze(context.Background(), "me encanta este libro de dragones")
	want := Params{Comprension: LevelAlta, Emocion: EmotionPositiva, Motivacion: LevelAlta}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestAnalyzeLeavesOutOfVocabularyFieldsEmpty(t *testing.T) {
	prov := &scriptedProvider{respond: func(string) string {
		return `{"comprension":"muy alta","emocion":"feliz","motivacion":"baja"}`
	}}
	a := NewAnalyzer(ai.NewSafe(prov))

	got := a.Analyze(context.Background(), "entendí todo lo que pasó en el capítulo")
	want := Params{Comprension: "", Emocion: "", Motivacion: LevelBaja}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestAnalyzePartialClassificationKeepsEstablishedParams(t *testing.T) {
	prov := &scriptedProvider{respond: func(string) string {
		return `{"motivacion":"baja"}`
	}}
	a := NewAnalyzer(ai.NewSafe(prov))

	established := Params{Comprension: LevelAlta, Emocion: EmotionNegativa, Motivacion: LevelMedia}
	got := established.Merge(a.Analyze(context.Background(), "ya no tengo ganas de seguir leyendo"))
	want := Params{Comprension: LevelAlta, Emocion: EmotionNegativa, Motivacion: LevelBaja}
	if got != want {
		t.Fatalf("partial classification must only touch its own field: got %+v, want %+v", got, want)
	}
}

func TestAnalyzeDegradesToNeutral(t *testing.T) {
	cases := map[string]*scriptedProvider{
		"provider failure": {fail: true},
		"no json at all":   {respond: func(string) string { return "no puedo analizar eso" }},
		"broken json":      {respond: func(string) string { return `{"comprension": ` }},
	}
	for name, prov := range cases {
		a := NewAnalyzer(ai.NewSafe(prov))
		got := a.Analyze(context.Background(), "hoy leí dos capítulos enteros")
		if got != NeutralParams() {
			t.Errorf("%s: got %+v, want neutral", name, got)
		}
	}
}

func TestParamsMergeKeepsPreviousOnMissingFields(t *testing.T) {
	current := Params{Comprension: LevelAlta, Emocion: EmotionPositiva, Motivacion: LevelAlta}

	got := current.Merge(Params{Emocion: EmotionNegativa})
	want := Params{Comprension: LevelAlta, Emocion: EmotionNegativa, Motivacion: LevelAlta}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	// garbage never overwrites a valid value
	got = current.Merge(Params{Comprension: "altísima", Emocion: "x", Motivacion: ""})
	if got != current {
		t.Fatalf("invalid fields must keep previous values, got %+v", got)
	}
}
