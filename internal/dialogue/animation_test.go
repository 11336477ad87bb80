package dialogue

import "testing"

func TestClassifyAnimation(t *testing.T) {
	cases := []struct {
		reply string
		want  string
	}{
		{"¡Hola Ana, qué gusto verte!", AnimGreet},
		{"¡Felicidades, terminaste el capítulo!", AnimCelebrate},
		{"¡Muy bien! Sigue así.", AnimCelebrate},
		{"Tranquila, no pasa nada si hoy no quieres leer.", AnimComfort},
		{"¿Qué crees que hará el lobo ahora?", AnimAsk},
		{"El bosque del cuento es muy grande.", AnimNeutral},
		{"", AnimNeutral},
	}
	for _, c := range cases {
		if got := ClassifyAnimation(c.reply); got != c.want {
			t.Errorf("%q: got %q, want %q", c.reply, got, c.want)
		}
	}
}
