package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		message     string
		docNonEmpty bool
		want        Intent
	}{
		{name: "greeting", message: "Ciao!", want: Conversational},
		{name: "thanks with doc", message: "grazie", docNonEmpty: true, want: Conversational},
		{name: "english ack", message: "thanks.", docNonEmpty: true, want: Conversational},
		{name: "ok is small talk before confirmation", message: "ok", docNonEmpty: true, want: Conversational},

		{name: "removal question", message: "togli la sezione esempi?", docNonEmpty: true, want: Modify},
		{name: "english removal", message: "Remove the last paragraph", docNonEmpty: true, want: Modify},
		{name: "change with", message: "cambia il tono con uno più formale", docNonEmpty: true, want: Modify},
		{name: "change to", message: "change the title to Onboarding", docNonEmpty: true, want: Modify},
		{name: "insertion", message: "aggiungi una sezione sui vincoli", docNonEmpty: true, want: Modify},
		{name: "full rewrite", message: "riscrivi tutto in modo più chiaro", docNonEmpty: true, want: Modify},
		{name: "make it better", message: "make it better please", docNonEmpty: true, want: Modify},
		{name: "bare confirmation", message: "procedi!", docNonEmpty: true, want: Modify},
		{name: "confirmation pair", message: "sì, fallo", docNonEmpty: true, want: Modify},

		{name: "use-case detail on empty doc", message: "ho bisogno di un prompt per un tutor di matematica per studenti liceali", want: Modify},
		{name: "detail answer", message: "per studiare storia all'università", want: Modify},
		{name: "detail too short", message: "per studiare", want: Conversational},
		{name: "detail ignored with doc", message: "è per uno studente", docNonEmpty: true, want: Analysis},

		{name: "creation request", message: "mi serve un prompt", want: Discovery},
		{name: "english creation", message: "I need an assistant", want: Discovery},
		{name: "vague request", message: "vorrei qualcosa che mi aiuti con le email", want: Discovery},
		{name: "vague too short", message: "voglio tè per te", want: Conversational},
		{name: "creation with doc is not discovery", message: "mi serve un prompt", docNonEmpty: true, want: Analysis},

		{name: "question mark", message: "è abbastanza chiaro?", docNonEmpty: true, want: Analysis},
		{name: "interrogative verb", message: "spiega la seconda sezione", docNonEmpty: true, want: Analysis},
		{name: "english interrogative", message: "can you review it", want: Analysis},

		{name: "default with doc", message: "interessante", docNonEmpty: true, want: Analysis},
		{name: "default empty doc", message: "interessante", want: Conversational},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.message, tt.docNonEmpty), "Classify(%q)", tt.message)
		})
	}
}

func TestIntentString(t *testing.T) {
	assert.Equal(t, "conversational", Conversational.String())
	assert.Equal(t, "discovery", Discovery.String())
	assert.Equal(t, "analysis", Analysis.String())
	assert.Equal(t, "modify", Modify.String())
	assert.Equal(t, "unknown", Intent(42).String())
}
