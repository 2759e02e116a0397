// Package intent classifies a user turn into the mode the model should
// answer in. Classification is a fixed, ordered rule cascade: the first
// matching rule wins.
package intent

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Intent is the classified purpose of one user turn.
type Intent int

const (
	Conversational Intent = iota
	Discovery
	Analysis
	Modify
)

func (i Intent) String() string {
	switch i {
	case Conversational:
		return "conversational"
	case Discovery:
		return "discovery"
	case Analysis:
		return "analysis"
	case Modify:
		return "modify"
	default:
		return "unknown"
	}
}

// Minimum message lengths, in runes, for the detail and vague-request rules.
const (
	detailMinLength = 15
	vagueMinLength  = 20
)

var (
	smallTalk = regexp.MustCompile(`^(ciao|hey|hi|hello|salve|buongiorno|buonasera|ok|okay|va bene|capito|got it|sì|si|yes|no|grazie|thanks|thank you|perfetto|perfect|ottimo|great|grande|fantastico|eccomi|sono tornato|i'm back|ci sei)[?!.]*$`)

	removal = regexp.MustCompile(`^(togli|rimuovi|elimina|cancella|leva|remove|delete|drop)\s+`)

	change = regexp.MustCompile(`^(cambia|sostituisci|modifica|change|replace|modify)\s+.*\b(con|in|with|to)\b`)

	insertion = regexp.MustCompile(`^(aggiungi|inserisci|metti|add|insert|append)\s+`)

	rewrite = regexp.MustCompile(`^(riscrivi|rifai|rendilo|fallo|rewrite|redo|make it)\s+(tutto|meglio|production|completo|completamente|everything|better|completely)`)

	confirmation     = regexp.MustCompile(`^(sì|si|ok|procedi|fallo|vai|esegui|applicalo|confermo|yes|proceed|do it|go ahead|apply it)[\s,.!]*$`)
	confirmationPair = regexp.MustCompile(`^(sì|si|ok|yes),?\s*(fallo|procedi|vai|do it|go ahead|proceed)`)

	// Audience or use-case details: the user answered the discovery questions.
	detail = regexp.MustCompile(`(per\s+(studiare|imparare|lavorare|creare|scrivere)|studen|principiant|esperto|universitari|liceal|professionale|\bchatgpt\b|\bclaude\b|\bgemini\b|\bapi\b|for\s+(studying|learning|work|writing|a beginner|beginners)|\bbeginner|\bexpert\b|\bprofessional\b)`)

	creation = regexp.MustCompile(`^(mi serve|ho bisogno|vorrei|avrei bisogno|fammi|creami|costruiscimi|genera|crea|scrivi|i need|i want|i'd like|create|write|build|make me)\s+(un|una|il|la|dei|delle|a|an|the)?\s*(prompt|sistema|assistente|chatbot|bot|agente|tutor|helper|system|assistant|agent)`)

	vagueRequest = regexp.MustCompile(`(serve|bisogno|vorrei|voglio|need|want)\s+.*\s+(per|che|da|for|that|to)`)

	question = regexp.MustCompile(`^(come |cosa |qual|perché |perche |puoi |potresti |che ne pensi|com'è|dimmi|spiega|analizza|descrivi|valuta|controlla|verifica|leggi|guarda|how |what |which |why |can you |could you |tell me|explain|analy[sz]e|describe|evaluate|check|verify|read|look)`)
)

// Classify assigns an intent to message. docNonEmpty reports whether the
// live document has any non-blank content.
func Classify(message string, docNonEmpty bool) Intent {
	m := strings.ToLower(strings.TrimSpace(message))
	length := utf8.RuneCountInString(m)

	switch {
	case smallTalk.MatchString(m):
		return Conversational

	// Removal beats the question rule: "togli X?" is an edit.
	case removal.MatchString(m),
		change.MatchString(m),
		insertion.MatchString(m),
		rewrite.MatchString(m),
		confirmation.MatchString(m) || confirmationPair.MatchString(m):
		return Modify

	case !docNonEmpty && detail.MatchString(m) && length > detailMinLength:
		return Modify

	case !docNonEmpty && creation.MatchString(m):
		return Discovery

	case !docNonEmpty && vagueRequest.MatchString(m) && length > vagueMinLength:
		return Discovery

	case strings.Contains(m, "?") || question.MatchString(m):
		return Analysis
	}

	if docNonEmpty {
		return Analysis
	}
	return Conversational
}
