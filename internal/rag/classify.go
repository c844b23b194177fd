package rag

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Kind is the derived classification of a query. It is computed from
// lexical rules and never persisted.
type Kind int

const (
	// KindInvalid marks degenerate input rejected before any retrieval.
	KindInvalid Kind = iota

	// KindCasual marks greetings, answered directly without retrieval.
	KindCasual

	// KindTechnical marks coffee-domain questions routed through the full
	// retrieve-augment-generate pipeline.
	KindTechnical

	// KindAboutSystem marks questions about the assistant itself, also
	// routed through the full pipeline.
	KindAboutSystem

	// KindGeneral is everything else; routed through the full pipeline by
	// default, never silently dropped.
	KindGeneral
)

// greetings is the fixed casual vocabulary, Spanish and English. Matching
// is substring-based over the folded query.
var greetings = []string{
	"hola", "holi", "holis", "holaaa", "holu",
	"que onda", "que rollo", "que pedo", "que pasa",
	"que tal", "como estas", "como va", "como andas",
	"buenas", "buenos dias", "buenas tardes", "buenas noches",
	"saludos", "que hay", "quibo", "quiubo", "que cuentas",
	"que haces", "como amaneciste", "como va todo",
	"buenas buenas", "wenas", "hola amigo", "hola amiga",
	"que show", "que mas",

	"hi", "hey", "hello", "heyy", "heya",
	"hi there", "hello there", "hey there",
	"good morning", "good afternoon", "good evening",
	"whats up", "what's up", "sup", "wassup", "wazzup",
	"hows it going", "how are you", "how ya doing", "how you doin",
	"yo", "hiya", "greetings",
	"whats good", "whats new", "howve you been",
	"long time no see",
}

// technicalKeywords is the fixed coffee-domain vocabulary: diseases and
// pests, management and treatment, plant parts and symptoms, agriculture,
// common problems.
var technicalKeywords = []string{
	"roya", "plaga", "plagas", "hongo", "hongos",
	"mancha", "manchas", "enfermedad", "enfermedades",
	"peste", "bacteria", "virus", "infeccion", "patogeno",
	"gusano", "insecto", "insectos", "cochinilla", "broca",
	"nematodo", "acaro",

	"nutricion", "fertilizar", "fertilizante", "abonado",
	"abono", "tratar", "tratamiento", "prevenir", "prevencion",
	"control biologico", "control quimico", "fumigar",
	"fumigacion", "poda", "podar", "riego",

	"hoja", "hojas", "tallo", "raiz", "raices",
	"fruto", "corteza", "secas", "amarillas", "cafeadas",
	"marchita", "marchitez", "decoloracion", "deformacion",

	"cafe", "cafetal", "cultivo", "planta", "plantacion",
	"agricola", "agricultura", "suelo", "sustrato",
	"ph", "nutrientes", "micronutrientes", "macronutrientes",

	"deficiencia", "toxicidad", "estres hidrico",
	"sobre riego", "sub riego", "falta de luz",
	"exceso de luz", "temperatura", "humedad",
}

// systemKeywords matches questions about the assistant itself.
var systemKeywords = []string{"kaapeh", "copiloto"}

// Classify derives the query kind, in priority order: validity filter,
// casual greeting, about-system, technical keywords, general fallback.
func Classify(query string) Kind {
	if !isValidQuery(query) {
		return KindInvalid
	}

	folded := foldQuery(query)

	if containsAny(folded, greetings) {
		return KindCasual
	}
	if containsAny(folded, systemKeywords) {
		return KindAboutSystem
	}
	if containsAny(folded, technicalKeywords) {
		return KindTechnical
	}
	return KindGeneral
}

// isValidQuery rejects degenerate input: too short, too few distinct
// letters, excessive consecutive letter repetition ("jajajaja"), or no
// letters at all.
func isValidQuery(query string) bool {
	trimmed := strings.TrimSpace(query)
	runes := []rune(trimmed)
	if len(runes) < 3 {
		return false
	}

	lower := []rune(strings.ToLower(trimmed))

	distinct := make(map[rune]struct{})
	hasLetter := false
	for _, r := range lower {
		if unicode.IsLetter(r) {
			distinct[r] = struct{}{}
			hasLetter = true
		}
	}
	if !hasLetter || len(distinct) <= 2 {
		return false
	}

	consecutive := 0
	for i := 1; i < len(lower); i++ {
		if lower[i] == lower[i-1] && unicode.IsLetter(lower[i]) {
			consecutive++
		}
	}
	if float64(consecutive)/float64(len(runes)) > 0.4 {
		return false
	}

	return true
}

// foldTransformer strips diacritics: NFD decomposition, removal of
// combining marks, NFC recomposition. "ñ" folds to "n", "café" to "cafe".
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldQuery lowercases, strips diacritics and drops punctuation that would
// break substring matching.
func foldQuery(query string) string {
	folded, _, err := transform.String(foldTransformer, strings.ToLower(query))
	if err != nil {
		folded = strings.ToLower(query)
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '!', '¡', '?', '¿', '.', ',', ';', ':', '(', ')', '-':
			return -1
		}
		return r
	}, folded)
}

func containsAny(s string, vocabulary []string) bool {
	for _, word := range vocabulary {
		if strings.Contains(s, word) {
			return true
		}
	}
	return false
}
