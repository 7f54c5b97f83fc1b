package steps

import (
	"regexp"
	"strings"
)

// TruncatePolicy controls the final sentence-boundary cut.
type TruncatePolicy string

const (
	// TruncateLastTerminal cuts after the last '.', '!' or '?' when one exists.
	TruncateLastTerminal TruncatePolicy = "last_terminal"
	// TruncateNone keeps the text whole.
	TruncateNone TruncatePolicy = "none"
)

func ParseTruncatePolicy(raw string) TruncatePolicy {
	switch TruncatePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case TruncateNone:
		return TruncateNone
	default:
		return TruncateLastTerminal
	}
}

// SanitizeOptions are the per call site inputs of the sanitizer.
type SanitizeOptions struct {
	// BannedMarkers invalidate any line that contains one of them (case-sensitive).
	BannedMarkers []string
	// Titles the model tends to echo at the start of its answer.
	Titles []string
}

// Sanitizer cleans raw generator output into a single utterance. It is pure
// and safe for concurrent use.
type Sanitizer struct {
	Policy TruncatePolicy
}

func NewSanitizer(policy TruncatePolicy) Sanitizer {
	if policy == "" {
		policy = TruncateLastTerminal
	}
	return Sanitizer{Policy: policy}
}

// Sanitize runs the default sanitizer.
func Sanitize(raw string, opts SanitizeOptions) string {
	return NewSanitizer(TruncateLastTerminal).Sanitize(raw, opts)
}

const maxSanitizePasses = 16

// Sanitize applies the cleaning pipeline until the text stops changing, so
// Sanitize(Sanitize(x)) == Sanitize(x).
func (s Sanitizer) Sanitize(raw string, opts SanitizeOptions) string {
	titleRes := compileTitlePatterns(opts.Titles)
	out := raw
	for i := 0; i < maxSanitizePasses; i++ {
		next := s.pass(out, opts.BannedMarkers, titleRes)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func (s Sanitizer) pass(text string, banned []string, titleRes []*regexp.Regexp) string {
	text = stripThinking(text)
	text = stripControlTokens(text)
	text = collapseLines(text, banned)
	text = stripLeadingTitles(text, titleRes)
	text = stripQuotePairs(text)
	if s.Policy != TruncateNone {
		text = truncateAtLastTerminal(text)
	}
	return text
}

var (
	thinkOpen  = []string{"<think>", "<thinking>"}
	thinkClose = []string{"</think>", "</thinking>"}
)

func firstOf(s string, needles []string) (int, int) {
	idx, width := -1, 0
	for _, n := range needles {
		if i := strings.Index(s, n); i >= 0 && (idx < 0 || i < idx) {
			idx, width = i, len(n)
		}
	}
	return idx, width
}

// stripThinking removes reasoning regions. A close marker with no open
// marker before it keeps only what follows; an unclosed open marker drops
// everything from it onward.
func stripThinking(s string) string {
	for {
		openAt, openW := firstOf(s, thinkOpen)
		closeAt, closeW := firstOf(s, thinkClose)
		switch {
		case closeAt >= 0 && (openAt < 0 || closeAt < openAt):
			s = s[closeAt+closeW:]
		case openAt >= 0:
			rest := s[openAt+openW:]
			endAt, endW := firstOf(rest, thinkClose)
			if endAt < 0 {
				return s[:openAt]
			}
			s = s[:openAt] + rest[endAt+endW:]
		default:
			return s
		}
	}
}

var (
	headerBlockRe = regexp.MustCompile(`(?s)<\|start_header_id\|>.*?<\|end_header_id\|>`)
	controlTokens = []string{
		"<|begin_of_text|>", "<|eot_id|>", "<|end_of_text|>",
		"<|start_header_id|>", "<|end_header_id|>",
		"<|im_start|>", "<|im_end|>",
		"[INST]", "[/INST]", "<s>", "</s>",
	}
)

func stripControlTokens(s string) string {
	for {
		next := headerBlockRe.ReplaceAllString(s, "")
		for _, tok := range controlTokens {
			next = strings.ReplaceAll(next, tok, "")
		}
		if next == s {
			return s
		}
		s = next
	}
}

const recoveryLabel = "Example:"

// collapseLines keeps every clean line and joins them into one utterance.
func collapseLines(s string, banned []string) string {
	var kept []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || containsAny(line, banned) {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) > 0 {
		return strings.Join(kept, " ")
	}
	if i := strings.LastIndex(s, recoveryLabel); i >= 0 {
		if rest := strings.Join(strings.Fields(s[i+len(recoveryLabel):]), " "); rest != "" {
			return rest
		}
	}
	return strings.TrimSpace(s)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

const (
	quoteChars    = `"'“”‘’「」『』`
	titleParticle = `(?:은|는|이|가|을|를|의|와|과|도|에서|에|으로|로)?`
)

func compileTitlePatterns(titles []string) []*regexp.Regexp {
	seen := map[string]bool{}
	var out []*regexp.Regexp
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, regexp.MustCompile(
			`^([\s`+quoteChars+`]*)`+regexp.QuoteMeta(t)+titleParticle+`(?:[\s,.:;!?~\-`+quoteChars+`]+|$)`,
		))
	}
	return out
}

// stripLeadingTitles removes an echoed title at the start of the text unless
// nothing would be left. Opening quotes consumed with the title take their
// closing partner at the end of the text with them.
func stripLeadingTitles(s string, res []*regexp.Regexp) string {
	for changed := true; changed; {
		changed = false
		for _, re := range res {
			loc := re.FindStringSubmatchIndex(s)
			if loc == nil || loc[1] == 0 {
				continue
			}
			rest := dropClosers(strings.TrimSpace(s[loc[1]:]), s[loc[2]:loc[3]])
			if rest == "" {
				continue
			}
			s = rest
			changed = true
		}
	}
	return s
}

// dropClosers trims the closing quote for each opener in lead, outermost first.
func dropClosers(s, lead string) string {
	for _, r := range lead {
		for _, p := range quotePairs {
			if p[0] != string(r) || !strings.HasSuffix(s, p[1]) {
				continue
			}
			if trimmed := strings.TrimSpace(strings.TrimSuffix(s, p[1])); trimmed != "" {
				s = trimmed
			}
			break
		}
	}
	return s
}

var quotePairs = [][2]string{
	{`"`, `"`}, {`'`, `'`}, {"“", "”"}, {"‘", "’"}, {"「", "」"}, {"『", "』"},
}

func stripQuotePairs(s string) string {
	s = strings.TrimSpace(s)
	for changed := true; changed; {
		changed = false
		for _, p := range quotePairs {
			if len(s) >= len(p[0])+len(p[1]) && strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) {
				s = strings.TrimSpace(s[len(p[0]) : len(s)-len(p[1])])
				changed = true
			}
		}
	}
	return s
}

func truncateAtLastTerminal(s string) string {
	if i := strings.LastIndexAny(s, ".!?"); i >= 0 {
		return strings.TrimSpace(s[:i+1])
	}
	return s
}
