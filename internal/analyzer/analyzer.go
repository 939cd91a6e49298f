// Package analyzer turns free-text property queries into structured
// filters. It is pure and total: no I/O, no failure mode, an empty or
// unparseable query yields a zero-confidence general-search result.
package analyzer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"homematch/internal/domain"
)

const maxSuggestions = 5

var wordRe = regexp.MustCompile(`[a-z0-9£]+`)

// Analyze extracts structured filters, keywords, sentiment and a
// confidence score from a natural-language query.
func Analyze(query string) domain.SemanticAnalysis {
	q := strings.ToLower(strings.TrimSpace(query))
	out := domain.SemanticAnalysis{
		Intent:    "General property search",
		Sentiment: domain.SentimentNeutral,
	}
	if q == "" {
		return out
	}

	confidence := 0

	if min, max, ok := extractPrice(q); ok {
		out.Filters.MinPrice = min
		out.Filters.MaxPrice = max
		confidence += pointsPrice
	}
	if n, ok := extractCount(bedroomRe, q); ok {
		out.Filters.Bedrooms = &n
		confidence += pointsBedrooms
	}
	if n, ok := extractCount(bathroomRe, q); ok {
		out.Filters.Bathrooms = &n
		confidence += pointsBathrooms
	}
	for _, r := range typeRules {
		if r.re.MatchString(q) {
			t := r.t
			out.Filters.PropertyType = &t
			confidence += pointsType
			break
		}
	}
	for _, loc := range knownLocations {
		if strings.Contains(q, loc) {
			l := loc
			out.Filters.Location = &l
			confidence += pointsLocation
			break
		}
	}
	for _, r := range featureRules {
		if r.re.MatchString(q) {
			out.Filters.Features = append(out.Filters.Features, r.tag)
			out.Suggestions = append(out.Suggestions, r.suggestion)
		}
	}
	if len(out.Filters.Features) > 0 {
		confidence += pointsFeatures
	}
	if applySizeClass(q, &out.Filters) {
		confidence += pointsSize
	}

	out.Keywords = extractKeywords(q)
	out.Sentiment = extractSentiment(out.Keywords)
	out.Confidence = capConfidence(confidence)
	out.Intent = describeIntent(out.Filters)
	out.Suggestions = refineSuggestions(out)
	return out
}

func capConfidence(c int) int {
	if c > 100 {
		return 100
	}
	return c
}

// extractPrice runs the ordered price rules; the first hit wins. Bounds
// are normalized so min <= max regardless of how the user wrote them.
func extractPrice(q string) (minP, maxP *float64, ok bool) {
	for _, r := range priceRules {
		m := r.re.FindStringSubmatch(q)
		if m == nil {
			continue
		}
		switch r.kind {
		case "range":
			// A bare "2-3" must not read as a price range; require a
			// currency or magnitude marker on at least one side.
			if !strings.Contains(m[0], "£") && !strings.Contains(m[0], "k") &&
				!strings.HasPrefix(m[0], "between") {
				continue
			}
			lo, hi := parsePrice(m[1]), parsePrice(m[2])
			if lo > hi {
				lo, hi = hi, lo
			}
			return &lo, &hi, true
		case "min":
			v := parsePrice(m[1])
			return &v, nil, true
		case "max":
			v := parsePrice(m[1])
			return nil, &v, true
		case "around":
			v := parsePrice(m[1])
			lo, hi := v*0.9, v*1.1
			return &lo, &hi, true
		}
	}
	return nil, nil, false
}

// parsePrice converts a price token to pounds. A trailing "k" multiplies
// by 1000; otherwise a number of up to three digits is assumed to be in
// thousands (people write "under £400" meaning £400k). Four or more
// digits are taken at face value, so "2500" stays £2,500 - ambiguous in
// principle, but that is the documented heuristic.
func parsePrice(tok string) float64 {
	tok = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tok), "£"))
	tok = strings.ReplaceAll(tok, ",", "")
	thousands := false
	if strings.HasSuffix(tok, "k") {
		tok = strings.TrimSuffix(tok, "k")
		thousands = true
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0
	}
	digits := len(tok)
	if i := strings.IndexByte(tok, '.'); i >= 0 {
		digits = i
	}
	if thousands || digits <= 3 {
		v *= 1000
	}
	return v
}

func extractCount(re *regexp.Regexp, q string) (int, bool) {
	m := re.FindStringSubmatch(q)
	if m == nil {
		return 0, false
	}
	if n, ok := spelledNumbers[m[1]]; ok {
		return n, true
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func applySizeClass(q string, f *domain.SearchFilters) bool {
	switch {
	case hugeRe.MatchString(q):
		v := float64(hugeMinAreaSqft)
		f.MinArea = &v
	case largeRe.MatchString(q):
		v := float64(largeMinAreaSqft)
		f.MinArea = &v
	case smallRe.MatchString(q):
		v := float64(smallMaxAreaSqft)
		f.MaxArea = &v
	default:
		return false
	}
	return true
}

func extractKeywords(q string) []string {
	var out []string
	seen := map[string]bool{}
	for _, w := range wordRe.FindAllString(q, -1) {
		if len(w) <= 2 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func extractSentiment(keywords []string) domain.Sentiment {
	pos, neg := 0, 0
	for _, w := range keywords {
		if positiveWords[w] {
			pos++
		}
		if negativeWords[w] {
			neg++
		}
	}
	switch {
	case pos > neg:
		return domain.SentimentPositive
	case neg > pos:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

func describeIntent(f domain.SearchFilters) string {
	var parts []string
	extracted := f.Bedrooms != nil || f.PropertyType != nil ||
		f.Location != nil || f.MinPrice != nil || f.MaxPrice != nil
	if !extracted {
		return "General property search"
	}
	if f.Bedrooms != nil {
		parts = append(parts, fmt.Sprintf("%d bedroom", *f.Bedrooms))
	}
	if f.PropertyType != nil {
		parts = append(parts, string(*f.PropertyType))
	} else {
		parts = append(parts, "property")
	}
	if f.Location != nil {
		parts = append(parts, "in "+*f.Location)
	}
	switch {
	case f.MinPrice != nil && f.MaxPrice != nil:
		parts = append(parts, fmt.Sprintf("between £%s and £%s", commaize(*f.MinPrice), commaize(*f.MaxPrice)))
	case f.MaxPrice != nil:
		parts = append(parts, "under £"+commaize(*f.MaxPrice))
	case f.MinPrice != nil:
		parts = append(parts, "over £"+commaize(*f.MinPrice))
	}
	return "Looking for " + strings.Join(parts, " ")
}

func refineSuggestions(a domain.SemanticAnalysis) []string {
	s := a.Suggestions
	if a.Filters.MinPrice == nil && a.Filters.MaxPrice == nil {
		s = append(s, "Add a price range")
	}
	if a.Filters.Location == nil {
		s = append(s, "Add an area or zone")
	}
	if len(s) > maxSuggestions {
		s = s[:maxSuggestions]
	}
	return s
}

func commaize(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
	n := len(s)
	if n <= 3 {
		return s
	}
	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
