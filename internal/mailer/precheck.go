package mailer

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// Evaluation is the outcome of a content pre-check. The score is advisory:
// it never blocks a send, it just tells the operator what a spam filter is
// likely to dislike.
type Evaluation struct {
	Score    float64  `json:"score"` // 0-100, higher is better
	Findings []string `json:"findings"`
}

// spamPhrases are classic filter-trigger phrases. Matching is
// case-insensitive against subject and body text.
var spamPhrases = []string{
	"act now",
	"free money",
	"100% free",
	"risk free",
	"no obligation",
	"winner",
	"congratulations you",
	"click here now",
	"limited time offer",
	"cash bonus",
	"earn extra cash",
	"urgent response required",
}

var (
	linkRe = regexp.MustCompile(`(?i)<a\s[^>]*href=`)
	tagRe  = regexp.MustCompile(`(?s)<[^>]*>`)
	imgRe  = regexp.MustCompile(`(?i)<img\s`)
)

// EvaluateContent scores a campaign's subject and HTML body for inbox
// placement. Starts at 100 and deducts per finding.
func EvaluateContent(subject, html string) Evaluation {
	score := 100.0
	var findings []string

	lowerAll := strings.ToLower(subject + " " + html)
	hits := 0
	for _, phrase := range spamPhrases {
		if strings.Contains(lowerAll, phrase) {
			hits++
			findings = append(findings, "spam-trigger phrase: "+phrase)
		}
	}
	score -= math.Min(float64(hits)*8, 32)

	if r := capsRatio(subject); len(subject) >= 10 && r > 0.5 {
		score -= 15
		findings = append(findings, "subject is mostly uppercase")
	}

	text := strings.TrimSpace(tagRe.ReplaceAllString(html, " "))
	links := len(linkRe.FindAllString(html, -1))
	if links > 10 {
		score -= 10
		findings = append(findings, "high link density")
	}

	if !strings.Contains(lowerAll, "unsubscribe") {
		score -= 20
		findings = append(findings, "no unsubscribe link")
	}

	if imgRe.MatchString(html) && len(text) < 50 {
		score -= 25
		findings = append(findings, "image-only body with little text")
	}

	if score < 0 {
		score = 0
	}
	return Evaluation{Score: math.Round(score*10) / 10, Findings: findings}
}

func capsRatio(s string) float64 {
	letters, upper := 0, 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}
