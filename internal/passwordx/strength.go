// Package passwordx scores and validates user-chosen secrets.
package passwordx

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

type Strength string

const (
	Weak       Strength = "weak"
	Medium     Strength = "medium"
	Strong     Strength = "strong"
	VeryStrong Strength = "very_strong"
)

// MinScoredLength is the length below which a password is always weak.
const MinScoredLength = 8

var (
	reLower    = regexp.MustCompile(`[a-z]`)
	reUpper    = regexp.MustCompile(`[A-Z]`)
	reDigit    = regexp.MustCompile(`[0-9]`)
	reSymbol   = regexp.MustCompile(`[^a-zA-Z0-9]`)
	reSequence = regexp.MustCompile(`(?i)123|abc|qwe`)
	reCommon   = regexp.MustCompile(`(?i)password|123456|qwerty`)
)

// Score rates pw on length and character variety, with penalties for runs
// and well-known patterns.
func Score(pw string) int {
	score := 0

	n := utf8.RuneCountInString(pw)
	for _, l := range []int{12, 16, 20} {
		if n >= l {
			score++
		}
	}

	for _, re := range []*regexp.Regexp{reLower, reUpper, reDigit, reSymbol} {
		if re.MatchString(pw) {
			score++
		}
	}

	if hasRun(pw, 3) {
		score--
	}
	if reSequence.MatchString(pw) {
		score--
	}
	if reCommon.MatchString(pw) {
		score -= 2
	}
	return score
}

// hasRun reports whether the same rune occurs n or more times in a row.
func hasRun(s string, n int) bool {
	var prev rune = -1
	count := 0
	for _, r := range s {
		if r == prev {
			count++
		} else {
			prev, count = r, 1
		}
		if count >= n {
			return true
		}
	}
	return false
}

func Evaluate(pw string) Strength {
	if utf8.RuneCountInString(pw) < MinScoredLength {
		return Weak
	}
	switch s := Score(pw); {
	case s <= 2:
		return Weak
	case s <= 4:
		return Medium
	case s <= 6:
		return Strong
	default:
		return VeryStrong
	}
}

type Requirements struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigits  bool
	RequireSymbols bool
}

// DefaultRequirements only enforce a minimum length of 8.
var DefaultRequirements = Requirements{MinLength: 8}

// Validate returns the unmet requirements; an empty slice means pw passes.
func Validate(pw string, req Requirements) []string {
	var problems []string
	if utf8.RuneCountInString(pw) < req.MinLength {
		problems = append(problems, fmt.Sprintf("must be at least %d characters long", req.MinLength))
	}
	if req.RequireUpper && !reUpper.MatchString(pw) {
		problems = append(problems, "must contain an uppercase letter")
	}
	if req.RequireLower && !reLower.MatchString(pw) {
		problems = append(problems, "must contain a lowercase letter")
	}
	if req.RequireDigits && !reDigit.MatchString(pw) {
		problems = append(problems, "must contain a digit")
	}
	if req.RequireSymbols && !reSymbol.MatchString(pw) {
		problems = append(problems, "must contain a symbol")
	}
	return problems
}

// Mask keeps the first visible runes of s and hides the rest.
func Mask(s string, visible int) string {
	r := []rune(s)
	if len(r) <= visible {
		return strings.Repeat("·", len(r))
	}
	return string(r[:visible]) + strings.Repeat("·", len(r)-visible)
}
