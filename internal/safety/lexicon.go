package safety

import (
	"fmt"
	"regexp"
	"strings"

	"scholarforge/internal/types"
)

// Lexicon is the vocabulary the safety gate scans for. Phrases match as whole
// words, case-insensitively.
type Lexicon struct {
	Clinical  []string `yaml:"clinical"`
	Ranking   []string `yaml:"ranking"`
	Guarantee []string `yaml:"guarantee"`
	Judgement []string `yaml:"judgement"`
	// Identifiers are field-name stems; each matches <stem>id, <stem>_id and <stem>-id.
	Identifiers []string `yaml:"identifiers"`
}

// DefaultLexicon returns the built-in lexicon.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Clinical: []string{
			"adhd", "autism", "autistic", "asperger", "dyslexia", "dyslexic", "dyscalculia",
			"learning disability", "learning disabled", "disorder", "diagnosis", "diagnosed",
			"deficit", "syndrome", "impairment", "therapy", "medication", "special needs",
		},
		Ranking: []string{
			"percentile", "ranked", "ranking", "top of the class", "bottom of the class",
			"above average", "below average", "smartest", "slowest", "gifted", "behind their peers",
			"ahead of their peers", "compared to other children", "compared to other kids", "grade level",
		},
		Guarantee: []string{
			"guarantee", "guarantees", "guaranteed", "will definitely", "certain to pass",
			"certain to succeed", "promise", "promises", "never fail", "100% sure",
		},
		Judgement:   []string{"wrong", "incorrect", "mistake", "failed", "bad"},
		Identifiers: []string{"subject", "scholar", "user", "family", "student", "parent", "child", "learner"},
	}
}

// bannedRule is one compiled banned-phrase category.
type bannedRule struct {
	code    string
	message string
	re      *regexp.Regexp
}

func (l Lexicon) compile() ([]bannedRule, *regexp.Regexp, *regexp.Regexp, error) {
	var banned []bannedRule
	for _, cat := range []struct {
		code    string
		message string
		phrases []string
	}{
		{types.CodeBannedClinical, "clinical or diagnostic language", l.Clinical},
		{types.CodeBannedRanking, "ranking or percentile language", l.Ranking},
		{types.CodeBannedGuarantee, "guarantee about future outcomes", l.Guarantee},
	} {
		re, err := wordPattern(cat.phrases)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("compile %s: %w", cat.code, err)
		}
		if re != nil {
			banned = append(banned, bannedRule{code: cat.code, message: cat.message, re: re})
		}
	}

	var judgement *regexp.Regexp
	if len(l.Judgement) > 0 {
		re, err := wordPattern(l.Judgement)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("compile judgement: %w", err)
		}
		judgement = re
	}

	var identifier *regexp.Regexp
	if len(l.Identifiers) > 0 {
		stems := make([]string, 0, len(l.Identifiers))
		for _, s := range l.Identifiers {
			stems = append(stems, regexp.QuoteMeta(s))
		}
		re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(stems, "|") + `)[_-]?id\b`)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("compile identifiers: %w", err)
		}
		identifier = re
	}
	return banned, judgement, identifier, nil
}

// wordPattern matches any phrase delimited by non-word characters or the text
// edges. Inner spaces match any run of whitespace.
func wordPattern(phrases []string) (*regexp.Regexp, error) {
	alts := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		q := regexp.QuoteMeta(p)
		q = strings.ReplaceAll(q, " ", `\s+`)
		alts = append(alts, q)
	}
	if len(alts) == 0 {
		return nil, nil
	}
	return regexp.Compile(`(?i)(?:^|\W)(?:` + strings.Join(alts, "|") + `)(?:\W|$)`)
}
