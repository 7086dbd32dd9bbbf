package service

import (
	"fmt"
	"regexp"
)

const (
	MentionGrammarWord  = "word"
	MentionGrammarLogin = "login"
)

// MentionScanner returns the identities mentioned in text, in order of
// appearance. Repeats are kept.
type MentionScanner func(text string) []string

var (
	wordMention = regexp.MustCompile(`@(\w+)`)
	// GitHub logins: alphanumerics and inner hyphens. The leading class keeps
	// email addresses and paths from matching.
	loginMention = regexp.MustCompile(`(?:^|[^\w@./-])@([A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?)`)
)

// ParseMentions scans for "@" followed by one or more word characters.
func ParseMentions(text string) []string {
	return captures(wordMention, text)
}

// LoginMentions scans with the GitHub login grammar, so "@octo-cat" yields
// "octo-cat" and "me@example.com" yields nothing.
func LoginMentions(text string) []string {
	return captures(loginMention, text)
}

// ScannerFor maps a configured grammar name to its scanner.
func ScannerFor(grammar string) (MentionScanner, error) {
	switch grammar {
	case "", MentionGrammarWord:
		return ParseMentions, nil
	case MentionGrammarLogin:
		return LoginMentions, nil
	default:
		return nil, fmt.Errorf("unknown mention grammar: %q", grammar)
	}
}

func captures(re *regexp.Regexp, text string) []string {
	if text == "" {
		return nil
	}
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}
