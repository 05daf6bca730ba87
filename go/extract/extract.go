// Package extract pulls IOC-style artifacts (CVEs, addresses, domains, URLs,
// emails, hashes) out of alert text with regular expressions, optionally
// augmented by an injected named-entity extractor. The NER capability is
// external and may be absent; extraction never fails because of it.
package extract

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Finding is one extracted artifact.
type Finding struct {
	Type  string
	Value string

	// Context is the surrounding text snippet, whitespace-normalized.
	Context string
}

// EntityExtractor is the optional NER capability. Implementations return
// findings with their own entity types (e.g. PERSON, ORG, GPE, LOC).
type EntityExtractor interface {
	Extract(ctx context.Context, text string) ([]Finding, error)
}

// contextWindow is how many characters of surrounding text a finding keeps.
const contextWindow = 60

// iocPattern order matters: url and email run first so their spans can
// suppress the domain pattern, which would otherwise re-match the host part
// of every URL and email.
type iocPattern struct {
	iocType string
	re      *regexp.Regexp
}

var iocPatterns = []iocPattern{
	{"url", regexp.MustCompile(`(?i)\bhttps?://[^\s<>'")]+`)},
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,24}\b`)},
	{"cve", regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,7}\b`)},
	{"ipv4", regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`)},
	{"ipv6", regexp.MustCompile(`\b(?:[0-9a-fA-F]{1,4}:){2,7}[0-9a-fA-F]{1,4}\b`)},
	{"domain", regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[A-Za-z]{2,24}\b`)},
	{"md5", regexp.MustCompile(`\b[a-fA-F0-9]{32}\b`)},
	{"sha1", regexp.MustCompile(`\b[a-fA-F0-9]{40}\b`)},
	{"sha256", regexp.MustCompile(`\b[a-fA-F0-9]{64}\b`)},
}

// IOCs extracts the IOC artifacts from text, deduplicated by (type,
// normalized value). Domain matches that overlap a URL or email span are
// suppressed.
func IOCs(text string) []Finding {
	type span struct{ start, end int }
	var skip []span
	for _, p := range iocPatterns {
		if p.iocType != "url" && p.iocType != "email" {
			continue
		}
		for _, m := range p.re.FindAllStringIndex(text, -1) {
			skip = append(skip, span{m[0], m[1]})
		}
	}
	overlapsSkip := func(start, end int) bool {
		for _, s := range skip {
			if start < s.end && end > s.start {
				return true
			}
		}
		return false
	}

	type key struct{ iocType, value string }
	seen := map[key]bool{}
	var ret []Finding
	for _, p := range iocPatterns {
		for _, m := range p.re.FindAllStringIndex(text, -1) {
			if p.iocType == "domain" && overlapsSkip(m[0], m[1]) {
				continue
			}
			value := normalize(p.iocType, text[m[0]:m[1]])
			k := key{p.iocType, value}
			if seen[k] {
				continue
			}
			seen[k] = true
			ret = append(ret, Finding{
				Type:    p.iocType,
				Value:   value,
				Context: snippet(text, m[0], m[1]),
			})
		}
	}
	return ret
}

// Extractor combines regex IOC extraction with the optional NER capability.
type Extractor struct {
	ner EntityExtractor
}

// New returns an Extractor. ner may be nil, in which case extraction is
// regex-only.
func New(ner EntityExtractor) *Extractor {
	return &Extractor{ner: ner}
}

// Extract returns the artifacts found in text, NER entities first. A failure
// of the NER capability degrades to regex-only extraction rather than
// erroring.
func (e *Extractor) Extract(ctx context.Context, text string) []Finding {
	var ret []Finding
	if e.ner != nil {
		entities, err := e.ner.Extract(ctx, text)
		if err == nil {
			seen := map[string]bool{}
			for _, f := range entities {
				if f.Value == "" {
					continue
				}
				k := f.Type + "\x00" + strings.ToLower(f.Value)
				if seen[k] {
					continue
				}
				seen[k] = true
				ret = append(ret, f)
			}
		}
	}
	return append(ret, IOCs(text)...)
}

func normalize(iocType, value string) string {
	value = strings.Trim(strings.TrimSpace(value), ".,);")
	switch iocType {
	case "cve":
		return strings.ToUpper(value)
	case "domain", "email", "md5", "sha1", "sha256":
		return strings.ToLower(value)
	}
	return value
}

func snippet(text string, start, end int) string {
	left := start - contextWindow
	if left < 0 {
		left = 0
	}
	right := end + contextWindow
	if right > len(text) {
		right = len(text)
	}
	// Don't split a multi-byte rune at the window edge.
	for left > 0 && !utf8.RuneStart(text[left]) {
		left--
	}
	for right < len(text) && !utf8.RuneStart(text[right]) {
		right++
	}
	return strings.Join(strings.Fields(text[left:right]), " ")
}

// Types returns the sorted distinct artifact types in findings.
func Types(findings []Finding) []string {
	m := map[string]bool{}
	for _, f := range findings {
		m[f.Type] = true
	}
	ret := make([]string, 0, len(m))
	for t := range m {
		ret = append(ret, t)
	}
	sort.Strings(ret)
	return ret
}
