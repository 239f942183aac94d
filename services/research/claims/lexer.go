// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package claims implements the draft lexer: it turns raw report text into a
// structured model of sections, sentences, and citation tokens.
//
// # Description
//
// The pipeline needs to split drafts into atomic claims and later edit
// individual sentences (insert a citation, strip a bad one, prefix a hedge)
// without corrupting neighboring text. Doing that with raw string splicing is
// brittle: a citation marker contains no sentence boundary, but a naive
// ". "-split can still tear other tokens apart. This package masks citation
// markers before sentence splitting, restores them afterwards, and exposes
// sentence-level edit helpers so the RepairAgent never touches the draft as
// one flat string.
//
// # Ownership Model
//
// Draft, Section, and Sentence values are plain data. Edit helpers return
// new strings; Render reassembles a draft from the (possibly edited) model.
//
// # Thread Safety
//
// All functions are pure; the types carry no hidden state.
package claims

import (
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// Citation tokens
// =============================================================================

// citePattern matches a citation marker and captures the snippet id.
// The marker grammar is exact: no whitespace, one id per marker.
var citePattern = regexp.MustCompile(`\[CITE:([A-Za-z0-9_.:\-]+)\]`)

// sectionIDPattern matches a leading dotted section number ("3", "1.2", ...).
var sectionIDPattern = regexp.MustCompile(`^(\d+(?:\.\d+)*)\b\.?\s*`)

// CitationToken marks [CITE:<id>] for the given snippet id.
func CitationToken(snippetID string) string {
	return "[CITE:" + snippetID + "]"
}

// ExtractCitations returns all citation ids in the text, in order of
// appearance, duplicates preserved.
func ExtractCitations(text string) []string {
	matches := citePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}

// StripCitations removes every citation marker (and any whitespace directly
// before it) from the text. Used when scoring claim keywords: the marker is
// plumbing, not content.
func StripCitations(text string) string {
	out := citePattern.ReplaceAllString(text, "")
	out = strings.Join(strings.Fields(out), " ")
	return strings.TrimSpace(out)
}

// RemoveCitation strips the exact [CITE:<id>] token for one citation id,
// together with trailing whitespace, everywhere it occurs in the text.
// Other citation markers are untouched. Removing an absent token is a no-op,
// which keeps the repair idempotent per error.
func RemoveCitation(text, citationID string) string {
	token := CitationToken(citationID)
	for {
		idx := strings.Index(text, token)
		if idx < 0 {
			return text
		}
		rest := text[idx+len(token):]
		rest = strings.TrimLeft(rest, " \t")
		// Drop a space left dangling before the removed token.
		head := text[:idx]
		if strings.HasSuffix(head, " ") && (rest == "" || strings.HasPrefix(rest, ".") || strings.HasPrefix(rest, ",")) {
			head = strings.TrimRight(head, " ")
		}
		text = head + rest
	}
}

// InsertCitation splices [CITE:<id>] immediately before the terminating
// period of the sentence. Sentences without a terminating period get the
// marker appended. A sentence already citing the id is returned unchanged.
func InsertCitation(sentence, snippetID string) string {
	for _, id := range ExtractCitations(sentence) {
		if id == snippetID {
			return sentence
		}
	}
	token := CitationToken(snippetID)
	trimmed := strings.TrimRight(sentence, " \t")
	if strings.HasSuffix(trimmed, ".") {
		return trimmed[:len(trimmed)-1] + " " + token + "."
	}
	return trimmed + " " + token
}

// =============================================================================
// Sentence model
// =============================================================================

// Sentence is one ". "-delimited unit of a draft section, citation markers
// intact. Short fragments and headers are kept in the model (Render must
// reproduce them); filtering is the extractor's concern, not the lexer's.
type Sentence struct {
	Text string
}

// Citations returns the citation ids present in the sentence.
func (s Sentence) Citations() []string {
	return ExtractCitations(s.Text)
}

// IsHeader reports whether the sentence is a markdown header fragment.
func (s Sentence) IsHeader() bool {
	return strings.HasPrefix(strings.TrimSpace(s.Text), "#")
}

// Section is a "## "-delimited draft section. The preamble before the first
// marker is modeled as a section with an empty Header.
type Section struct {
	// Header is the full header line without the "## " marker.
	Header string
	// ID is the leading dotted section number extracted from Header, if any.
	ID string
	// Title is Header with the section number stripped.
	Title string
	// Sentences are the section body split on sentence boundaries.
	Sentences []Sentence
}

// Draft is the structured form of a report draft.
type Draft struct {
	Sections []Section
}

// =============================================================================
// Parsing
// =============================================================================

const (
	maskOpen  = "\x00C"
	maskClose = "\x00"
)

// SplitSentences splits text into sentences on ". " boundaries while
// temporarily masking citation markers, so a marker id is never torn apart.
// Terminating periods are preserved on each sentence.
func SplitSentences(text string) []Sentence {
	var tokens []string
	masked := citePattern.ReplaceAllStringFunc(text, func(m string) string {
		tokens = append(tokens, m)
		return maskOpen + strconv.Itoa(len(tokens)-1) + maskClose
	})

	parts := strings.Split(masked, ". ")
	sentences := make([]Sentence, 0, len(parts))
	for i, part := range parts {
		restored := unmask(part, tokens)
		restored = strings.TrimSpace(restored)
		if restored == "" {
			continue
		}
		if i < len(parts)-1 && !strings.HasSuffix(restored, ".") {
			restored += "."
		}
		sentences = append(sentences, Sentence{Text: restored})
	}
	return sentences
}

func unmask(part string, tokens []string) string {
	for i, tok := range tokens {
		part = strings.ReplaceAll(part, maskOpen+strconv.Itoa(i)+maskClose, tok)
	}
	return part
}


// ParseDraft splits a draft on "\n## " section markers and each section body
// into sentences. The text before the first marker becomes a header-less
// preamble section (omitted when empty).
func ParseDraft(draft string) Draft {
	var d Draft
	blocks := strings.Split("\n"+draft, "\n## ")
	for i, block := range blocks {
		if i == 0 {
			body := strings.TrimSpace(block)
			if body == "" {
				continue
			}
			d.Sections = append(d.Sections, Section{Sentences: SplitSentences(body)})
			continue
		}
		header, body, _ := strings.Cut(block, "\n")
		header = strings.TrimSpace(header)
		sec := Section{Header: header, Title: header}
		if m := sectionIDPattern.FindStringSubmatch(header); m != nil {
			sec.ID = m[1]
			sec.Title = strings.TrimSpace(header[len(m[0]):])
		}
		sec.Sentences = SplitSentences(strings.TrimSpace(body))
		d.Sections = append(d.Sections, sec)
	}
	return d
}

// Render reassembles the draft from the model. Sentences are joined with a
// single space; sections are separated by blank lines. Parsing collapses the
// original intra-section layout, so Render(ParseDraft(x)) is normalization,
// not identity. Stage code always re-extracts claims after a render.
func Render(d Draft) string {
	var b strings.Builder
	for i, sec := range d.Sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if sec.Header != "" {
			b.WriteString("## ")
			b.WriteString(sec.Header)
			b.WriteString("\n\n")
		}
		for j, sent := range sec.Sentences {
			if j > 0 {
				b.WriteString(" ")
			}
			b.WriteString(sent.Text)
		}
	}
	return b.String()
}

// FindSentence locates the first sentence in the draft whose citation-free
// text equals the claim's citation-free text. Returns section and sentence
// indexes, or ok=false when the claim no longer exists in the draft.
func FindSentence(d Draft, claimText string) (secIdx, sentIdx int, ok bool) {
	want := StripCitations(claimText)
	for si, sec := range d.Sections {
		for ti, sent := range sec.Sentences {
			if StripCitations(sent.Text) == want {
				return si, ti, true
			}
		}
	}
	return 0, 0, false
}
