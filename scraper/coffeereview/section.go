package coffeereview

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"brew-intelligence/utils"
)

// Section header patterns for the narrative parts of a review.
const (
	SectionBlindAssessment = `Blind Assessment`
	SectionNotes           = `Notes`
	SectionBottomLine      = `Bottom Line|Who Should Drink It`
	SectionWithMilk        = `With Milk`
)

var (
	sectionHeaderTags = map[string]bool{"h2": true, "h3": true, "h4": true, "strong": true, "b": true, "p": true}
	sectionStopTags   = map[string]bool{"h1": true, "h2": true, "h3": true, "h4": true, "table": true}
)

// ExtractSection returns the cleaned text of the section introduced by the
// first heading-like element whose text starts with headerPattern
// (case-insensitive). It returns "" when no header matches.
//
// The section runs over the following paragraphs and ends at the next
// h1-h4 heading, a table, or a paragraph naming another section. When the
// header sits inline in a paragraph, that paragraph opens the section.
func (e *Extractor) ExtractSection(doc *Document, headerPattern string) string {
	re, err := regexp.Compile(`(?i)^\s*(?:` + headerPattern + `)`)
	if err != nil {
		return ""
	}

	elems := doc.elements()
	start := -1
	for i, n := range elems {
		if sectionHeaderTags[n.Data] && re.MatchString(nodeText(n)) {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}

	head := elems[start]
	if head.Data != "p" {
		if p := enclosing(head, "p"); p != nil {
			head = p
		}
	}

	var paragraphs []string
	if head.Data == "p" {
		paragraphs = append(paragraphs, nodeText(head))
	}

	for _, n := range elems[start+1:] {
		if isDescendant(n, head) {
			continue
		}
		if sectionStopTags[n.Data] {
			break
		}
		if n.Data != "p" {
			continue
		}
		text := nodeText(n)
		if e.hasSectionMarker(text) {
			break
		}
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	}

	return e.CleanSection(strings.Join(paragraphs, "\n"))
}

// CleanSection strips leaked label text and collapses whitespace.
// Cleaning already-clean text returns it unchanged.
func (e *Extractor) CleanSection(text string) string {
	return utils.CollapseSpace(e.sectionLabels.Strip(text))
}

func (e *Extractor) hasSectionMarker(text string) bool {
	for _, m := range e.sectionMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func enclosing(n *html.Node, tag string) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == tag {
			return p
		}
	}
	return nil
}

func isDescendant(n, ancestor *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}
