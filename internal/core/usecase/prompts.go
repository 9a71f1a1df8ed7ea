package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/plainlaw/internal/core/domain"
)

const (
	sectionHeadChars   = 600
	guideSectionChars  = 2500
	guideSalientLimit  = 3
	verifierInputChars = 24000
)

const classificationSystemPrompt = `You classify legal documents written for or by citizens.
Answer with a single JSON object and nothing else:
{"doc_type": "...", "doc_subtype": "...", "confidence": 0.0}
doc_type must be exactly one of: %s.
doc_subtype must be one of the subtypes allowed for the chosen type, or null:
%s
confidence is a number between 0 and 1.`

const simplificationSystemPrompt = `You rewrite legal documents in plain language for a person with no legal training.
Rules:
- Use only facts stated in the document. Never invent names, dates, amounts or outcomes.
- Keep every item of the must-preserve checklist, with the same numbers, dates and amounts.
- State the final outcome first and say clearly who won and who must do what.
- Short sentences, everyday words, no legal Latin.
- Write in the same language as the document.
- Output only the rewritten text, with no introduction or closing remarks.`

const guideSystemPrompt = `You write a short action guide for the person who received a legal document.
Answer with a single JSON object and nothing else, with exactly these keys:
{"meaning_for_you": "...", "what_to_do_now": "...", "what_happens_next": "...", "deadlines_and_risks": "..."}
Every value must be non-empty and different from the others.
Use only information found in the simplified text and the original excerpts. Write in the same language as the document.`

const safetySystemPrompt = `You check a plain-language rewrite of a legal document against the original.
The original is the ground truth. Report every statement in the rewrite or the guide that changes,
contradicts or adds to the original: outcomes, obligations, deadlines, amounts, parties.
Answer with a single JSON object and nothing else:
{"findings": [{"code": "short_snake_case_code", "message": "...", "contradicts_disposition": false, "original_span": "...", "simplified_span": "..."}]}
Set contradicts_disposition to true only when the rewrite contradicts the final decision of the document.
Return {"findings": []} when the rewrite is faithful.`

var strategyInstructions = map[string]string{
	"resolution": `The document is a court decision (%s). Explain:
1. What the court decided, in one sentence.
2. Who won and who lost.
3. What each party must do, by when, and how much must be paid.
4. Whether the decision can be appealed and the time limit, if the document says so.`,
	"resolution_generic": `The document is a court decision. Explain what was decided, who must do what,
the deadlines and amounts involved, and what the reader can do next if the document says so.`,
	"procedural_filing": `The document is a filing submitted to a court (%s). Explain:
1. Who filed it and against whom.
2. What the filer is asking the court to do.
3. The main reasons given.
4. Any deadline or amount the reader must know about.`,
	"procedural_generic": `The document is a filing submitted in court proceedings. Explain who is asking for what,
the main reasons, and any deadline or amount mentioned.`,
}

func classificationPrompt(doc domain.NormalizedDocument, evidence ruleEvidence) (string, string) {
	var types []string
	var subtypes []string
	for _, t := range domain.DocTypes {
		types = append(types, string(t))
		var allowed []string
		for _, s := range domain.AllowedSubtypes(t) {
			allowed = append(allowed, string(s))
		}
		subtypes = append(subtypes, fmt.Sprintf("- %s: %s", t, strings.Join(allowed, ", ")))
	}
	system := fmt.Sprintf(classificationSystemPrompt, strings.Join(types, ", "), strings.Join(subtypes, "\n"))

	var b strings.Builder
	b.WriteString("Keyword evidence:\n")
	fmt.Fprintf(&b, "- resolution score: %d\n", evidence.typeScores[domain.DocTypeResolution])
	fmt.Fprintf(&b, "- procedural_writing score: %d\n", evidence.typeScores[domain.DocTypeProceduralWriting])
	if evidence.subtype != "" {
		fmt.Fprintf(&b, "- subtype hint: %s\n", evidence.subtype)
	}
	b.WriteString("\nDocument sections:\n")
	for _, s := range doc.Sections {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", s.Label, strings.TrimSpace(truncateRunes(s.Text, sectionHeadChars)))
	}
	return system, b.String()
}

func simplificationPrompt(strategy simplificationStrategy, subtype domain.DocSubtype, chunk []domain.Section, entities []domain.Entity, part, parts int) string {
	var b strings.Builder
	instruction := strategyInstructions[strategy.name]
	if strings.Contains(instruction, "%s") {
		instruction = fmt.Sprintf(instruction, subtype)
	}
	b.WriteString(instruction)
	b.WriteString("\n\n")

	if checklist := entityChecklist(entities); checklist != "" {
		b.WriteString("Must-preserve checklist (keep each item with the same values):\n")
		b.WriteString(checklist)
		b.WriteString("\n")
	}
	if parts > 1 {
		fmt.Fprintf(&b, "This is part %d of %d of the document. Rewrite only this part.\n\n", part, parts)
	}

	b.WriteString("Document:\n")
	for _, s := range chunk {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", s.Label, strings.TrimSpace(s.Text))
	}
	return b.String()
}

func entityChecklist(entities []domain.Entity) string {
	var b strings.Builder
	for _, e := range entities {
		if !e.Critical && e.Kind != domain.EntityParty {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", e.Kind, e.Value)
	}
	return b.String()
}

func guidePrompt(simplified domain.SimplifiedText, doc domain.NormalizedDocument, defects []string) string {
	var b strings.Builder
	if len(defects) > 0 {
		fmt.Fprintf(&b, "Your previous answer was rejected because these blocks were empty or repeated another block: %s.\n", strings.Join(defects, ", "))
		b.WriteString("Write four different, non-empty blocks.\n\n")
	}
	if hints := dispositionHints(simplified.PreservedEntities); hints != "" {
		b.WriteString("Decision hints:\n")
		b.WriteString(hints)
		b.WriteString("\n")
	}
	b.WriteString("Simplified text:\n")
	b.WriteString(strings.TrimSpace(simplified.PlainLanguageText))
	b.WriteString("\n\nOriginal excerpts:\n")
	for _, s := range salientSections(doc) {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", s.Label, strings.TrimSpace(truncateRunes(s.Text, guideSectionChars)))
	}
	return b.String()
}

// dispositionHints lists the outcomes and obligations found in the decision.
func dispositionHints(entities []domain.Entity) string {
	var b strings.Builder
	for _, e := range entities {
		if !e.Critical {
			continue
		}
		switch e.Kind {
		case domain.EntityOutcome:
			fmt.Fprintf(&b, "- outcome (%s): %s\n", e.Polarity, e.Value)
		case domain.EntityDeadline:
			fmt.Fprintf(&b, "- deadline: %s\n", e.Value)
		case domain.EntityAmount:
			fmt.Fprintf(&b, "- amount: %s\n", e.Value)
		}
	}
	return b.String()
}

var salientOrder = []domain.SectionLabel{
	domain.SectionDisposition,
	domain.SectionParties,
	domain.SectionLegalGrounds,
	domain.SectionFacts,
}

// salientSections picks at most three sections that ground the guide, decision first.
func salientSections(doc domain.NormalizedDocument) []domain.Section {
	var out []domain.Section
	for _, label := range salientOrder {
		if s, ok := doc.Section(label); ok {
			out = append(out, s)
		}
		if len(out) == guideSalientLimit {
			return out
		}
	}
	if len(out) == 0 && len(doc.Sections) > 0 {
		out = append(out, doc.Sections[0])
	}
	return out
}

func safetyPrompt(doc domain.NormalizedDocument, simplified domain.SimplifiedText, guide domain.LegalGuide) string {
	var b strings.Builder
	b.WriteString("Original document:\n")
	for _, s := range orderedForPrompt(doc.Sections) {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", s.Label, strings.TrimSpace(s.Text))
	}
	original := truncateRunes(b.String(), verifierInputChars)

	var out strings.Builder
	out.WriteString(original)
	out.WriteString("\nPlain-language rewrite:\n")
	out.WriteString(strings.TrimSpace(simplified.PlainLanguageText))
	out.WriteString("\n\nGuide:\n")
	for i, block := range guide.Blocks() {
		fmt.Fprintf(&out, "%s: %s\n", domain.GuideBlockNames[i], block)
	}
	return out.String()
}

// orderedForPrompt puts the disposition first and keeps the rest in document order.
func orderedForPrompt(sections []domain.Section) []domain.Section {
	out := make([]domain.Section, 0, len(sections))
	for _, s := range sections {
		if s.Label == domain.SectionDisposition {
			out = append(out, s)
		}
	}
	for _, s := range sections {
		if s.Label != domain.SectionDisposition {
			out = append(out, s)
		}
	}
	return out
}
