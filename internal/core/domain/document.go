package domain

import (
	"path/filepath"
	"strings"
)

type SourceKind string

const (
	SourceText  SourceKind = "text"
	SourcePDF   SourceKind = "pdf"
	SourceImage SourceKind = "image"
)

// SourceKindForFilename guesses the source kind from a file extension.
// Unknown extensions are treated as text.
func SourceKindForFilename(name string) SourceKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return SourcePDF
	case ".png", ".jpg", ".jpeg", ".webp", ".tif", ".tiff", ".bmp", ".gif":
		return SourceImage
	default:
		return SourceText
	}
}

func ParseSourceKind(raw string) (SourceKind, bool) {
	switch SourceKind(raw) {
	case SourceText, SourcePDF, SourceImage:
		return SourceKind(raw), true
	default:
		return "", false
	}
}

// RawInput is the request payload before extraction. It is discarded once text is extracted.
type RawInput struct {
	SourceKind SourceKind `json:"source_kind"`
	Text       string     `json:"text,omitempty"`
	Data       []byte     `json:"-"`
	Filename   string     `json:"filename,omitempty"`
}

type SectionLabel string

const (
	SectionHeader       SectionLabel = "header"
	SectionParties      SectionLabel = "parties"
	SectionFacts        SectionLabel = "facts"
	SectionLegalGrounds SectionLabel = "legal_grounds"
	SectionBody         SectionLabel = "body"
	SectionDisposition  SectionLabel = "disposition"
)

// Range is a half-open byte range [Start, End) into NormalizedDocument.RawText.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r Range) Len() int { return r.End - r.Start }

type Section struct {
	Label SectionLabel `json:"label"`
	Text  string       `json:"text"`
	Range Range        `json:"range"`
}

// NormalizedDocument holds the cleaned text and a total partition of it into sections.
type NormalizedDocument struct {
	RawText  string    `json:"raw_text"`
	Sections []Section `json:"sections"`
}

// Section returns the first section carrying label.
func (d NormalizedDocument) Section(label SectionLabel) (Section, bool) {
	for _, s := range d.Sections {
		if s.Label == label {
			return s, true
		}
	}
	return Section{}, false
}

// SectionsWithLabel returns every section carrying label, in document order.
func (d NormalizedDocument) SectionsWithLabel(label SectionLabel) []Section {
	var out []Section
	for _, s := range d.Sections {
		if s.Label == label {
			out = append(out, s)
		}
	}
	return out
}

func (d NormalizedDocument) HasDisposition() bool {
	_, ok := d.Section(SectionDisposition)
	return ok
}

type DocType string

const (
	DocTypeResolution        DocType = "resolution"
	DocTypeProceduralWriting DocType = "procedural_writing"
)

// DocTypes is the closed classification enumeration.
var DocTypes = []DocType{DocTypeResolution, DocTypeProceduralWriting}

func ParseDocType(raw string) (DocType, bool) {
	for _, t := range DocTypes {
		if string(t) == raw {
			return t, true
		}
	}
	return "", false
}

type DocSubtype string

const (
	SubtypeJudgment   DocSubtype = "judgment"
	SubtypeOrder      DocSubtype = "order"
	SubtypeDecree     DocSubtype = "decree"
	SubtypeRuling     DocSubtype = "ruling"
	SubtypeComplaint  DocSubtype = "complaint"
	SubtypeAppeal     DocSubtype = "appeal"
	SubtypePleading   DocSubtype = "pleading"
	SubtypeOpposition DocSubtype = "opposition"
)

var allowedSubtypes = map[DocType][]DocSubtype{
	DocTypeResolution:        {SubtypeJudgment, SubtypeOrder, SubtypeDecree, SubtypeRuling},
	DocTypeProceduralWriting: {SubtypeComplaint, SubtypeAppeal, SubtypePleading, SubtypeOpposition},
}

// AllowedSubtypes lists the subtypes a document type permits.
func AllowedSubtypes(t DocType) []DocSubtype {
	return allowedSubtypes[t]
}

// Permits reports whether subtype may be attached to t.
func (t DocType) Permits(subtype DocSubtype) bool {
	for _, s := range allowedSubtypes[t] {
		if s == subtype {
			return true
		}
	}
	return false
}

type ClassificationSource string

const (
	ClassificationSourceLLM      ClassificationSource = "llm"
	ClassificationSourceFallback ClassificationSource = "fallback"
)

type Classification struct {
	DocType      DocType              `json:"doc_type"`
	DocSubtype   DocSubtype           `json:"doc_subtype,omitempty"`
	Confidence   float64              `json:"confidence"`
	Source       ClassificationSource `json:"source"`
	Ambiguous    bool                 `json:"ambiguous,omitempty"`
	Explanations []string             `json:"explanations,omitempty"`
}

type EntityKind string

const (
	EntityDate     EntityKind = "date"
	EntityDeadline EntityKind = "deadline"
	EntityAmount   EntityKind = "amount"
	EntityParty    EntityKind = "party"
	EntityOutcome  EntityKind = "outcome"
)

// Polarity is the outcome class of an outcome statement.
type Polarity string

const (
	PolarityNone      Polarity = ""
	PolarityGrant     Polarity = "grant"
	PolarityDeny      Polarity = "deny"
	PolarityCondemn   Polarity = "condemn"
	PolarityAcquit    Polarity = "acquit"
	PolarityTerminate Polarity = "terminate"
	PolarityContinue  Polarity = "continue"
)

// Opposite returns the polarity that contradicts p.
func (p Polarity) Opposite() Polarity {
	switch p {
	case PolarityGrant:
		return PolarityDeny
	case PolarityDeny:
		return PolarityGrant
	case PolarityCondemn:
		return PolarityAcquit
	case PolarityAcquit:
		return PolarityCondemn
	case PolarityTerminate:
		return PolarityContinue
	case PolarityContinue:
		return PolarityTerminate
	default:
		return PolarityNone
	}
}

type Entity struct {
	Kind          EntityKind   `json:"kind"`
	Value         string       `json:"value"`
	Normalized    []string     `json:"normalized,omitempty"`
	Polarity      Polarity     `json:"polarity,omitempty"`
	SourceSection SectionLabel `json:"source_section"`
	Range         Range        `json:"range"`
	Critical      bool         `json:"critical"`
}

type SimplifiedText struct {
	PlainLanguageText string   `json:"plain_language_text"`
	PreservedEntities []Entity `json:"preserved_entities"`
	Strategy          string   `json:"strategy"`
	Truncated         bool     `json:"truncated,omitempty"`
	Warnings          []string `json:"warnings,omitempty"`
}

// CriticalEntities returns the entities whose omission is a safety risk.
func (s SimplifiedText) CriticalEntities() []Entity {
	var out []Entity
	for _, e := range s.PreservedEntities {
		if e.Critical {
			out = append(out, e)
		}
	}
	return out
}

type LegalGuide struct {
	MeaningForYou     string `json:"meaningForYou" yaml:"meaningForYou"`
	WhatToDoNow       string `json:"whatToDoNow" yaml:"whatToDoNow"`
	WhatHappensNext   string `json:"whatHappensNext" yaml:"whatHappensNext"`
	DeadlinesAndRisks string `json:"deadlinesAndRisks" yaml:"deadlinesAndRisks"`
}

// Blocks returns the four blocks in their fixed order.
func (g LegalGuide) Blocks() []string {
	return []string{g.MeaningForYou, g.WhatToDoNow, g.WhatHappensNext, g.DeadlinesAndRisks}
}

// GuideBlockNames matches the order of LegalGuide.Blocks.
var GuideBlockNames = []string{"meaning_for_you", "what_to_do_now", "what_happens_next", "deadlines_and_risks"}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Rank orders severities, critical first.
func (s Severity) Rank() int {
	if s == SeverityCritical {
		return 0
	}
	return 1
}

const (
	FindingEntityDropped           = "entity_dropped"
	FindingOutcomeMismatch         = "outcome_mismatch"
	FindingPartyDropped            = "party_dropped"
	FindingUngroundedDetail        = "ungrounded_detail"
	FindingDispositionContradicted = "disposition_contradiction"
	FindingVerificationUnavailable = "verification_unavailable"
)

// Evidence points at the original span and the simplified span a finding compares.
type Evidence struct {
	Original   string `json:"original,omitempty" yaml:"original,omitempty"`
	Simplified string `json:"simplified,omitempty" yaml:"simplified,omitempty"`
}

type SafetyFinding struct {
	Code     string     `json:"code" yaml:"code"`
	Severity Severity   `json:"severity" yaml:"severity"`
	Message  string     `json:"message" yaml:"message"`
	Evidence []Evidence `json:"evidence,omitempty" yaml:"evidence,omitempty"`
}

type ProcessDocumentResult struct {
	DocType        DocType         `json:"docType" yaml:"docType"`
	DocSubtype     DocSubtype      `json:"docSubtype,omitempty" yaml:"docSubtype,omitempty"`
	SimplifiedText string          `json:"simplifiedText" yaml:"simplifiedText"`
	LegalGuide     LegalGuide      `json:"legalGuide" yaml:"legalGuide"`
	Findings       []SafetyFinding `json:"safetyFindings" yaml:"safetyFindings"`
}

// HasCritical reports whether any finding is critical.
func (r ProcessDocumentResult) HasCritical() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
