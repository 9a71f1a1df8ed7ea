package usecase

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/kirillkom/plainlaw/internal/core/domain"
)

const spanishJudgment = "JUZGADO DE PRIMERA INSTANCIA N 5 DE MADRID\nSENTENCIA 120/2024\n\n" +
	"ANTECEDENTES DE HECHO\nPrimero. La actora reclama 1.500 euros por rentas impagadas.\n\n" +
	"FUNDAMENTOS DE DERECHO\nUnico. Procede estimar la demanda.\n\n" +
	"FALLO: Se estima la demanda y se condena a la demandada a pagar 1.500,00 € en el plazo de quince días desde el 1 de septiembre de 2024."

func TestSegmentDetectsLegalSections(t *testing.T) {
	doc := NewSectionSegmenter().Segment(spanishJudgment)

	var labels []domain.SectionLabel
	for _, s := range doc.Sections {
		labels = append(labels, s.Label)
	}
	want := []domain.SectionLabel{
		domain.SectionHeader,
		domain.SectionFacts,
		domain.SectionLegalGrounds,
		domain.SectionDisposition,
	}
	if len(labels) != len(want) {
		t.Fatalf("Segment() labels = %v, want %v", labels, want)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("Segment() labels = %v, want %v", labels, want)
		}
	}

	disposition, ok := doc.Section(domain.SectionDisposition)
	if !ok || !strings.HasPrefix(disposition.Text, "FALLO: Se estima") {
		t.Fatalf("unexpected disposition section: %+v", disposition)
	}
}

func TestSegmentWithoutMarkersIsSingleBody(t *testing.T) {
	text := "Notice: rent of $1,250 due Sept 1 unpaid; pay within 10 days or tenancy terminates"
	doc := NewSectionSegmenter().Segment(text)

	if len(doc.Sections) != 1 {
		t.Fatalf("expected one section, got %d", len(doc.Sections))
	}
	if doc.Sections[0].Label != domain.SectionBody || doc.Sections[0].Text != text {
		t.Fatalf("unexpected section: %+v", doc.Sections[0])
	}
}

func TestSegmentRecognizesEnglishHeadingsAndFormulas(t *testing.T) {
	text := "SUPERIOR COURT OF CALIFORNIA\n\nPARTIES\nPlaintiff: Jane Doe\nDefendant: Acme Rentals LLC\n\n" +
		"Background\nThe plaintiff rented an apartment.\n\n" +
		"IT IS ORDERED that the motion is denied."
	doc := NewSectionSegmenter().Segment(text)

	for _, label := range []domain.SectionLabel{domain.SectionHeader, domain.SectionParties, domain.SectionFacts, domain.SectionDisposition} {
		if _, ok := doc.Section(label); !ok {
			t.Fatalf("expected section %s in %+v", label, doc.Sections)
		}
	}
	parties, _ := doc.Section(domain.SectionParties)
	if !strings.Contains(parties.Text, "Defendant: Acme Rentals LLC") {
		t.Fatalf("consecutive party lines must stay in one section: %q", parties.Text)
	}
}

func TestSegmentIgnoresMarkerWordsInsideSentences(t *testing.T) {
	text := "The judge issued an order yesterday.\nOrder of events is described below."
	doc := NewSectionSegmenter().Segment(text)
	if len(doc.Sections) != 1 || doc.Sections[0].Label != domain.SectionBody {
		t.Fatalf("expected single body section, got %+v", doc.Sections)
	}
}

func TestSegmentPartitionCoversText(t *testing.T) {
	pieces := []string{
		"FALLO:", "HECHOS", "Fundamentos de Derecho", "PARTES", "The court finds.",
		"Se condena al pago de 300 euros.", "ORDER", "I. ANTECEDENTES", "wherefore, relief.",
		"", "Texto libre sin marcas.", "DEMANDANTE: Ana Ruiz", "Página 2",
	}
	rng := rand.New(rand.NewSource(7))
	inputs := []string{spanishJudgment, "single line", "FALLO"}
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(12)
		parts := make([]string, n)
		for j := range parts {
			parts[j] = pieces[rng.Intn(len(pieces))]
		}
		inputs = append(inputs, strings.Join(parts, "\n"))
	}

	for _, text := range inputs {
		doc := NewSectionSegmenter().Segment(text)
		assertPartition(t, text, doc)
	}
}

func assertPartition(t *testing.T, text string, doc domain.NormalizedDocument) {
	t.Helper()
	if doc.RawText != text {
		t.Fatalf("RawText changed: %q != %q", doc.RawText, text)
	}
	if text == "" {
		if len(doc.Sections) != 0 {
			t.Fatalf("expected no sections for empty text")
		}
		return
	}
	var b strings.Builder
	prevEnd := 0
	for _, s := range doc.Sections {
		if s.Range.Start != prevEnd {
			t.Fatalf("gap or overlap at %d (prev end %d) in %q", s.Range.Start, prevEnd, text)
		}
		if s.Range.Len() <= 0 {
			t.Fatalf("empty section %+v in %q", s, text)
		}
		if text[s.Range.Start:s.Range.End] != s.Text {
			t.Fatalf("section text does not match its range: %+v", s)
		}
		b.WriteString(s.Text)
		prevEnd = s.Range.End
	}
	if b.String() != text {
		t.Fatalf("sections do not cover text %q", text)
	}
}
