package engine

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"pdf-qa-be/pkg/embedding"
	"pdf-qa-be/pkg/llm"
	"pdf-qa-be/pkg/processor"
)

// stubEmbedder maps keywords onto fixed unit vectors so retrieval order is
// deterministic without a live embedding backend.
type stubEmbedder struct{}

func (stubEmbedder) Generate(text, taskType string) (*embedding.Result, error) {
	switch {
	case strings.Contains(strings.ToLower(text), "alpha"):
		return &embedding.Result{Values: []float32{1, 0}}, nil
	case strings.Contains(strings.ToLower(text), "beta"):
		return &embedding.Result{Values: []float32{0, 1}}, nil
	default:
		return &embedding.Result{Values: []float32{0.7071, 0.7071}}, nil
	}
}

type fakeLLM struct {
	reply      string
	err        error
	lastPrompt string
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return f.reply, f.err
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	f.lastPrompt = prompt
	return f.reply, f.err
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestHandle(t *testing.T, text string) *processor.IndexHandle {
	t.Helper()
	p := processor.NewTextProcessor(stubEmbedder{}, 1000, 0, testLogger())
	h, err := p.Process(context.Background(), []byte(text), processor.FormatText)
	if err != nil {
		t.Fatalf("failed to build test index: %v", err)
	}
	return h
}

func TestGeneratorAsk(t *testing.T) {
	handle := newTestHandle(t, "alpha facts on the first page\fbeta facts on the second page")
	mock := &fakeLLM{reply: "Answer: The alpha facts."}
	gen := NewGenerator(mock, testLogger())

	res, err := gen.Ask(context.Background(), Document{Label: "doc-1", Handle: handle}, "tell me about alpha", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Answer != "The alpha facts." {
		t.Errorf("answer = %q; want %q", res.Answer, "The alpha facts.")
	}
	if len(res.Citations) == 0 {
		t.Fatal("expected citations")
	}
	if res.Citations[0].Source != "doc-1" || res.Citations[0].Page != 1 {
		t.Errorf("first citation = %+v; want doc-1 page 1", res.Citations[0])
	}
	if !strings.Contains(mock.lastPrompt, "tell me about alpha") {
		t.Error("question missing from prompt")
	}
}

func TestGeneratorAskNumericQuestion(t *testing.T) {
	handle := newTestHandle(t, "alpha marks: maths 85%, science 92%, overall 69%")
	mock := &fakeLLM{reply: "She scored 85% in maths and the overall was 69%."}
	gen := NewGenerator(mock, testLogger())

	res, err := gen.Ask(context.Background(), Document{Label: "marksheet", Handle: handle}, "What percentage did she score?", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Answer != "69%" {
		t.Errorf("answer = %q; want the last percentage 69%%", res.Answer)
	}
}

func TestGeneratorAskHistoryInPrompt(t *testing.T) {
	handle := newTestHandle(t, "alpha content")
	mock := &fakeLLM{reply: "ok"}
	gen := NewGenerator(mock, testLogger())

	history := []llm.Message{
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "first reply"},
	}
	if _, err := gen.Ask(context.Background(), Document{Label: "d", Handle: handle}, "alpha?", history); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(mock.lastPrompt, "user: first question") {
		t.Error("history missing from prompt")
	}
}

func TestFormatHistoryWindow(t *testing.T) {
	var history []llm.Message
	for _, content := range []string{"m1", "m2", "m3", "m4", "m5", "m6", "m7"} {
		history = append(history, llm.Message{Role: "user", Content: content})
	}

	got := formatHistory(history)
	if strings.Contains(got, "m1") || strings.Contains(got, "m2") {
		t.Errorf("history window must drop oldest turns, got:\n%s", got)
	}
	for _, want := range []string{"m3", "m4", "m5", "m6", "m7"} {
		if !strings.Contains(got, want) {
			t.Errorf("history window dropped recent turn %s:\n%s", want, got)
		}
	}
}

func TestGeneratorSummarize(t *testing.T) {
	handle := newTestHandle(t, "alpha section\fbeta section")
	mock := &fakeLLM{reply: "Summary:\n- alpha point\n- beta point"}
	gen := NewGenerator(mock, testLogger())

	res, err := gen.Summarize(context.Background(), Document{Label: "report", Handle: handle})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if res.Answer != "- alpha point\n- beta point" {
		t.Errorf("answer = %q", res.Answer)
	}
	if len(res.Citations) != 2 {
		t.Errorf("citations = %+v; want both pages cited once each", res.Citations)
	}
}

func TestGeneratorCompare(t *testing.T) {
	docA := Document{Label: "b-doc", Handle: newTestHandle(t, "alpha contents")}
	docB := Document{Label: "a-doc", Handle: newTestHandle(t, "beta contents")}
	mock := &fakeLLM{reply: "Comparison: They cover different topics."}
	gen := NewGenerator(mock, testLogger())

	res, err := gen.Compare(context.Background(), []Document{docA, docB}, "How do they differ?")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if res.Answer != "They cover different topics." {
		t.Errorf("answer = %q", res.Answer)
	}
	if len(res.Citations) != 2 {
		t.Fatalf("citations = %+v; want one per document", res.Citations)
	}
	// Merged citations come back sorted by source label.
	if res.Citations[0].Source != "a-doc" || res.Citations[1].Source != "b-doc" {
		t.Errorf("citations not sorted by source: %+v", res.Citations)
	}
	if !strings.Contains(mock.lastPrompt, "(b-doc)") || !strings.Contains(mock.lastPrompt, "(a-doc)") {
		t.Error("compare prompt missing document labels")
	}
}

func TestGeneratorCompareRejectsSingleDocument(t *testing.T) {
	doc := Document{Label: "solo", Handle: newTestHandle(t, "alpha")}
	gen := NewGenerator(&fakeLLM{reply: "x"}, testLogger())

	if _, err := gen.Compare(context.Background(), []Document{doc}, "q"); err == nil {
		t.Fatal("expected error for single-document compare")
	}
}

func TestGeneratorGenerationError(t *testing.T) {
	handle := newTestHandle(t, "alpha")
	wantErr := errors.New("model unavailable")
	gen := NewGenerator(&fakeLLM{err: wantErr}, testLogger())

	_, err := gen.Ask(context.Background(), Document{Label: "d", Handle: handle}, "alpha?", nil)
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v; want wrapped %v", err, wantErr)
	}
}

func TestBuildCitationsDeduplicatesPages(t *testing.T) {
	chunks := []processor.Chunk{
		{Text: "c1", Page: 2},
		{Text: "c2", Page: 1},
		{Text: "c3", Page: 2},
		{Text: "c4", Page: 1},
	}
	got := buildCitations("doc", chunks)
	if len(got) != 2 {
		t.Fatalf("citations = %+v; want 2 after dedup", got)
	}
	if got[0].Page != 1 || got[1].Page != 2 {
		t.Errorf("citations not sorted by page: %+v", got)
	}
}
