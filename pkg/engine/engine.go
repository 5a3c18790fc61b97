package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"pdf-qa-be/pkg/llm"
	"pdf-qa-be/pkg/processor"

	"golang.org/x/sync/errgroup"
)

const (
	askTopK     = 4
	summaryTopK = 6
	compareTopK = 3

	// Only the most recent turns go into the prompt; older context invites
	// leakage across topics.
	historyWindow = 5
)

// Document pairs an index handle with the label used in citations.
type Document struct {
	Label  string
	Handle *processor.IndexHandle
}

// Citation names where an answer came from: document label + 1-indexed page.
type Citation struct {
	Source string `json:"source"`
	Page   int    `json:"page"`
}

// QueryResult is an answer plus its provenance.
type QueryResult struct {
	Answer    string
	Citations []Citation
}

// Engine answers questions against index handles. Implementations may block
// for seconds on model inference; callers must not hold store locks across
// calls.
type Engine interface {
	Ask(ctx context.Context, doc Document, question string, history []llm.Message) (*QueryResult, error)
	Summarize(ctx context.Context, doc Document) (*QueryResult, error)
	Compare(ctx context.Context, docs []Document, question string) (*QueryResult, error)
}

// Generator is the LLM-backed Engine.
type Generator struct {
	llmProvider llm.LLMProvider
	logger      *log.Logger
}

var _ Engine = &Generator{}

func NewGenerator(llmProvider llm.LLMProvider, logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.New(log.Writer(), "[ENGINE] ", log.LstdFlags)
	}
	return &Generator{
		llmProvider: llmProvider,
		logger:      logger,
	}
}

func (g *Generator) Ask(ctx context.Context, doc Document, question string, history []llm.Message) (*QueryResult, error) {
	chunks, err := doc.Handle.Search(ctx, question, askTopK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	if len(chunks) == 0 {
		return &QueryResult{Answer: "No relevant context found in the current document."}, nil
	}

	prompt := BuildAskPrompt(joinChunks(chunks), question, formatHistory(history))
	raw, err := g.llmProvider.Generate(ctx, prompt, llm.WithMaxTokens(512))
	if err != nil {
		g.logger.Printf("[ERROR] LLM generation failed: %v", err)
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	answer := ExtractFinalAnswer(raw)
	// Numeric questions: prefer the consolidated figure over intermediate marks.
	if IsNumericQuestion(question) {
		answer = ExtractPercentage(answer)
	}

	return &QueryResult{
		Answer:    answer,
		Citations: buildCitations(doc.Label, chunks),
	}, nil
}

func (g *Generator) Summarize(ctx context.Context, doc Document) (*QueryResult, error) {
	chunks, err := doc.Handle.Search(ctx, "Give a concise summary of the document.", summaryTopK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	if len(chunks) == 0 {
		return &QueryResult{Answer: "No document context available to summarize."}, nil
	}

	prompt := BuildSummarizePrompt(joinChunks(chunks))
	raw, err := g.llmProvider.Generate(ctx, prompt, llm.WithMaxTokens(512))
	if err != nil {
		g.logger.Printf("[ERROR] LLM generation failed: %v", err)
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	return &QueryResult{
		Answer:    ExtractFinalAnswer(raw),
		Citations: buildCitations(doc.Label, chunks),
	}, nil
}

func (g *Generator) Compare(ctx context.Context, docs []Document, question string) (*QueryResult, error) {
	if len(docs) < 2 {
		return nil, fmt.Errorf("compare needs at least two documents, got %d", len(docs))
	}

	// Retrieval per document fans out; each handle is immutable so this is
	// safe without locking.
	sections := make([]CompareSection, len(docs))
	retrieved := make([][]processor.Chunk, len(docs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, doc := range docs {
		eg.Go(func() error {
			chunks, err := doc.Handle.Search(egCtx, question, compareTopK)
			if err != nil {
				return fmt.Errorf("document %s: %w", doc.Label, err)
			}
			sections[i] = CompareSection{Label: doc.Label, Context: joinChunks(chunks)}
			retrieved[i] = chunks
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	prompt := BuildComparePrompt(sections, question)
	raw, err := g.llmProvider.Generate(ctx, prompt, llm.WithMaxTokens(512))
	if err != nil {
		g.logger.Printf("[ERROR] LLM generation failed: %v", err)
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	var citations []Citation
	for i, doc := range docs {
		citations = append(citations, buildCitations(doc.Label, retrieved[i])...)
	}
	return &QueryResult{
		Answer:    ExtractFinalAnswer(raw),
		Citations: sortCitations(citations),
	}, nil
}

func joinChunks(chunks []processor.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, "\n\n")
}

func formatHistory(history []llm.Message) string {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	var b strings.Builder
	for _, msg := range history {
		if msg.Role == "" || msg.Content == "" {
			continue
		}
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// buildCitations deduplicates (source, page) pairs and sorts them.
func buildCitations(label string, chunks []processor.Chunk) []Citation {
	seen := make(map[int]bool, len(chunks))
	var out []Citation
	for _, c := range chunks {
		if seen[c.Page] {
			continue
		}
		seen[c.Page] = true
		out = append(out, Citation{Source: label, Page: c.Page})
	}
	return sortCitations(out)
}

func sortCitations(cites []Citation) []Citation {
	sort.SliceStable(cites, func(i, j int) bool {
		if cites[i].Source != cites[j].Source {
			return cites[i].Source < cites[j].Source
		}
		return cites[i].Page < cites[j].Page
	})
	return cites
}
