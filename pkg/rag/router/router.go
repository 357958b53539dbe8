// Package router answers questions about ingested documents. It classifies
// each question, picks a retrieval strategy, rebuilds page-level context and
// streams the completion back to the caller.
package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"ai-docqa-be/pkg/chunkstore"
	"ai-docqa-be/pkg/docqa/errs"
	"ai-docqa-be/pkg/llm"
	"ai-docqa-be/pkg/pagestore"
)

const (
	// DefaultTopK keeps retrieval narrow: each hit pulls in its whole page,
	// so two hits already carry a lot of prompt.
	DefaultTopK = 2

	// DefaultSummaryBudget caps the raw-text prefix used by the
	// full-summary strategy, in characters.
	DefaultSummaryBudget = 6000
)

// PageLoader resolves stored page text. A missing page is (_, false, nil).
type PageLoader interface {
	Load(documentID, pageKey string) (string, bool, error)
}

// TextLoader returns the full extracted text of a document for the
// full-summary strategy.
type TextLoader interface {
	LoadText(ctx context.Context, documentID string) (string, error)
}

// Router is the query-answering state machine:
// CLASSIFY -> {VECTOR_SEARCH, EXPLICIT_PAGES, FULL_SUMMARY} -> ANSWER.
type Router struct {
	classifier    *Classifier
	chunks        *chunkstore.Store
	pages         PageLoader
	texts         TextLoader
	llmProvider   llm.LLMProvider
	filter        pagestore.FilterConfig
	topK          int
	summaryBudget int
	logger        *log.Logger
}

// Option tweaks router construction.
type Option func(*Router)

func WithTopK(k int) Option {
	return func(r *Router) { r.topK = k }
}

func WithSummaryBudget(chars int) Option {
	return func(r *Router) { r.summaryBudget = chars }
}

func NewRouter(
	chunks *chunkstore.Store,
	pages PageLoader,
	texts TextLoader,
	llmProvider llm.LLMProvider,
	filter pagestore.FilterConfig,
	logger *log.Logger,
	opts ...Option,
) *Router {
	if logger == nil {
		logger = log.Default()
	}
	r := &Router{
		classifier:    NewClassifier(llmProvider, logger),
		chunks:        chunks,
		pages:         pages,
		texts:         texts,
		llmProvider:   llmProvider,
		filter:        filter,
		topK:          DefaultTopK,
		summaryBudget: DefaultSummaryBudget,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Answer classifies the question, gathers context with the chosen strategy
// and streams the completion. Retrieval strategies that come up empty
// escalate to the full-summary fallback instead of failing the caller; any
// other failure propagates.
func (r *Router) Answer(ctx context.Context, documentIDs []string, question string, opts ...llm.Option) (<-chan llm.StreamDelta, error) {
	if len(documentIDs) == 0 {
		return nil, fmt.Errorf("answer: no document ids given")
	}

	route, err := r.classifier.Classify(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("classify question: %w", err)
	}

	contextBlocks, err := r.gatherContext(ctx, route, documentIDs, question)
	if errors.Is(err, errs.ErrNoResult) {
		// Designed fallback, not an error: the caller always gets an answer
		// grounded in some context.
		r.logger.Printf("[ROUTER] %s found nothing, escalating to %s", route.Strategy, StrategyFullSummary)
		contextBlocks, err = r.fullSummaryContext(ctx, documentIDs)
	}
	if err != nil {
		return nil, err
	}

	prompt := buildAnswerPrompt(contextBlocks, question)
	r.logger.Printf("[ROUTER] strategy=%s context_blocks=%d prompt_chars=%d", route.Strategy, len(contextBlocks), len(prompt))

	stream, err := r.llmProvider.ChatStream(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
	if err != nil {
		return nil, fmt.Errorf("completion stream: %w", err)
	}
	return stream, nil
}

func (r *Router) gatherContext(ctx context.Context, route Route, documentIDs []string, question string) ([]string, error) {
	switch route.Strategy {
	case StrategyVectorSearch:
		return r.vectorContext(ctx, documentIDs, question)
	case StrategyExplicitPages:
		return r.explicitContext(documentIDs, route.Pages)
	default:
		return r.fullSummaryContext(ctx, documentIDs)
	}
}

type pageRef struct {
	documentID string
	pageKey    string
}

// vectorContext searches the chunk store and rebuilds full-page context
// around the matches. Pages are kept in first-occurrence order among the
// ranked hits and included once each, and the index-page filter runs again
// on the full page text since a chunk can slip through when its page was
// borderline at ingestion.
func (r *Router) vectorContext(ctx context.Context, documentIDs []string, question string) ([]string, error) {
	hits, err := r.chunks.Query(ctx, question, r.topK, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		return nil, errs.ErrNoResult
	}

	seen := make(map[pageRef]bool)
	var blocks []string
	for _, hit := range hits {
		ref := pageRef{
			documentID: hit.Metadata[chunkstore.MetaDocumentID],
			pageKey:    hit.Metadata[chunkstore.MetaPageKey],
		}
		if ref.documentID == "" || ref.pageKey == "" || seen[ref] {
			continue
		}
		seen[ref] = true

		text, found, err := r.pages.Load(ref.documentID, ref.pageKey)
		if err != nil {
			return nil, fmt.Errorf("load page %s/%s: %w", ref.documentID, ref.pageKey, err)
		}
		if !found {
			r.logger.Printf("[ROUTER] chunk references missing page %s/%s", ref.documentID, ref.pageKey)
			continue
		}
		if pagestore.IsIndexPage(text, r.filter) {
			r.logger.Printf("[ROUTER] page %s/%s flagged as index page, excluded from context", ref.documentID, ref.pageKey)
			continue
		}
		blocks = append(blocks, text)
	}

	if len(blocks) == 0 {
		return nil, errs.ErrNoResult
	}
	return blocks, nil
}

// explicitContext looks pages up by number key, skipping the vector index
// entirely.
func (r *Router) explicitContext(documentIDs []string, pages []int) ([]string, error) {
	var blocks []string
	for _, documentID := range documentIDs {
		for _, page := range pages {
			text, found, err := r.pages.Load(documentID, strconv.Itoa(page))
			if err != nil {
				return nil, fmt.Errorf("load page %s/%d: %w", documentID, page, err)
			}
			if !found {
				r.logger.Printf("[ROUTER] requested page %d not found in document %s", page, documentID)
				continue
			}
			blocks = append(blocks, text)
		}
	}
	if len(blocks) == 0 {
		return nil, errs.ErrNoResult
	}
	return blocks, nil
}

// fullSummaryContext takes a capped prefix of the first document's raw
// text. No retrieval happens on this branch, so it cannot produce NoResult;
// a loader failure is a real upstream error.
func (r *Router) fullSummaryContext(ctx context.Context, documentIDs []string) ([]string, error) {
	text, err := r.texts.LoadText(ctx, documentIDs[0])
	if err != nil {
		return nil, fmt.Errorf("load document text %s: %w", documentIDs[0], err)
	}

	runes := []rune(text)
	if len(runes) > r.summaryBudget {
		runes = runes[:r.summaryBudget]
	}
	return []string{string(runes)}, nil
}

func buildAnswerPrompt(contextBlocks []string, question string) string {
	var sb strings.Builder
	sb.WriteString("Use the following pieces of context to answer the query at the end.\n")
	sb.WriteString("If you don't know the answer, just say that you don't know, don't try to make up an answer.\n\n")
	sb.WriteString(strings.Join(contextBlocks, " | "))
	sb.WriteString("\n\nQuery: ")
	sb.WriteString(question)
	sb.WriteString("\n\nHelpful Answer:\n")
	return sb.String()
}
