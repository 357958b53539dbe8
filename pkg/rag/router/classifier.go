package router

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"ai-docqa-be/pkg/llm"
)

// Strategy names the answering branch chosen for a question.
type Strategy int

const (
	StrategyVectorSearch Strategy = iota
	StrategyExplicitPages
	StrategyFullSummary
)

func (s Strategy) String() string {
	switch s {
	case StrategyVectorSearch:
		return "VECTOR_SEARCH"
	case StrategyExplicitPages:
		return "EXPLICIT_PAGES"
	default:
		return "FULL_SUMMARY"
	}
}

// Route is the classifier's verdict, parsed once at the boundary. Pages is
// only populated for StrategyExplicitPages.
type Route struct {
	Strategy Strategy
	Pages    []int
}

// Classifier asks the completion backend which answering strategy fits a
// question. This is a pure LLM call with no retrieval.
type Classifier struct {
	llmProvider llm.LLMProvider
	logger      *log.Logger
}

func NewClassifier(llmProvider llm.LLMProvider, logger *log.Logger) *Classifier {
	return &Classifier{
		llmProvider: llmProvider,
		logger:      logger,
	}
}

const classifyPrompt = `You are a query classifier for a document question-answering system.
Classify the question below into exactly one category:
- "vector_search": a factual question answerable by searching document passages.
- "explicit_pages": the question names specific page numbers to read or summarize.
- "full_summary": the question asks for a summary or overview of the whole document.

Output only the final answer as JSON, no analysis. Format:
{"category":"vector_search"} or {"category":"explicit_pages","pages":[9,10]} or {"category":"full_summary"}

Question: `

type classifyResult struct {
	Category string `json:"category"`
	Pages    []int  `json:"pages"`
}

// Classify resolves the strategy for a question. A failed LLM call is
// surfaced to the caller; a response that cannot be parsed falls back to the
// full-summary strategy, which always produces some grounded answer.
func (c *Classifier) Classify(ctx context.Context, question string) (Route, error) {
	response, err := c.llmProvider.Generate(ctx, classifyPrompt+question, llm.WithTemperature(0.0))
	if err != nil {
		return Route{}, err
	}

	route, ok := parseRoute(response)
	if !ok {
		c.logger.Printf("[ROUTER] unparseable classification %q, defaulting to %s", truncate(response, 120), StrategyFullSummary)
		return Route{Strategy: StrategyFullSummary}, nil
	}

	c.logger.Printf("[ROUTER] question classified as %s pages=%v", route.Strategy, route.Pages)
	return route, nil
}

// parseRoute extracts the first JSON object from the model output. Models
// occasionally wrap the answer in prose or code fences despite instructions.
func parseRoute(response string) (Route, bool) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return Route{}, false
	}

	var result classifyResult
	if err := json.Unmarshal([]byte(response[start:end+1]), &result); err != nil {
		return Route{}, false
	}

	switch result.Category {
	case "vector_search":
		return Route{Strategy: StrategyVectorSearch}, true
	case "explicit_pages":
		if len(result.Pages) == 0 {
			// Pages named but not parsed: nothing to look up directly.
			return Route{}, false
		}
		return Route{Strategy: StrategyExplicitPages, Pages: result.Pages}, true
	case "full_summary":
		return Route{Strategy: StrategyFullSummary}, true
	default:
		return Route{}, false
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
