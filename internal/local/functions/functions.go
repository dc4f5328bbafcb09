// Package functions is the local stand-in for remote edge functions. A few
// known functions return deterministic placeholder results computed from the
// request body; any other name is not implemented.
package functions

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/brainbox/internal/common"
	"github.com/dmitrijs2005/brainbox/internal/local/query"
	"github.com/dmitrijs2005/brainbox/internal/logging"
)

// Known function names.
const (
	Summarize         = "summarize"
	GenerateTags      = "generate-tags"
	GenerateEmbedding = "generate-embedding"
	FetchLinkPreview  = "fetch-link-preview"
)

// EmbeddingSize is the length of generated embeddings.
const EmbeddingSize = 16

const (
	summaryLimit = 200
	maxTags      = 5
)

type handler func(body map[string]any) (map[string]any, error)

// Service dispatches invocations by name.
type Service struct {
	handlers map[string]handler
	log      logging.Logger
}

func New(log logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{
		handlers: map[string]handler{
			Summarize:         summarize,
			GenerateTags:      generateTags,
			GenerateEmbedding: generateEmbedding,
			FetchLinkPreview:  fetchLinkPreview,
		},
		log: log.With("component", "functions"),
	}
}

// Invoke runs the named function with body, which must encode to a JSON
// object (or be nil). Data is a Row holding the function's output.
func (s *Service) Invoke(ctx context.Context, name string, body any) query.Result {
	h, ok := s.handlers[name]
	if !ok {
		s.log.Warn(ctx, "function not available locally", "name", name)
		return query.Result{Err: common.NewError(common.KindNotImplemented, fmt.Sprintf("function %q is not available locally", name), common.ErrNotImplemented)}
	}

	args, err := decodeBody(body)
	if err != nil {
		return query.Result{Err: common.NewError(common.KindInvalid, "", err)}
	}
	out, err := h(args)
	if err != nil {
		return query.Result{Err: common.NewError(common.KindInvalid, "", err)}
	}
	s.log.Debug(ctx, "function invoked", "name", name)
	return query.Result{Data: query.Row(out)}
}

func decodeBody(body any) (map[string]any, error) {
	if body == nil {
		return map[string]any{}, nil
	}
	if m, ok := body.(map[string]any); ok {
		return m, nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("body must be an object")
	}
	return m, nil
}

func text(body map[string]any, keys ...string) string {
	var parts []string
	for _, k := range keys {
		if s, ok := body[k].(string); ok && s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// summarize returns the first sentence, capped at summaryLimit runes.
func summarize(body map[string]any) (map[string]any, error) {
	src := strings.TrimSpace(text(body, "content", "text"))
	if src == "" {
		return nil, fmt.Errorf("summarize needs content")
	}
	summary := strings.Join(strings.Fields(src), " ")
	if i := strings.IndexAny(summary, ".!?"); i >= 0 {
		summary = summary[:i+1]
	}
	if r := []rune(summary); len(r) > summaryLimit {
		summary = string(r[:summaryLimit-1]) + "…"
	}
	return map[string]any{"summary": summary}, nil
}

// generateTags picks the most frequent words of four letters or more.
func generateTags(body map[string]any) (map[string]any, error) {
	counts := map[string]int{}
	for _, w := range words(text(body, "title", "content", "text")) {
		if len([]rune(w)) >= 4 {
			counts[w]++
		}
	}
	tags := make([]string, 0, len(counts))
	for w := range counts {
		tags = append(tags, w)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return map[string]any{"tags": tags}, nil
}

// generateEmbedding hashes words into a unit vector, so equal texts get
// equal embeddings and shared words pull vectors together.
func generateEmbedding(body map[string]any) (map[string]any, error) {
	vec := make([]float64, EmbeddingSize)
	for _, w := range words(text(body, "text", "content", "title")) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum64()%EmbeddingSize]++
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return map[string]any{"embedding": vec}, nil
}

// fetchLinkPreview derives a preview from the URL alone; nothing is fetched.
func fetchLinkPreview(body map[string]any) (map[string]any, error) {
	raw, _ := body["url"].(string)
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("fetch-link-preview needs an absolute http(s) url")
	}
	title := strings.TrimPrefix(u.Hostname(), "www.")
	if p := strings.Trim(u.Path, "/"); p != "" {
		title += " · " + p[strings.LastIndex(p, "/")+1:]
	}
	return map[string]any{
		"url":         u.String(),
		"title":       title,
		"description": "",
		"image":       nil,
	}, nil
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
