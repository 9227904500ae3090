// Package testutil holds deterministic stand-ins for the hosted model APIs.
package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/Abraxas-365/coursekb/llm"
)

// HashEmbedder embeds text as a normalized bag of hashed words, so texts
// sharing words score as similar.
type HashEmbedder struct {
	Dim int
	Err error
}

func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{Dim: 64}
}

func (h *HashEmbedder) EmbedDocuments(_ context.Context, docs []string) ([][]float32, error) {
	if h.Err != nil {
		return nil, h.Err
	}
	out := make([][]float32, len(docs))
	for i, d := range docs {
		out[i] = h.vector(d)
	}
	return out, nil
}

func (h *HashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if h.Err != nil {
		return nil, h.Err
	}
	return h.vector(text), nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.Dim)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		v[f.Sum32()%uint32(h.Dim)]++
	}
	var sum float64
	for _, x := range v {
		sum += float64(x * x)
	}
	if sum == 0 {
		v[0] = 1
		return v
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
	return v
}

// ScriptedLLM replies with Reply and records every prompt it receives.
type ScriptedLLM struct {
	Reply string
	Err   error

	mu       sync.Mutex
	Requests [][]llm.Message
}

var _ llm.LLM = (*ScriptedLLM)(nil)

func (s *ScriptedLLM) record(messages []llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, messages)
}

// LastPrompt returns the content of the last message of the last request
func (s *ScriptedLLM) LastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Requests) == 0 {
		return ""
	}
	last := s.Requests[len(s.Requests)-1]
	return last[len(last)-1].Content
}

func (s *ScriptedLLM) Chat(_ context.Context, messages []llm.Message, _ ...llm.Option) (*llm.Message, error) {
	s.record(messages)
	if s.Err != nil {
		return nil, s.Err
	}
	msg := &llm.Message{Role: llm.RoleAssistant, Content: s.Reply}
	msg.SetUsage(&llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
	return msg, nil
}

func (s *ScriptedLLM) ChatStream(ctx context.Context, messages []llm.Message, _ ...llm.Option) (<-chan llm.StreamResponse, error) {
	s.record(messages)
	if s.Err != nil {
		return nil, s.Err
	}
	ch := make(chan llm.StreamResponse)
	go func() {
		defer close(ch)
		for _, word := range strings.SplitAfter(s.Reply, " ") {
			select {
			case ch <- llm.StreamResponse{Message: llm.Message{Role: llm.RoleAssistant, Content: word}}:
			case <-ctx.Done():
				return
			}
		}
		ch <- llm.StreamResponse{Message: llm.Message{Role: llm.RoleAssistant}, Done: true}
	}()
	return ch, nil
}

func (s *ScriptedLLM) Complete(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	msg, err := s.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}
