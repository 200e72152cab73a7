package rag

import (
	"context"
	"strings"
)

// contextInstructions tell the model how to use retrieved context.
const contextInstructions = `Use the retrieved context above when answering. Prefer facts from the context over general knowledge. If the context does not cover the question, say so honestly instead of inventing details about properties, prices, or policies.`

// AugmentPrompt appends the retrieved context and a fixed instruction block
// to the system prompt. An empty context returns the prompt unchanged.
func (r *Retriever) AugmentPrompt(ctx context.Context, systemPrompt, query, agentID string, opts Options) (string, *Context, error) {
	retrieved, err := r.RetrieveContext(ctx, query, agentID, opts)
	if err != nil {
		return systemPrompt, nil, err
	}

	if retrieved.CombinedContext == "" {
		return systemPrompt, retrieved, nil
	}

	var sb strings.Builder
	sb.WriteString(systemPrompt)
	sb.WriteString("\n\n---\nRETRIEVED CONTEXT:\n")
	sb.WriteString(retrieved.CombinedContext)
	sb.WriteString("\n---\n")
	sb.WriteString(contextInstructions)
	return sb.String(), retrieved, nil
}
