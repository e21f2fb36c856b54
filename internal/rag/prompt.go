package rag

import (
	"fmt"
	"strings"

	"github.com/dshills/pdfrag-mcp/pkg/types"
)

// spanishMarkers are interrogatives whose presence marks a question as Spanish
var spanishMarkers = []string{"qué", "cómo", "cuál", "quién", "dónde", "cuándo", "por qué", "cuánto"}

type language struct {
	name             string
	noResults        string
	notEnoughInfo    string
	generationFailed string
}

var (
	english = language{
		name:             "English",
		noResults:        "I'm sorry, I couldn't find any relevant information to answer your question.",
		notEnoughInfo:    "I don't have enough information to answer this question.",
		generationFailed: "I'm sorry, I encountered an error while trying to answer your question.",
	}
	spanish = language{
		name:             "Spanish",
		noResults:        "Lo siento, no pude encontrar información relevante para responder a tu pregunta.",
		notEnoughInfo:    "No tengo suficiente información para responder a esta pregunta.",
		generationFailed: "Lo siento, encontré un error al intentar responder a tu pregunta.",
	}
)

func detectLanguage(query string) language {
	q := strings.ToLower(query)
	for _, m := range spanishMarkers {
		if strings.Contains(q, m) {
			return spanish
		}
	}
	return english
}

// buildPrompt numbers the retrieved chunks as documents and appends the
// answering instructions
func buildPrompt(query string, results []types.SearchResult) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("Document %d:\n%s", i+1, r.Content)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\n", query)
	sb.WriteString("Please answer the question based on the following information:\n\n")
	sb.WriteString(strings.Join(blocks, "\n\n"))
	sb.WriteString("\n\nImportant instructions:\n")
	sb.WriteString("1. Answer the question using ONLY the information provided above.\n")
	sb.WriteString("2. If the question is in Spanish, respond in Spanish. If the question is in English, respond in English.\n")
	sb.WriteString("3. Match the language of your response to the language of the question.\n")
	sb.WriteString("4. Be concise and direct in your answer.\n")
	sb.WriteString("5. If the information to answer the question is not in the provided context, say so.\n\n")
	sb.WriteString("Answer:")
	return sb.String()
}
