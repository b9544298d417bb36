package rag

import (
	"fmt"

	"github.com/akolanti/AskStan/internal/domain/chatModel"
	"github.com/akolanti/AskStan/internal/rag/llm"
)

const (
	NoDocumentsNote = "No related documents were found."
	MissingInfoNote = "The documents do not contain that information."
)

const enhancedInputTemplate = `User question: %s

Related document information:
%s

Answer the user's question accurately and helpfully based on the related document information above.
Use the documents for specific, precise details. Do not guess at anything the documents do not cover; state "%s" instead.`

// EnhanceInput wraps the user input with the retrieved documents and the
// answering instruction.
func EnhanceInput(input string, retrieval Retrieval) string {
	context := retrieval.Context
	if context == "" {
		context = NoDocumentsNote
	}
	return fmt.Sprintf(enhancedInputTemplate, input, context, MissingInfoNote)
}

// BuildMessages orders the system prompt, the prior turns and the enhanced
// current input. history must not contain the current input.
func BuildMessages(systemPrompt string, retrieval Retrieval, history []chatModel.Turn, input string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})

	for _, turn := range history {
		role := llm.RoleUser
		if turn.Role == chatModel.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}

	return append(messages, llm.Message{Role: llm.RoleUser, Content: EnhanceInput(input, retrieval)})
}
