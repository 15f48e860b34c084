// File path: internal/rag/prompt.go
package rag

import (
	"github.com/tmc/langchaingo/prompts"
)

const systemPrompt = "You are the order desk assistant for a print shop. " +
	"Answer questions about production orders using ONLY the order data provided. " +
	"Be concise and specific: cite job numbers, customers, statuses, and dollar " +
	"amounts exactly as given. If the provided orders do not answer the question, " +
	"say so plainly instead of guessing. Never invent order data."

var answerTemplate = prompts.NewPromptTemplate(
	`Order data:
{{.orders}}

Question: {{.query}}

Answer the question using the order data above.`,
	[]string{"orders", "query"},
)

var followUpTemplate = prompts.NewPromptTemplate(
	`Order data:
{{.orders}}

Earlier in this conversation the user asked: {{.lastQuery}}

Follow-up question: {{.query}}

Answer the follow-up in the context of the earlier question, using the order data above.`,
	[]string{"orders", "lastQuery", "query"},
)

func renderAnswerPrompt(orders, query string) (string, error) {
	return answerTemplate.Format(map[string]any{
		"orders": orders,
		"query":  query,
	})
}

func renderFollowUpPrompt(orders, lastQuery, query string) (string, error) {
	return followUpTemplate.Format(map[string]any{
		"orders":    orders,
		"lastQuery": lastQuery,
		"query":     query,
	})
}
