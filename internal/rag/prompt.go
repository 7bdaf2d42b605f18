package rag

import (
	"fmt"
	"strings"
)

// FallbackSentence is the answer the model is instructed to emit verbatim
// when the context does not contain the answer. Part of the prompt contract.
const FallbackSentence = "I could not find the answer in the provided document."

// promptTemplate grounds the model: context only, fixed fallback, then the
// ANSWER cue. The exact wording is part of the contract and pinned by tests.
const promptTemplate = `You are a helpful assistant.
Answer the question using ONLY the context below.
If the answer is not present in the context or not relevant to the question, say:
"%s"

CONTEXT:
%s

QUESTION:
%s

ANSWER:`

// BuildPrompt joins the retrieved passages with blank lines and embeds them,
// with the verbatim question, into the grounding template.
func BuildPrompt(passages []string, question string) string {
	context := strings.Join(passages, "\n\n")
	return fmt.Sprintf(promptTemplate, FallbackSentence, context, question)
}
