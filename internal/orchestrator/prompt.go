package orchestrator

import "strings"

// ContextSlot is the named slot a bot's system-prompt template may
// carry for dataset context.
const ContextSlot = "{{CONTEXT}}"

// PromptTemplate is a system prompt with one optional context slot,
// parsed once at bot load so slot presence is an explicit branch, not a
// string search at render time.
type PromptTemplate struct {
	prefix  string
	suffix  string
	hasSlot bool
}

func ParsePromptTemplate(raw string) PromptTemplate {
	before, after, found := strings.Cut(raw, ContextSlot)
	if !found {
		return PromptTemplate{prefix: raw}
	}
	return PromptTemplate{prefix: before, suffix: after, hasSlot: true}
}

// Render fills the context slot, or appends the context block when the
// template has no slot. An empty context renders the bare template.
func (t PromptTemplate) Render(context string) string {
	if t.hasSlot {
		return t.prefix + context + t.suffix
	}
	if context == "" {
		return t.prefix
	}
	if t.prefix == "" {
		return "Use the following project data to answer:\n" + context
	}
	return t.prefix + "\n\nProject data for this question:\n" + context
}
