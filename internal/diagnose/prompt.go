package diagnose

import (
	"encoding/json"
	"fmt"

	"github.com/hpungsan/cortex/internal/capsule"
)

const systemPrompt = "You are a senior web developer debugging a live page. " +
	"You receive a bug capsule: runtime evidence captured in the browser " +
	"(URL, recent interactions, DOM excerpt, errors, failed network calls) " +
	"and an instruction from the operator. Explain the most likely cause " +
	"and what to check next. Be specific and concise."

// BuildPrompt renders the capsule as structured data for the diagnosis
// request. The serialized capsule passes through capsule.Redact before
// leaving the process; the persisted capsule itself stays verbatim.
func BuildPrompt(c capsule.Capsule) (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}

	instructions := c.Instructions
	if instructions == "" {
		instructions = "Explain what is happening and what to check next"
	}

	prompt := fmt.Sprintf("Instruction: %s\n\nBug capsule:\n```json\n%s\n```",
		instructions, data)
	return capsule.Redact(prompt), nil
}
