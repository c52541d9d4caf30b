package llm

import (
	"fmt"
	"strings"
)

// synthesisContract is the JSON shape every synthesis prompt asks for.
const synthesisContract = `Return ONLY a JSON object, no other text:
{
  "content": "the narrative",
  "concepts": ["key concept", ...],
  "relationships": {"concept": ["related concept", ...]},
  "confidence": 0.0-1.0%s
}`

// SynthesisPrompt builds a strategy-specific narrative prompt over a set of
// memory excerpts. instruction describes what kind of narrative to produce;
// extraFields appends strategy-specific JSON fields (e.g. key_events).
func SynthesisPrompt(instruction string, excerpts []string, extraFields string) string {
	contract := fmt.Sprintf(synthesisContract, extraFields)
	return fmt.Sprintf(`You are a knowledge synthesis system. %s

MEMORIES:
%s

Rules:
- Ground every claim in the memories above; do not invent facts
- Name the concepts that connect the memories
- confidence reflects how well the memories support the narrative

%s`, instruction, strings.Join(excerpts, "\n---\n"), contract)
}

// ThemeLabelPrompt asks for theme labels for memories that carry no tags.
func ThemeLabelPrompt(excerpts []string) string {
	return fmt.Sprintf(`You are a theme labeling system. Assign each memory below a short theme label (1-3 words).

MEMORIES (numbered):
%s

Rules:
- Reuse the same label for memories about the same topic
- Labels are lowercase noun phrases
- Return ONLY a JSON array, no other text

Return a JSON array, one entry per memory in order:
[{"index": 0, "theme": "label"}]`, strings.Join(excerpts, "\n"))
}
