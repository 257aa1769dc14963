package extraction

import "fmt"

const systemPrompt = `You are an archivist that turns raw documents into concise memory records.
Given a document, respond with ONLY a JSON object, no prose and no code fences:
{"title": "<short descriptive title, at most 10 words>",
 "summary": "<faithful summary of the document in 2-5 sentences>",
 "metadata": {"topics": ["<topic>", ...], "language": "<ISO 639-1 code>"}}`

func userPrompt(content string) string {
	return fmt.Sprintf("Document:\n---\n%s\n---\nProduce the JSON memory record.", content)
}
