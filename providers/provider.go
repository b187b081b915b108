package providers

import "context"

// CompletionProvider ist das Interface, das jeder LLM-Provider (z.B. OpenAI)
// implementieren muss. Das Modell wird als Blackbox behandelt: Prompt rein,
// Text raus.
type CompletionProvider interface {
	// Complete schickt System- und User-Prompt an das Modell und gibt den
	// rohen Text der Completion zurück.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Name gibt den eindeutigen Namen des Providers zurück (z.B. "openai").
	Name() string
}
