package chat

import (
	"strings"

	"github.com/Keyring-Network/linkchat/internal/scrape"
)

const systemInstruction = "You are a helpful AI assistant that answers questions based on provided context. " +
	"Always cite sources when using information from the context. " +
	"If the context doesn't contain relevant information, say so. " +
	"Format source citations as [Source: URL]."

// AssembleContext renders scraped pages as labeled blocks separated by a
// blank line, in result order.
func AssembleContext(results []scrape.Result) string {
	blocks := make([]string, 0, len(results))
	for _, result := range results {
		blocks = append(blocks, "Content from "+result.URL+":\n"+result.Content)
	}
	return strings.Join(blocks, "\n\n")
}

func userPrompt(question string, pageContext string) string {
	if pageContext == "" {
		return question
	}
	return "Context:\n" + pageContext + "\n\nQuestion: " + question
}

func sourceURLs(results []scrape.Result) []string {
	if len(results) == 0 {
		return nil
	}
	urls := make([]string, 0, len(results))
	for _, result := range results {
		urls = append(urls, result.URL)
	}
	return urls
}
