package assistant

import (
	"fmt"
	"strings"

	"github.com/hyperjump/researchpilot/internal/models"
)

const promptTemplate = `
You are a research intelligence assistant.

Using the research context below, generate a structured research analysis.

Research Context:
%s

User Query:
%s

Return output in this structure:

1. Executive Summary
2. Key Findings
3. Methodology Comparison
4. Research Gaps
5. Future Scope
`

// BuildContext joins retrieved passages with a blank line between them.
func BuildContext(results []*models.QueryResult) string {
	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = r.Document
	}
	return strings.Join(docs, "\n\n")
}

// BuildPrompt renders the five-section analysis prompt.
func BuildPrompt(context, query string) string {
	return fmt.Sprintf(promptTemplate, context, query)
}

// fallbackWithSources is returned without an LLM when passages were found.
func fallbackWithSources(n int) string {
	return fmt.Sprintf(`1. Executive Summary

Based on the %[1]d relevant document chunks retrieved from your research library, this topic appears in your indexed documents. However, to generate a comprehensive AI-powered analysis, please configure the Groq API key.

2. Key Findings

%[1]d relevant document chunks were found related to your query.

3. Methodology Comparison

To enable AI analysis, add GROQ_API_KEY to your backend .env file.

4. Research Gaps

Configure Groq API to unlock full research analysis capabilities.

5. Future Scope

Once GROQ_API_KEY is configured, the system will provide detailed AI-generated research analysis using the Llama 3.3 70B model.`, n)
}

// fallbackNoSources is returned without an LLM when nothing was retrieved.
const fallbackNoSources = `1. Executive Summary

No relevant documents were found in your research library for this topic. Please upload and ingest PDF documents first, then configure the Groq API key for AI-powered analysis.

2. Key Findings

- No documents indexed yet, or query doesn't match existing documents
- Groq API key not configured

3. Methodology Comparison

To get started:
1. Upload PDF documents via the Upload page
2. Ingest them into the vector database
3. Add GROQ_API_KEY to backend/.env file

4. Research Gaps

System is ready but needs:
- Document ingestion
- Groq API configuration

5. Future Scope

Once configured, the system will provide intelligent research analysis combining your documents with AI reasoning.`
