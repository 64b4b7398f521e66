package llm

import (
	_ "embed"

	"docflow-backend/internal/shared/util"
)

var (
	//go:embed prompts/system.txt
	SystemPrompt string
	//go:embed prompts/job_summary.txt
	jobSummaryPrefix string
	//go:embed prompts/document_summary.txt
	documentSummaryPrefix string
	//go:embed prompts/converted_summary.txt
	convertedSummaryPrefix string
)

// JobSummaryPrompt builds the prompt for an OCR text excerpt.
func JobSummaryPrompt(excerpt string) string {
	return jobSummaryPrefix + util.TruncateRunes(excerpt, MaxInputRunes)
}

// DocumentSummaryPrompt builds the prompt for a generated Word document.
func DocumentSummaryPrompt(content string) string {
	return documentSummaryPrefix + util.TruncateRunes(content, MaxInputRunes)
}

// ConvertedSummaryPrompt builds the prompt for a converted document.
func ConvertedSummaryPrompt(markdown string) string {
	return convertedSummaryPrefix + util.TruncateRunes(markdown, MaxInputRunes)
}
