package ai

import (
	"fmt"
	"strings"
)

func TranscriptionPrompt(languageName string) string {
	return fmt.Sprintf(`Transcribe this customer service call recording verbatim.
The call is spoken in %s. Write the transcript in %s using its native script.
Label each turn with "Agent:" or "Customer:" on its own line.
Return only the transcript text with no commentary.`, languageName, languageName)
}

func TranslationPrompt(languageName, text string) string {
	return fmt.Sprintf(`Translate the following %s call transcript into natural English.
Keep the "Agent:" and "Customer:" turn labels and the turn order.
Return only the translation.

TRANSCRIPT:
%s`, languageName, text)
}

// AnalysisPrompt asks for the JSON shape decoded by ParseCallAnalysis.
func AnalysisPrompt(englishTranscript string) string {
	var b strings.Builder
	b.WriteString(`You are a quality assurance coach for a customer service call center.
Evaluate the agent in the call transcript below.

Respond with ONLY a JSON object in this exact format:
{
  "sentiment": "positive" | "neutral" | "negative",
  "sentimentScore": number between -1 and 1,
  "summary": "2-3 sentence summary of the call",
  "coachingFeedback": "concise, actionable feedback for the agent",
  "openingScore": number between 0 and 10,
  "closingScore": number between 0 and 10,
  "speakingQualityScore": number between 0 and 10,
  "strengths": ["..."],
  "improvements": ["..."]
}

Scoring guide:
- openingScore: greeting, self introduction, verifying the customer, setting the agenda
- closingScore: summarizing the resolution, confirming next steps, polite farewell
- speakingQualityScore: clarity, pace, empathy, professional tone

TRANSCRIPT:
`)
	b.WriteString(englishTranscript)
	return b.String()
}

func KeywordsPrompt(englishTranscript string) string {
	return fmt.Sprintf(`Extract up to %d short keywords or key phrases that describe the topics,
products and issues discussed in this call. Respond with ONLY a JSON array of strings.

TRANSCRIPT:
%s`, MaxKeywords, englishTranscript)
}
