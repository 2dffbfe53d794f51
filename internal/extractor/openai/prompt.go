package openai

import (
	"encoding/base64"
	"fmt"
)

const (
	systemPrompt = "You are a contract analysis engine. Respond with JSON only. No markdown. Never omit keys."

	systemPromptFixJSON = "You are a JSON repair tool. Return only valid JSON that matches the schema exactly."

	schemaPrompt = `Analyze the contract and return a JSON object with exactly these keys:
{
  "summary": string,
  "contractType": string,
  "parties": [{"name": string, "role": string}],
  "keyDates": [{"label": string, "date": string}],
  "obligations": [{"party": string, "description": string}],
  "risks": [{"severity": "low"|"medium"|"high", "clause": string, "explanation": string}],
  "recommendations": [string],
  "riskScore": number between 0 and 100
}
Use empty arrays when nothing applies. Dates use ISO 8601 when the document states them.`
)

// contentPart is one element of a multi-part chat message.
type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

func textMessages(fileName, text string) []chatMessage {
	return []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("%s\n\nFile name: %s\n\nContract text:\n%s", schemaPrompt, fileName, text)},
	}
}

func imageMessages(fileName, contentType string, data []byte) []chatMessage {
	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	return []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: []contentPart{
			{Type: "text", Text: fmt.Sprintf("%s\n\nFile name: %s\n\nThe contract is the attached image.", schemaPrompt, fileName)},
			{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
		}},
	}
}

func fixMessages(raw []byte) []chatMessage {
	return []chatMessage{
		{Role: "system", Content: systemPromptFixJSON},
		{Role: "user", Content: fmt.Sprintf("%s\n\nFix this JSON to match the schema exactly. Output JSON only:\n%s", schemaPrompt, string(raw))},
	}
}
