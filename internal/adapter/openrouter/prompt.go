package openrouter

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/avesafe/taskpilot/internal/port/oracle"
)

// extractTextLimit bounds the document text sent for task extraction.
const extractTextLimit = 15000

const classifyTemplate = `
You are an AI Task Optimization Engine.

Analyze the tasks.
Priority Rules:
Overdue = Critical
Due Today = High
1-2 Days Left = High
3-5 Days Left = Medium
>5 Days = Low
No deadline = Low

Return strictly valid JSON.
IMPORTANT: You must include EVERY task from the input list in the output JSON, even if priority is Low. Do not skip any tasks.

Tasks:
%s

JSON Structure:
{
  "reorderedTasks": [
    {
      "id": "task_id",
      "priority": "Critical/High/Medium/Low",
      "confidence": 85,
      "reason": "Max 5 words."
    }
  ],
  "summary": "Max 2 sentences executive summary."
}
`

// classifyPrompt renders the priority-classification prompt. The task
// contexts carry truncated titles and urgency labels only, never full
// descriptions.
func classifyPrompt(tasks []oracle.TaskContext) (string, error) {
	payload, err := json.Marshal(tasks)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(classifyTemplate, payload), nil
}

const extractTemplate = `
You are an AI Task Extractor.
Analyze the following document text and extract actionable tasks.

Return a strict JSON object with a "tasks" key containing an array of objects.
Each object must have:
- title: (string) Clear task name
- description: (string) Brief details
- deadline: (string) YYYY-MM-DD format if mentioned, else null

Text to analyze:
%s
`

// extractPrompt renders the task-extraction prompt over at most
// extractTextLimit bytes of the source text, cut on a rune boundary.
func extractPrompt(text string) string {
	if len(text) > extractTextLimit {
		cut := extractTextLimit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return fmt.Sprintf(extractTemplate, text)
}
