package pipeline

import (
	"fmt"
	"strings"
)

// Focused-context sizes, in estimated units, for each prompt kind. Planning
// and answering get a wider view than the final synthesis pass.
const (
	planContextUnits      = 800
	answerContextUnits    = 800
	synthesisContextUnits = 600
)

func planPrompt(question, projectContext string) string {
	var b strings.Builder
	b.WriteString("You are an experienced engineer helping to plan a development task.\n\n")
	b.WriteString("PROJECT CONTEXT:\n")
	b.WriteString(projectContext)
	b.WriteString("\n\nGiven this request, break it down into 2-4 focused sub-questions that would help retrieve relevant code examples and implement the solution.\n\n")
	b.WriteString("Consider:\n")
	b.WriteString("- What existing patterns in the codebase are relevant?\n")
	b.WriteString("- What components need to be created or modified?\n")
	b.WriteString("- What architectural concerns need to be addressed?\n\n")
	fmt.Fprintf(&b, "Request: %s\n\n", question)
	b.WriteString("Respond with a numbered list of specific, actionable sub-questions.\n")
	return b.String()
}

func answerPrompt(projectContext, retrievedCode, question string) string {
	var b strings.Builder
	b.WriteString("You are a senior engineer working on this specific project. Use the project context and retrieved code examples to provide accurate, project-specific solutions.\n\n")
	b.WriteString("PROJECT CONTEXT:\n")
	b.WriteString(projectContext)
	b.WriteString("\n\nRETRIEVED CODE EXAMPLES:\n")
	b.WriteString(retrievedCode)
	b.WriteString("\n\nQUESTION:\n")
	b.WriteString(question)
	b.WriteString("\n\nInstructions:\n")
	b.WriteString("- Follow the existing project structure and naming conventions\n")
	b.WriteString("- Use the same package structure and architectural patterns\n")
	b.WriteString("- Reference specific files from the project when relevant\n")
	b.WriteString("- Provide complete, working code that fits the project's style\n")
	return b.String()
}

func fileOpPrompt(projectContext, retrievedCode, question, currentFileContent string) string {
	var b strings.Builder
	b.WriteString("You are a senior engineer helping to create or modify files in this project.\n\n")
	b.WriteString("PROJECT CONTEXT:\n")
	b.WriteString(projectContext)
	b.WriteString("\n\nRETRIEVED CODE EXAMPLES:\n")
	b.WriteString(retrievedCode)
	b.WriteString("\n\nUSER REQUEST:\n")
	b.WriteString(question)
	b.WriteString("\n\nCURRENT FILE CONTENT (if modifying an existing file):\n")
	b.WriteString(currentFileContent)
	b.WriteString("\n\nInstructions:\n")
	b.WriteString("1. Analyze the request and determine whether it requires creating a new file, modifying an existing file, or creating directories\n")
	b.WriteString("2. Follow the project's existing patterns and conventions\n")
	b.WriteString("3. Respond with JSON only, in this exact format:\n\n")
	b.WriteString(`{
  "analysis": "brief explanation of what needs to be done",
  "operations": [
    {
      "type": "create_file|modify_file|create_directory",
      "path": "relative/path/to/file",
      "content": "full file content for create_file",
      "modifications": [
        {
          "type": "replace|insert_at_line|append|prepend",
          "old_text": "text to replace (for replace)",
          "new_text": "new text to insert",
          "line_number": 10
        }
      ]
    }
  ],
  "explanation": "detailed explanation of the solution"
}`)
	b.WriteString("\n\nOnly include the modifications field for modify_file operations.\n")
	b.WriteString("Only include the content field for create_file operations.\n")
	return b.String()
}

func synthesisPrompt(projectContext, subAnswers string) string {
	var b strings.Builder
	b.WriteString("Synthesize these project-specific answers into one comprehensive solution:\n\n")
	b.WriteString("PROJECT CONTEXT:\n")
	b.WriteString(projectContext)
	b.WriteString("\n\nSUB-ANSWERS:\n")
	b.WriteString(subAnswers)
	b.WriteString("\n\nProvide a clear, actionable solution that follows the project's patterns and conventions.\n")
	return b.String()
}
