// Package fileops applies model-proposed file operations to a project tree
// with traversal guards, protected files, and automatic backups.
package fileops

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Operation types accepted in an envelope.
const (
	OpCreateFile      = "create_file"
	OpModifyFile      = "modify_file"
	OpCreateDirectory = "create_directory"
)

// Modification types accepted for modify_file operations.
const (
	ModReplace      = "replace"
	ModInsertAtLine = "insert_at_line"
	ModAppend       = "append"
	ModPrepend      = "prepend"
)

// ParseError reports a structurally invalid operations response.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid operations response: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("invalid operations response: %s", e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Modification is one edit within a modify_file operation.
type Modification struct {
	Type       string `json:"type"`
	OldText    string `json:"old_text,omitempty"`
	NewText    string `json:"new_text,omitempty"`
	LineNumber int    `json:"line_number,omitempty"`
}

// Operation is one file action proposed by the model.
type Operation struct {
	Type          string         `json:"type"`
	Path          string         `json:"path"`
	Content       string         `json:"content,omitempty"`
	Modifications []Modification `json:"modifications,omitempty"`
}

// Envelope is the structured response wrapping proposed operations.
type Envelope struct {
	Analysis    string      `json:"analysis"`
	Operations  []Operation `json:"operations"`
	Explanation string      `json:"explanation"`
}

// fileOperationKeywords route a request to the file-operation workflow
// instead of question answering.
var fileOperationKeywords = []string{
	"create", "generate", "add", "implement", "build", "make",
	"file", "package", "handler", "service", "endpoint",
	"modify", "update", "change", "fix", "refactor",
}

// LooksLikeFileOperation reports whether a request reads like it wants
// files created or changed rather than a question answered.
func LooksLikeFileOperation(question string) bool {
	lower := strings.ToLower(question)
	for _, kw := range fileOperationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ParseOperations decodes a model response into a validated Envelope.
// Markdown code fences around the JSON are tolerated; anything else that
// deviates from the schema is a *ParseError rather than a best-effort guess.
func ParseOperations(raw string) (*Envelope, error) {
	body := stripFences(strings.TrimSpace(raw))
	if body == "" {
		return nil, &ParseError{Msg: "empty response"}
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()

	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return nil, &ParseError{Msg: "malformed JSON", Err: err}
	}
	if err := env.validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

func (env *Envelope) validate() error {
	if len(env.Operations) == 0 {
		return &ParseError{Msg: "no operations"}
	}
	for i, op := range env.Operations {
		if op.Path == "" {
			return &ParseError{Msg: fmt.Sprintf("operation %d has no path", i)}
		}
		switch op.Type {
		case OpCreateFile:
			if len(op.Modifications) > 0 {
				return &ParseError{Msg: fmt.Sprintf("operation %d: create_file cannot carry modifications", i)}
			}
		case OpModifyFile:
			if len(op.Modifications) == 0 {
				return &ParseError{Msg: fmt.Sprintf("operation %d: modify_file has no modifications", i)}
			}
			for j, mod := range op.Modifications {
				switch mod.Type {
				case ModReplace, ModInsertAtLine, ModAppend, ModPrepend:
				default:
					return &ParseError{Msg: fmt.Sprintf("operation %d modification %d: unknown type %q", i, j, mod.Type)}
				}
			}
		case OpCreateDirectory:
		default:
			return &ParseError{Msg: fmt.Sprintf("operation %d: unknown type %q", i, op.Type)}
		}
	}
	return nil
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
