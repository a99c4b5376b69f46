package handlers

import "encoding/json"

// marshalNote renders the diagnostic payload written into placeholder
// artifacts, indented for human inspection during development.
func marshalNote(note map[string]any) ([]byte, error) {
	note["generated_by"] = "ifcjobs-worker"
	return json.MarshalIndent(note, "", "  ")
}
