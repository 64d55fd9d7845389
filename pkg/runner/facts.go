package runner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/changelens/impact-engine/pkg/model"
)

// factsDoc is the envelope form of a facts file, matching the HTTP submit
// body.
type factsDoc struct {
	Records []model.FileFacts `json:"records"`
}

// LoadFactsFile reads fact records from a JSON file. Both the envelope
// form {"records": [...]} and a bare top-level array are accepted.
func LoadFactsFile(path string) ([]model.FileFacts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read facts file: %w", err)
	}
	return ParseFacts(data)
}

// ParseFacts decodes fact records from raw JSON.
func ParseFacts(data []byte) ([]model.FileFacts, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty facts document")
	}

	if trimmed[0] == '[' {
		var records []model.FileFacts
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("failed to parse facts array: %w", err)
		}
		return records, nil
	}

	var doc factsDoc
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse facts document: %w", err)
	}
	return doc.Records, nil
}
