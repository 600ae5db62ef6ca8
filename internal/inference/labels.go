package inference

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LoadLabels reads the class names for the model. Supported formats:
//   - a Hugging Face config.json with an "id2label" object
//   - a JSON array of strings
//   - a text file with one label per line
func LoadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}

	var labels []string
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '{':
		labels, err = parseID2Label(trimmed)
	case len(trimmed) > 0 && trimmed[0] == '[':
		err = json.Unmarshal(trimmed, &labels)
	case strings.EqualFold(filepath.Ext(path), ".json"):
		err = errors.New("expected a JSON object or array")
	default:
		labels = parseLines(trimmed)
	}
	if err != nil {
		return nil, fmt.Errorf("parse labels %s: %w", path, err)
	}
	if len(labels) < TopK {
		return nil, fmt.Errorf("labels %s: need at least %d classes, found %d", path, TopK, len(labels))
	}
	for i, label := range labels {
		if strings.TrimSpace(label) == "" {
			return nil, fmt.Errorf("labels %s: class %d has an empty name", path, i)
		}
	}
	return labels, nil
}

func parseID2Label(data []byte) ([]string, error) {
	var payload struct {
		ID2Label map[string]string `json:"id2label"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if len(payload.ID2Label) == 0 {
		return nil, errors.New("id2label is missing or empty")
	}
	labels := make([]string, len(payload.ID2Label))
	for key, label := range payload.ID2Label {
		idx, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("id2label key %q is not an integer", key)
		}
		if idx < 0 || idx >= len(labels) {
			return nil, fmt.Errorf("id2label key %d outside 0..%d", idx, len(labels)-1)
		}
		labels[idx] = label
	}
	return labels, nil
}

func parseLines(data []byte) []string {
	var labels []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		labels = append(labels, line)
	}
	return labels
}
