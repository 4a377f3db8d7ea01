package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"robopilot/internal/models"
)

// LoadContext reads a session log file and returns its transcript together
// with the token usage recorded in the closing summary (0 when the log was
// never closed).
func LoadContext(path string) (*Transcript, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read session log: %w", err)
	}

	elems, err := decodeArray(data)
	if err != nil {
		return nil, 0, fmt.Errorf("parse session log %s: %w", path, err)
	}

	used := 0
	if n := len(elems); n > 0 {
		var probe struct {
			Role       string `json:"role"`
			UsedTokens *int   `json:"used_tokens"`
		}
		if err := json.Unmarshal(elems[n-1], &probe); err == nil && probe.Role == "" && probe.UsedTokens != nil {
			used = *probe.UsedTokens
			elems = elems[:n-1]
		}
	}

	msgs := make([]models.Message, 0, len(elems))
	for i, raw := range elems {
		var m models.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, 0, fmt.Errorf("session log %s: element %d: %w", path, i, err)
		}
		msgs = append(msgs, m)
	}

	t, err := FromMessages(msgs)
	if err != nil {
		return nil, 0, fmt.Errorf("session log %s: %w", path, err)
	}
	return t, used, nil
}

// decodeArray accepts a complete JSON array or one whose closing bracket is
// missing because the writer never closed it.
func decodeArray(data []byte) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	var elems []json.RawMessage
	err := json.Unmarshal(data, &elems)
	if err == nil {
		return elems, nil
	}
	if bytes.HasSuffix(data, []byte(",")) {
		data = data[:len(data)-1]
	}
	patched := append(append([]byte{}, data...), ']')
	if perr := json.Unmarshal(patched, &elems); perr == nil {
		return elems, nil
	}
	return nil, err
}
