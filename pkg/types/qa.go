// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// QAPair is one question and its answer.
type QAPair struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// QAResult is the ordered question -> answer mapping produced for one paper,
// or a single error message. Its JSON form is an ordered object; the error
// form is {"error": "..."} so callers can always render one shape.
type QAResult struct {
	Pairs []QAPair
	Error string
}

// ErrorResult returns a result carrying only an error message.
func ErrorResult(msg string) QAResult {
	return QAResult{Error: msg}
}

// IsError reports whether the result is the error shape.
func (r QAResult) IsError() bool {
	return r.Error != ""
}

// Answer returns the answer recorded for question.
func (r QAResult) Answer(question string) (string, bool) {
	for _, p := range r.Pairs {
		if p.Question == question {
			return p.Answer, true
		}
	}
	return "", false
}

// MarshalJSON writes the pairs as an ordered JSON object.
func (r QAResult) MarshalJSON() ([]byte, error) {
	if r.IsError() {
		return json.Marshal(map[string]string{"error": r.Error})
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range r.Pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(p.Question)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.Answer)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an ordered JSON object of string values. An object
// whose only key is "error" becomes the error shape.
func (r *QAResult) UnmarshalJSON(data []byte) error {
	var pairs []QAPair
	err := decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		var answer string
		if err := json.Unmarshal(raw, &answer); err != nil {
			return fmt.Errorf("answer for %q: %w", key, err)
		}
		pairs = append(pairs, QAPair{Question: key, Answer: answer})
		return nil
	})
	if err != nil {
		return err
	}
	if len(pairs) == 1 && pairs[0].Question == "error" {
		*r = ErrorResult(pairs[0].Answer)
		return nil
	}
	*r = QAResult{Pairs: pairs}
	return nil
}

// Progress is the position of an in-flight Q&A run.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// RunProgress describes an in-flight pipeline run for polling clients.
type RunProgress struct {
	Running bool   `json:"running"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}
