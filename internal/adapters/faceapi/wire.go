package faceapi

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
)

type loadRequest struct {
	Models []string `json:"models"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type detectResponse struct {
	Detections []wireDetection `json:"detections"`
	Error      string          `json:"error,omitempty"`
}

type wireDetection struct {
	Score       float64     `json:"score"`
	Expressions expressions `json:"expressions"`
}

// expressions decodes a label→probability object keeping the key order the
// sidecar emitted it in. The dominant-mood tie-break depends on that order.
type expressions struct {
	sample domain.ExpressionSample
}

func (e expressions) Sample() domain.ExpressionSample { return e.sample }

func (e *expressions) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		e.sample = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.Newf("expressions: expected object, got %v", tok)
	}

	sample := domain.ExpressionSample{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return errors.Newf("expressions: unexpected key %v", keyTok)
		}
		var p float64
		if err := dec.Decode(&p); err != nil {
			return errors.Wrapf(err, "expressions: value for %q", key)
		}
		sample = append(sample, domain.Expression{
			Label:       domain.Mood(strings.ToLower(strings.TrimSpace(key))),
			Probability: p,
		})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	e.sample = sample
	return nil
}
