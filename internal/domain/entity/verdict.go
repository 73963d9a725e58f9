package entity

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// VerdictClass is the classifier outcome for one pack.
type VerdictClass int

const (
	VerdictGood VerdictClass = iota // pack is fine
	VerdictBad                      // defective pack
	VerdictNone                     // nothing to classify or no answer
)

// String returns the class label.
func (c VerdictClass) String() string {
	switch c {
	case VerdictGood:
		return "good"
	case VerdictBad:
		return "bad"
	case VerdictNone:
		return "none"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c VerdictClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *VerdictClass) UnmarshalText(text []byte) error {
	v, err := ParseVerdictClass(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseVerdictClass parses a label produced by String.
func ParseVerdictClass(s string) (VerdictClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "good":
		return VerdictGood, nil
	case "bad":
		return VerdictBad, nil
	case "none":
		return VerdictNone, nil
	default:
		return VerdictNone, fmt.Errorf("unknown verdict class %q", s)
	}
}

// Verdict is the classification of one triggered pack.
type Verdict struct {
	Class      VerdictClass `json:"class"`
	Confidence float64      `json:"confidence"` // in [0, 1]
}

// NoVerdict is substituted when the classifier cannot answer.
func NoVerdict() Verdict {
	return Verdict{Class: VerdictNone}
}

// ParseVerdict decodes a classifier reply: "<index>" or "<index> <confidence>".
// A reply without confidence is taken as fully confident.
func ParseVerdict(token string) (Verdict, error) {
	fields := strings.Fields(token)
	if len(fields) == 0 || len(fields) > 2 {
		return NoVerdict(), fmt.Errorf("malformed verdict %q", token)
	}

	idx, err := strconv.Atoi(fields[0])
	if err != nil {
		return NoVerdict(), fmt.Errorf("malformed verdict index %q: %w", fields[0], err)
	}
	class := VerdictClass(idx)
	if class < VerdictGood || class > VerdictNone {
		return NoVerdict(), fmt.Errorf("verdict index %d out of range", idx)
	}

	confidence := 1.0
	if len(fields) == 2 {
		confidence, err = strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return NoVerdict(), fmt.Errorf("malformed verdict confidence %q: %w", fields[1], err)
		}
		if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
			return NoVerdict(), fmt.Errorf("verdict confidence %v out of range", confidence)
		}
	}

	return Verdict{Class: class, Confidence: confidence}, nil
}

// Token encodes the verdict the way the classifier sends it.
func (v Verdict) Token() string {
	return strconv.Itoa(int(v.Class)) + " " + strconv.FormatFloat(v.Confidence, 'f', 4, 64)
}
