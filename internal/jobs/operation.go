package jobs

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Operation identifies the kind of transformation a job performs.
type Operation string

const (
	OpMerge     Operation = "merge"
	OpCaption   Operation = "caption"
	OpAddAudio  Operation = "add-audio"
	OpWatermark Operation = "watermark"
	OpOverlay   Operation = "overlay"
	OpRemux     Operation = "remux"
)

// Operations returns the closed set of supported operations.
func Operations() []Operation {
	return []Operation{OpMerge, OpCaption, OpAddAudio, OpWatermark, OpOverlay, OpRemux}
}

// ParseOperation canonicalizes a wire value into an Operation. Underscore
// spellings are accepted for compatibility with older clients.
func ParseOperation(value string) (Operation, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	switch Operation(normalized) {
	case OpMerge, OpCaption, OpAddAudio, OpWatermark, OpOverlay, OpRemux:
		return Operation(normalized), nil
	}
	return "", fmt.Errorf("unsupported operation %q", value)
}

// Async reports whether the operation may be queued. Remux is always
// executed synchronously.
func (o Operation) Async() bool {
	return o != OpRemux && o != ""
}

// TransformLabel returns the in-progress status label the operation's
// transform stage writes. Merge keeps its historical label; remux never
// writes status records.
func (o Operation) TransformLabel() string {
	switch o {
	case OpMerge:
		return "merging"
	case OpRemux:
		return ""
	default:
		return "transforming"
	}
}

var titleCaser = cases.Title(language.English)

// DisplayName returns a human-friendly label for tables and notifications.
func (o Operation) DisplayName() string {
	return titleCaser.String(strings.ReplaceAll(string(o), "-", " "))
}

func (o Operation) String() string {
	return string(o)
}
