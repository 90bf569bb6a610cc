package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// printJobOutcome renders an inline response for humans. The gateway
// returns either a status document or a remux envelope; remux bodies
// have no status field.
func printJobOutcome(out io.Writer, payload map[string]any) {
	rows := buildDocumentRows(payload)
	if _, ok := payload["status"]; !ok {
		rows = buildRemuxRows(payload)
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "No job details returned")
		return
	}
	table := renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft})
	fmt.Fprintln(out, table)
}

func buildDocumentRows(payload map[string]any) [][]string {
	var rows [][]string
	appendRow := func(field, value string) {
		if value != "" {
			rows = append(rows, []string{field, value})
		}
	}

	appendRow("Job", stringField(payload, "job_id"))
	appendRow("Operation", stringField(payload, "operation"))
	appendRow("Status", formatStatusLabel(stringField(payload, "status")))
	if progress, ok := payload["progress"].(float64); ok {
		appendRow("Progress", fmt.Sprintf("%.1f%%", progress))
	}
	appendRow("Message", stringField(payload, "message"))
	appendRow("Error", stringField(payload, "error"))
	appendRow("Created", formatDisplayTime(stringField(payload, "created_at")))
	appendRow("Updated", formatDisplayTime(stringField(payload, "updated_at")))

	if metadata, ok := payload["metadata"].(map[string]any); ok && len(metadata) > 0 {
		keys := make([]string, 0, len(metadata))
		for key := range metadata {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			appendRow(formatStatusLabel(key), fmt.Sprint(metadata[key]))
		}
	}
	return rows
}

func buildRemuxRows(payload map[string]any) [][]string {
	var rows [][]string
	appendRow := func(field, value string) {
		if value != "" {
			rows = append(rows, []string{field, value})
		}
	}

	appendRow("Operation", stringField(payload, "operation"))
	appendRow("Input", objectRef(payload, "input"))
	appendRow("Output", objectRef(payload, "output"))
	appendRow("Error", stringField(payload, "error"))
	return rows
}

func objectRef(payload map[string]any, key string) string {
	obj, ok := payload[key].(map[string]any)
	if !ok {
		return ""
	}
	bucket := stringField(obj, "bucket")
	objectKey := stringField(obj, "key")
	if bucket == "" && objectKey == "" {
		return ""
	}
	return bucket + "/" + objectKey
}

func formatStatusLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	parts := strings.Split(value, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04:05")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04:05")
	}
	return value
}
