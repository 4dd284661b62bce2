// Package export writes a session's staged rows for offline review as JSON,
// YAML or an Excel workbook.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/troopkit/rostersync/internal/types"
)

// Format is an export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts a format name or a file name and returns its format.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if ext := filepath.Ext(name); ext != "" {
		name = ext[1:]
	}
	switch name {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// Counts tallies rows by change type.
type Counts struct {
	Total    int `json:"total" yaml:"total"`
	Creates  int `json:"creates" yaml:"creates"`
	Updates  int `json:"updates" yaml:"updates"`
	Skips    int `json:"skips" yaml:"skips"`
	Selected int `json:"selected" yaml:"selected"`
}

// Document is the exported review of one session.
type Document struct {
	SessionID  string               `json:"sessionId" yaml:"session_id"`
	UnitID     string               `json:"unitId" yaml:"unit_id"`
	Status     types.SessionStatus  `json:"status" yaml:"status"`
	Source     string               `json:"source" yaml:"source"`
	ExportedAt time.Time            `json:"exportedAt" yaml:"exported_at"`
	Counts     Counts               `json:"counts" yaml:"counts"`
	Rows       []types.StagedMember `json:"rows" yaml:"rows"`
}

// NewDocument builds the export of sess with its staged rows.
func NewDocument(sess *types.SyncSession, rows []types.StagedMember) *Document {
	doc := &Document{
		SessionID:  sess.ID,
		UnitID:     sess.UnitID,
		Status:     sess.Status,
		Source:     sess.Source,
		ExportedAt: time.Now().UTC(),
		Rows:       rows,
	}
	if doc.Rows == nil {
		doc.Rows = []types.StagedMember{}
	}
	for _, r := range rows {
		doc.Counts.Total++
		switch r.ChangeType {
		case types.ChangeCreate:
			doc.Counts.Creates++
		case types.ChangeUpdate:
			doc.Counts.Updates++
		case types.ChangeSkip:
			doc.Counts.Skips++
		}
		if r.IsSelected {
			doc.Counts.Selected++
		}
	}
	return doc
}

// Write encodes doc to w in the given format.
func Write(w io.Writer, f Format, doc *Document) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, doc)
	case FormatYAML:
		return WriteYAML(w, doc)
	case FormatXLSX:
		return WriteXLSX(w, doc)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

// WriteJSON writes doc as indented JSON.
func WriteJSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}

// WriteYAML writes doc as YAML.
func WriteYAML(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

// changeSummary renders a diff as "field: old -> new" lines in field order.
func changeSummary(changes map[string]types.FieldChange) string {
	if len(changes) == 0 {
		return ""
	}
	fields := make([]string, 0, len(changes))
	for f := range changes {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('\n')
		}
		c := changes[f]
		fmt.Fprintf(&b, "%s: %s -> %s", f, c.Old, c.New)
	}
	return b.String()
}
