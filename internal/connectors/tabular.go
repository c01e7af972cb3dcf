package connectors

import (
	"bytes"
	"encoding/json"
	"sort"

	"productimport/internal/rules"
)

// TabularData is a parsed spreadsheet: a header row plus one map per data
// row keyed by header.
type TabularData struct {
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
}

// Row decodes leniently: numbers and booleans in an uploaded sheet become
// their text form, nested values are dropped.
type Row map[string]string

func (r *Row) UnmarshalJSON(b []byte) error {
	var raw map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	row := make(Row, len(raw))
	for k, v := range raw {
		if s, ok := rules.Stringify(v); ok {
			row[k] = s
		}
	}
	*r = row
	return nil
}

// Maps returns the rows as plain maps.
func (d TabularData) Maps() []map[string]string {
	out := make([]map[string]string, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r
	}
	return out
}

// applyMappings copies each mapped source key onto its target key. Keys
// are visited in sorted order so chained mappings resolve the same way on
// every run.
func applyMappings[V interface{}](rec map[string]V, mappings map[string]string) map[string]V {
	if len(mappings) == 0 {
		return rec
	}
	out := make(map[string]V, len(rec)+len(mappings))
	for k, v := range rec {
		out[k] = v
	}
	sources := make([]string, 0, len(mappings))
	for src := range mappings {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		dst := mappings[src]
		if dst == "" {
			continue
		}
		if v, ok := rec[src]; ok {
			out[dst] = v
		}
	}
	return out
}
