package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	JSON  = "json"
	EDN   = "edn"
	Table = "table"
)

func Formats() []string { return []string{JSON, EDN, Table} }

// Tabler is implemented by payloads that have a table rendering.
type Tabler interface {
	Table() Grid
}

// Write writes v in the requested format. Table output needs v to implement Tabler.
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", JSON:
		return WriteJSON(w, v, pretty)
	case EDN:
		return WriteEDN(w, v, pretty)
	case Table:
		t, ok := v.(Tabler)
		if !ok {
			return fmt.Errorf("table output is not available here (use %s or %s)", JSON, EDN)
		}
		return WriteGrid(w, t.Table())
	default:
		return fmt.Errorf("unknown format %q (want one of %s)", format, strings.Join(Formats(), ", "))
	}
}

// WriteJSON writes strict JSON, one document per call.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var (
		b   []byte
		err error
	)
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
