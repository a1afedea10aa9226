// Package output renders OutputRecord for consumers: a JSON string with
// an ordered key set, and a separator-delimited tabular line following a
// driver's default_fields order.
package output

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/serebryakov7/wmbusmeters/common"
)

// JSON serializes rec into an object with a fixed key order: media,
// meter, name, id, then the driver's fields in rec.Fields order, then
// status and timestamp. Built by hand rather than via encoding/json
// because the set and order of field keys is driver-specific and unknown
// to any static type ahead of time.
func JSON(rec *common.OutputRecord) []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	writeKV(&buf, "media", quote(rec.Media))
	writeKV(&buf, "meter", quote(rec.Meter))
	writeKV(&buf, "name", quote(rec.Name))
	writeKV(&buf, "id", quote(rec.ID))
	for _, f := range rec.Fields {
		if f.IsText {
			writeKV(&buf, f.Name, quote(f.Text))
		} else {
			writeKV(&buf, f.Name, strconv.FormatFloat(f.Number, 'g', -1, 64))
		}
	}
	writeKV(&buf, "status", quote(rec.Status))
	last(&buf, "timestamp", quote(rec.Timestamp))
	buf.WriteByte('}')
	return buf.Bytes()
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

func writeKV(buf *bytes.Buffer, key, jsonValue string) {
	fmt.Fprintf(buf, "%q:%s,", key, jsonValue)
}

func last(buf *bytes.Buffer, key, jsonValue string) {
	fmt.Fprintf(buf, "%q:%s", key, jsonValue)
}

// Tabular renders rec as a separator-joined line following defaultFields
// order, falling back to a marked placeholder for any name not present
// in rec.
func Tabular(rec *common.OutputRecord, defaultFields []string, separator byte) string {
	lookup := map[string]string{
		"name":      rec.Name,
		"id":        rec.ID,
		"timestamp": rec.Timestamp,
	}
	for _, f := range rec.Fields {
		if f.IsText {
			lookup[f.Name] = f.Text
		} else {
			lookup[f.Name] = strconv.FormatFloat(f.Number, 'f', -1, 64)
		}
	}

	parts := make([]string, 0, len(defaultFields))
	for _, name := range defaultFields {
		v, ok := lookup[name]
		if !ok {
			v = fmt.Sprintf("?%s?", name)
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, string(separator))
}
