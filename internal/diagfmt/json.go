package diagfmt

import (
	"encoding/json"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// JSON writes out as indented JSON.
func JSON(w io.Writer, out ReportOutput) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// MsgPack writes out as MessagePack using the JSON field names.
func MsgPack(w io.Writer, out ReportOutput) error {
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	return enc.Encode(out)
}
