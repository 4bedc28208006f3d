package dataassets

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Payload-encoded string framing used by the host: a macro is
// [macroStart type length payload... macroEnd]. Plain bytes outside a
// macro are UTF-8 text.
const (
	macroStart byte = 0x02
	macroEnd   byte = 0x03

	// macro types the decoder understands; everything else is stripped
	macroSheetRef byte = 0x49
	macroNewline  byte = 0x10
)

// StringDecoder decodes payload-encoded strings, resolving sheet
// references against the data tables.
type StringDecoder struct {
	store *Store
}

// NewStringDecoder builds a decoder over loaded data tables
func NewStringDecoder(store *Store) (*StringDecoder, error) {
	if store == nil {
		return nil, fmt.Errorf("string decoder: data tables not loaded")
	}
	return &StringDecoder{store: store}, nil
}

// Decode converts an encoded byte sequence to display text. Unknown
// macros are dropped; a sheet reference is replaced by the referenced
// row's text, or by nothing when the row does not exist. A truncated
// macro terminates decoding at the last complete element.
func (d *StringDecoder) Decode(encoded []byte) string {
	var sb strings.Builder

	for i := 0; i < len(encoded); {
		b := encoded[i]
		if b != macroStart {
			sb.WriteByte(b)
			i++
			continue
		}

		// need at least type, length and the end marker
		if i+2 >= len(encoded) {
			break
		}
		macroType := encoded[i+1]
		length := int(encoded[i+2])
		payloadStart := i + 3
		payloadEnd := payloadStart + length
		if payloadEnd >= len(encoded) || encoded[payloadEnd] != macroEnd {
			break
		}

		switch macroType {
		case macroNewline:
			sb.WriteByte('\n')
		case macroSheetRef:
			d.writeSheetRef(&sb, encoded[payloadStart:payloadEnd])
		}

		i = payloadEnd + 1
	}

	return sb.String()
}

// writeSheetRef resolves a sheet reference payload:
// [nameLen][name bytes][row uint16 big-endian].
func (d *StringDecoder) writeSheetRef(sb *strings.Builder, payload []byte) {
	if len(payload) < 1 {
		return
	}
	nameLen := int(payload[0])
	if len(payload) < 1+nameLen+2 {
		return
	}
	name := string(payload[1 : 1+nameLen])
	row := uint32(binary.BigEndian.Uint16(payload[1+nameLen : 1+nameLen+2]))

	if text, ok := d.store.Lookup(name, row); ok {
		sb.WriteString(text)
	}
}
