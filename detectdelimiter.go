package hrsip

import (
	"bytes"
	"io"

	"github.com/csimplestring/go-csv/detector"
)

// sniffBytes bounds how much of a table the delimiter detector looks at.
const sniffBytes = 64 * 1024

// DetermineDelimiter returns the single most likely rune that would delimit the
// values in the reader, assuming a CSV-like file.
func DetermineDelimiter(r io.Reader) rune {
	d := detector.New()
	delimiters := d.DetectDelimiter(r, '"')

	if len(delimiters) > 0 {
		return rune(delimiters[0][0])
	}

	return ','
}

// DetermineDelimiterBytes is DetermineDelimiter over an in-memory table. Only
// the first few lines are inspected. A file whose header has tabs but no
// commas is treated as tab-delimited without consulting the detector, since
// single-row files give the detector too little to go on.
func DetermineDelimiterBytes(data []byte) rune {
	head := data
	if len(head) > sniffBytes {
		head = head[:sniffBytes]
	}

	firstLine := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		firstLine = head[:i]
	}
	if bytes.IndexByte(firstLine, '\t') >= 0 && bytes.IndexByte(firstLine, ',') < 0 {
		return '\t'
	}

	return DetermineDelimiter(bytes.NewReader(head))
}
