package hrsip

import (
	"encoding/csv"
	"strings"
)

// ReadHeader returns the header row of a delimited table. Preamble lines such
// as "# Constructed from biom file" are skipped, a UTF-8 byte order mark is
// dropped, and the leading '#' of QIIME-style headers ("#SampleID",
// "#OTU ID") is removed. cr must allow a variable number of fields. An empty
// table yields io.EOF.
func ReadHeader(cr *csv.Reader) ([]string, error) {
	for {
		rec, err := cr.Read()
		if err != nil {
			return nil, err
		}

		// Some tools write a UTF-8 byte order mark ahead of the first column
		rec[0] = strings.TrimPrefix(rec[0], "\ufeff")

		if isPreamble(rec) {
			continue
		}

		header := make([]string, len(rec))
		for k := range rec {
			header[k] = strings.TrimSpace(rec[k])
		}
		header[0] = strings.TrimSpace(strings.TrimPrefix(header[0], "#"))

		return header, nil
	}
}

// isPreamble recognizes comment lines ahead of the header: a lone '#' field or
// one starting with "# ".
func isPreamble(rec []string) bool {
	first := strings.TrimSpace(rec[0])
	if !strings.HasPrefix(first, "#") {
		return false
	}
	return len(rec) == 1 || first == "#" || strings.HasPrefix(first, "# ")
}

// IsComment reports whether a record after the header is a comment line.
func IsComment(rec []string) bool {
	return len(rec) > 0 && strings.HasPrefix(strings.TrimSpace(rec[0]), "#")
}
