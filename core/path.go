package modkit

import "strings"

// NormalizeArchive converts a user-provided archive name to the form the
// ledger records: forward slashes, no leading or trailing slash, no empty
// or "." segments.
//
//   - "/data0.idx" → "data0.idx"
//   - `LINKDATA\LINKDATA.IDX` → "LINKDATA/LINKDATA.IDX"
//   - "./a//b.idx/" → "a/b.idx"
//
// ".." segments are kept; archive names never leave the install folder
// because they are only matched against recorded names.
func NormalizeArchive(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	parts := strings.Split(name, "/")
	result := parts[:0] // reuse backing array
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}
	return strings.Join(result, "/")
}
