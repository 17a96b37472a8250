package apply

import "bytes"

// sniffLen bounds how much of a file is examined for binary detection.
const sniffLen = 8000

// isBinary reports whether data looks like a binary file. A null byte in
// the leading window is the signal; text sources never contain one.
func isBinary(data []byte) bool {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}
