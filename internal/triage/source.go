package triage

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// readSource returns up to max bytes of the test file. Unreadable files
// produce a placeholder comment so the prompt still has a code block.
func readSource(path string, max int64) string {
	if path == "" {
		return "// source unavailable: test file path not reported"
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Sprintf("// source unavailable: %v", err)
	}
	defer f.Close()

	if max <= 0 {
		max = defaultMaxSourceBytes
	}
	data, err := io.ReadAll(io.LimitReader(f, max+1))
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Sprintf("// source unavailable: %v", err)
	}
	if int64(len(data)) > max {
		return string(data[:max]) + fmt.Sprintf("\n// ... truncated at %d bytes", max)
	}
	return string(data)
}
