package newick

import (
	"os"
	"strings"

	"github.com/canopyviz/canopy/pkg/errors"
)

// ReadInput resolves pathOrText: an existing file is read, anything else is
// taken as literal Newick text. Only the first tree of a multi-tree input is
// returned, terminated with ';'.
func ReadInput(pathOrText string) (string, error) {
	text := pathOrText
	if info, err := os.Stat(pathOrText); err == nil && !info.IsDir() {
		data, err := os.ReadFile(pathOrText)
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", pathOrText)
		}
		text = string(data)
	}
	return FirstTree(text)
}

// FirstTree returns the first non-empty ';'-separated tree in text.
func FirstTree(text string) (string, error) {
	for part := range strings.SplitSeq(text, ";") {
		if part = strings.TrimSpace(part); part != "" {
			return part + ";", nil
		}
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "no Newick tree found")
}
