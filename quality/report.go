package quality

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	c "github.com/healthpulse/healthpulse/constants"
)

// Report is the full outcome of a quality run.
type Report struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Passed      bool      `json:"passed"`
	Checks      []Check   `json:"checks"`
}

func (r *Report) Add(chk Check) {
	r.Checks = append(r.Checks, chk)
	if !chk.Passed {
		r.Passed = false
	}
}

// Save writes the report as JSON, creating parent directories as needed.
func (r *Report) Save(filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return errors.Wrap(err, "error creating quality report directory")
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "error marshalling quality report")
	}
	if err := os.WriteFile(filePath, b, 0644); err != nil {
		return errors.Wrap(err, "error writing quality report")
	}
	return nil
}

// Print writes a human-readable summary to w. Tick and cross symbols are used
// when w is a terminal.
func (r *Report) Print(w io.Writer) {
	useEmoji := false
	if f, ok := w.(*os.File); ok {
		useEmoji = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	for _, chk := range r.Checks {
		marker := "PASS"
		if !chk.Passed {
			marker = "FAIL"
		}
		if useEmoji {
			if chk.Passed {
				marker = c.EmojiTick
			} else {
				marker = c.EmojiCross
			}
		}
		_, _ = fmt.Fprintf(w, "%v %v: %v\n", marker, chk.Name, chk.Detail)
	}
	status := "passed"
	if !r.Passed {
		status = "FAILED"
	}
	_, _ = fmt.Fprintf(w, "quality checks %v (%v checks)\n", status, len(r.Checks))
}
