package reqfile

import (
	"fmt"
	"io"
	"sort"

	"github.com/frederic-klein/yarp/internal/req"
)

const header = "# generated by yarp\n"

// Emitter writes requirements in canonical form: one normalized
// requirement expression per line, sorted by normalized name.
type Emitter struct {
	w io.Writer
}

// NewEmitter creates a new emitter.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Emit writes the entries.
func (e *Emitter) Emit(entries []Entry) error {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return req.NormalizeName(sorted[i].Requirement.Name) <
			req.NormalizeName(sorted[j].Requirement.Name)
	})

	if _, err := fmt.Fprint(e.w, header); err != nil {
		return err
	}

	for _, entry := range sorted {
		hashes := entry.Requirement.Hashes
		if len(hashes) == 0 {
			if _, err := fmt.Fprintf(e.w, "%s\n", entry.Requirement.String()); err != nil {
				return err
			}
			continue
		}

		// Hash options continue the requirement's logical line, so the
		// emitted file parses back to the same entries.
		if _, err := fmt.Fprintf(e.w, "%s \\\n", entry.Requirement.String()); err != nil {
			return err
		}
		for i, h := range hashes {
			cont := ` \`
			if i == len(hashes)-1 {
				cont = ""
			}
			if _, err := fmt.Fprintf(e.w, "    --hash=%s%s\n", h, cont); err != nil {
				return err
			}
		}
	}

	return nil
}
