package release

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PrependChangelog writes notes at the top of the changelog at path, below
// the "# title" heading. The file is created when missing.
func PrependChangelog(path, title, notes string) error {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read changelog: %w", err)
	}

	heading := ""
	if title != "" {
		heading = "# " + title
	}

	rest := strings.TrimSpace(string(existing))
	if heading != "" && strings.HasPrefix(rest, heading) {
		rest = strings.TrimSpace(strings.TrimPrefix(rest, heading))
	}

	var b strings.Builder
	if heading != "" {
		b.WriteString(heading)
		b.WriteString("\n\n")
	}
	b.WriteString(strings.TrimSpace(notes))
	b.WriteString("\n")
	if rest != "" {
		b.WriteString("\n")
		b.WriteString(rest)
		b.WriteString("\n")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create changelog directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write changelog: %w", err)
	}
	return nil
}
