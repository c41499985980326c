package archive

import (
	"fmt"
	"os"

	"github.com/alnah/go-voicepipe/internal/logging"
)

// Deletable proves its source has a verified archive copy. Only
// Store.Archive and Store.Resolve construct one, and both re-check the
// copy on disk first, so source deletion is unreachable without that
// check having passed.
type Deletable struct {
	source   string
	archived string
}

// Source returns the source recording's path.
func (d Deletable) Source() string { return d.source }

// Archived returns the verified archive copy's path.
func (d Deletable) Archived() string { return d.archived }

// Delete removes the source recording. A source that is already gone
// counts as deleted. A zero token refuses and logs the attempt.
func (d Deletable) Delete() error {
	log := logging.WithComponent("archive")
	if d.source == "" {
		logging.Safety(log, "unverified_delete").
			Msg("source deletion attempted without a verified archive copy")
		return ErrNotVerified
	}

	if err := os.Remove(d.source); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete source %s: %w", d.source, err)
	}

	log.Info().
		Bool(logging.FieldSafety, true).
		Str(logging.FieldEvent, "archive.source_deleted").
		Str(logging.FieldSourcePath, d.source).
		Str(logging.FieldTargetPath, d.archived).
		Send()
	return nil
}
