package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// output returns the command's stdout, or a created file when path is set.
// done closes the file.
func output(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return f, f.Close, nil
}
