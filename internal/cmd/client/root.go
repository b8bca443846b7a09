package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the auditstack client.
// It registers the log and archive command groups.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "auditstack",
		Short: "auditstack client commands",
	}
	root.AddCommand(NewLogCommand(baseURL))
	root.AddCommand(NewArchiveCommand(baseURL))
	return root
}
