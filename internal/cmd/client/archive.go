package client

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	cfgpkg "github.com/rzbill/auditstack/internal/config"
	"github.com/rzbill/auditstack/internal/runtime"
	auditsvc "github.com/rzbill/auditstack/internal/services/audit"
)

// NewArchiveCommand constructs the `archive` command group. list and purge
// go through the HTTP API; export opens the data directory directly and so
// requires the server to be stopped.
func NewArchiveCommand(baseURL BaseURLFunc) *cobra.Command {
	archiveCmd := &cobra.Command{Use: "archive", Short: "Archived layer operations"}
	archiveCmd.PersistentFlags().StringP("namespace", "n", "default", "Namespace")
	archiveCmd.AddCommand(
		newArchiveListCommand(baseURL),
		newArchivePurgeCommand(baseURL),
		newArchiveExportCommand(),
	)
	return archiveCmd
}

// newArchiveListCommand constructs the `archive list` subcommand.
func newArchiveListCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the archived layers of a log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			log, _ := cmd.Flags().GetString("log")
			var resp map[string]any
			if err := doJSON(cmd.Context(), http.MethodGet, baseURL()+logPath(ns, log, "archive"), nil, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().String("log", "", "Log name")
	_ = cmd.MarkFlagRequired("log")
	return cmd
}

// newArchivePurgeCommand constructs the `archive purge` subcommand.
func newArchivePurgeCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete archived layers older than a generation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			log, _ := cmd.Flags().GetString("log")
			before, _ := cmd.Flags().GetUint64("before")
			confirm, _ := cmd.Flags().GetBool("confirm")
			if !confirm {
				return fmt.Errorf("refusing to purge without --confirm")
			}
			var resp struct {
				Purged int `json:"purged"`
			}
			u := baseURL() + logPath(ns, log, "archive") + "?before=" + strconv.FormatUint(before, 10)
			if err := doJSON(cmd.Context(), http.MethodDelete, u, nil, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "purged:", resp.Purged)
			return nil
		},
	}
	cmd.Flags().String("log", "", "Log name")
	cmd.Flags().Uint64("before", 0, "Delete layers with a generation below this")
	cmd.Flags().Bool("confirm", false, "Confirm deletion")
	_ = cmd.MarkFlagRequired("log")
	_ = cmd.MarkFlagRequired("before")
	return cmd
}

// newArchiveExportCommand constructs the `archive export` subcommand.
func newArchiveExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a namespace's archive into a bbolt file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			out, _ := cmd.Flags().GetString("out")
			if dataDir == "" {
				dataDir = cfgpkg.DefaultDataDir()
			}
			cfg := cfgpkg.Default()
			cfgpkg.FromEnv(&cfg)
			rt, err := runtime.Open(runtime.Options{DataDir: filepath.Join(dataDir, "store"), Config: cfg})
			if err != nil {
				return fmt.Errorf("open %s: %w", dataDir, err)
			}
			defer rt.Close()
			n, err := auditsvc.New(rt).ExportArchive(cmd.Context(), ns, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d layers to %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().String("data-dir", "", "Data directory (default: OS-specific application data directory)")
	cmd.Flags().String("out", "", "Destination bbolt file")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
