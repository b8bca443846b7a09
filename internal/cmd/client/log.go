package client

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewLogCommand constructs the `log` command group and subcommands.
func NewLogCommand(baseURL BaseURLFunc) *cobra.Command {
	logCmd := &cobra.Command{Use: "log", Short: "Audit log operations"}
	logCmd.PersistentFlags().StringP("namespace", "n", "default", "Namespace")
	logCmd.AddCommand(
		newLogAddCommand(baseURL),
		newLogNewerCommand(baseURL),
		newLogCursorCommand(baseURL),
		newLogLayersCommand(baseURL),
		newLogListCommand(baseURL),
		newLogTailCommand(baseURL),
	)
	return logCmd
}

// newLogAddCommand constructs the `log add` subcommand.
func newLogAddCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an entry to a log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			log, _ := cmd.Flags().GetString("log")
			name, _ := cmd.Flags().GetString("name")
			oid, _ := cmd.Flags().GetString("oid")
			fieldPairs, _ := cmd.Flags().GetStringArray("field")
			fieldsJSON, _ := cmd.Flags().GetString("fields-json")

			fields := map[string]any{}
			if fieldsJSON != "" {
				if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
					return fmt.Errorf("invalid --fields-json: %w", err)
				}
			}
			for _, kv := range fieldPairs {
				k, v, ok := strings.Cut(kv, "=")
				if !ok || k == "" {
					return fmt.Errorf("invalid --field %q; expected key=value", kv)
				}
				fields[k] = v
			}

			body := map[string]any{"name": name, "oid": oid, "fields": fields}
			var resp struct {
				Cursors []string `json:"cursors"`
			}
			if err := doJSON(cmd.Context(), http.MethodPost, baseURL()+logPath(ns, log, "entries"), body, &resp); err != nil {
				return err
			}
			for _, c := range resp.Cursors {
				fmt.Fprintln(cmd.OutOrStdout(), "cursor:", c)
			}
			return nil
		},
	}
	cmd.Flags().String("log", "", "Log name")
	cmd.Flags().String("name", "", "Event name")
	cmd.Flags().String("oid", "", "Object id the event concerns")
	cmd.Flags().StringArray("field", nil, "Payload field key=value (repeatable)")
	cmd.Flags().String("fields-json", "", "Payload fields as a JSON object")
	_ = cmd.MarkFlagRequired("log")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// newLogNewerCommand constructs the `log newer` subcommand.
func newLogNewerCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newer",
		Short: "List entries added after a cursor, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			log, _ := cmd.Flags().GetString("log")
			after, _ := cmd.Flags().GetString("after")
			oids, _ := cmd.Flags().GetStringSlice("oid")
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")

			q := url.Values{}
			if after != "" {
				q.Set("after", after)
			}
			for _, o := range oids {
				q.Add("oid", o)
			}
			if filter != "" {
				q.Set("filter", filter)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			var resp map[string]any
			if err := doJSON(cmd.Context(), http.MethodGet, baseURL()+logPath(ns, log, "entries")+"?"+q.Encode(), nil, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().String("log", "", "Log name")
	cmd.Flags().String("after", "", "Cursor generation:index (default: from the beginning)")
	cmd.Flags().StringSlice("oid", nil, "Only entries for these object ids")
	cmd.Flags().String("filter", "", "CEL filter (server-side)")
	cmd.Flags().Int("limit", 0, "Maximum number of entries (0 = all)")
	_ = cmd.MarkFlagRequired("log")
	return cmd
}

// newLogCursorCommand constructs the `log cursor` subcommand.
func newLogCursorCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cursor",
		Short: "Show the latest cursor of a log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			log, _ := cmd.Flags().GetString("log")
			var resp map[string]any
			if err := doJSON(cmd.Context(), http.MethodGet, baseURL()+logPath(ns, log, "cursor"), nil, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().String("log", "", "Log name")
	_ = cmd.MarkFlagRequired("log")
	return cmd
}

// newLogLayersCommand constructs the `log layers` subcommand.
func newLogLayersCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layers",
		Short: "Show the retained layers of a log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			log, _ := cmd.Flags().GetString("log")
			var resp map[string]any
			if err := doJSON(cmd.Context(), http.MethodGet, baseURL()+logPath(ns, log, "layers"), nil, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().String("log", "", "Log name")
	_ = cmd.MarkFlagRequired("log")
	return cmd
}

// newLogListCommand constructs the `log list` subcommand.
func newLogListCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List logs in a namespace",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			var resp map[string]any
			if err := doJSON(cmd.Context(), http.MethodGet, baseURL()+"/v1/ns/"+url.PathEscape(ns)+"/logs", nil, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

// newLogTailCommand constructs the `log tail` subcommand. It prints one JSON
// line per entry as the server streams them.
func newLogTailCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow new entries of a log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			log, _ := cmd.Flags().GetString("log")
			after, _ := cmd.Flags().GetString("after")
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")

			q := url.Values{}
			if after != "" {
				q.Set("after", after)
			}
			if filter != "" {
				q.Set("filter", filter)
			}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, baseURL()+logPath(ns, log, "tail")+"?"+q.Encode(), nil)
			if err != nil {
				return err
			}
			req.Header.Set("Accept", "text/event-stream")
			// No client timeout: the stream stays open until cancelled.
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return &apiError{Status: resp.StatusCode, Message: "tail rejected"}
			}
			sc := bufio.NewScanner(resp.Body)
			seen := 0
			for sc.Scan() {
				data, ok := strings.CutPrefix(sc.Text(), "data: ")
				if !ok {
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), data)
				seen++
				if limit > 0 && seen >= limit {
					return nil
				}
			}
			if cmd.Context().Err() != nil {
				return nil
			}
			return sc.Err()
		},
	}
	cmd.Flags().String("log", "", "Log name")
	cmd.Flags().String("after", "", "Start after this cursor (default: newest entry)")
	cmd.Flags().String("filter", "", "CEL filter (server-side)")
	cmd.Flags().Int("limit", 0, "Stop after N entries (0 = infinite)")
	_ = cmd.MarkFlagRequired("log")
	return cmd
}
