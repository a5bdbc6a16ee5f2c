package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"metricql/internal/domain"
)

func exploresPath(project string, name ...string) string {
	p := "/api/v1/projects/" + url.PathEscape(project) + "/explores"
	if len(name) > 0 {
		p += "/" + url.PathEscape(name[0])
	}
	return p
}

func newExploresCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explores",
		Short: "Manage explores stored on the server",
	}

	var page, pageSize int
	list := &cobra.Command{
		Use:   "list <project>",
		Short: "List the explores of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := exploresPath(args[0]) + "?page=" + strconv.Itoa(page) + "&pageSize=" + strconv.Itoa(pageSize)
			var resp struct {
				Data  []domain.ExploreSummary `json:"data"`
				Total int64                   `json:"total"`
			}
			if err := client.Do(cmd.Context(), http.MethodGet, path, nil, &resp); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), resp)
			}
			rows := make([][]string, len(resp.Data))
			for i, e := range resp.Data {
				rows[i] = []string{e.Name, e.Label, string(e.TargetDatabase), e.UpdatedAt.Format(time.RFC3339)}
			}
			return printTable(cmd.OutOrStdout(), []string{"name", "label", "target", "updated"}, rows)
		},
	}
	list.Flags().IntVar(&page, "page", 1, "Page number")
	list.Flags().IntVar(&pageSize, "page-size", domain.DefaultPageSize, "Explores per page")

	push := &cobra.Command{
		Use:   "push <project> <file>",
		Short: "Upload a compiled explore file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var explore domain.Explore
			if err := readDocument(args[1], cmd.InOrStdin(), &explore); err != nil {
				return err
			}
			if explore.Name == "" {
				return fmt.Errorf("explore file %s has no name", args[1])
			}
			if err := client.Do(cmd.Context(), http.MethodPut, exploresPath(args[0], explore.Name), &explore, nil); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), explore.Name)
			return err
		},
	}

	get := &cobra.Command{
		Use:   "get <project> <name>",
		Short: "Show an explore as the current user sees it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var explore domain.Explore
			if err := client.Do(cmd.Context(), http.MethodGet, exploresPath(args[0], args[1]), nil, &explore); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), &explore)
			}
			var rows [][]string
			for _, table := range explore.TableNames() {
				t := explore.Tables[table]
				for _, name := range sortedKeys(t.Dimensions) {
					rows = append(rows, []string{domain.FieldID(table, name), "dimension", string(t.Dimensions[name].Type)})
				}
				for _, name := range sortedKeys(t.Metrics) {
					rows = append(rows, []string{domain.FieldID(table, name), "metric", string(t.Metrics[name].Type)})
				}
			}
			return printTable(cmd.OutOrStdout(), []string{"field", "kind", "type"}, rows)
		},
	}

	del := &cobra.Command{
		Use:   "delete <project> <name>",
		Short: "Delete an explore",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.Do(cmd.Context(), http.MethodDelete, exploresPath(args[0], args[1]), nil, nil)
		},
	}

	cmd.AddCommand(list, push, get, del)
	return cmd
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newAttributesCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attributes",
		Short: "Manage user attributes used for row and field access",
	}
	attrPath := func(user string, name ...string) string {
		p := "/api/v1/users/" + url.PathEscape(user) + "/attributes"
		if len(name) > 0 {
			p += "/" + url.PathEscape(name[0])
		}
		return p
	}

	list := &cobra.Command{
		Use:   "list <user>",
		Short: "List the attributes of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs := map[string]string{}
			if err := client.Do(cmd.Context(), http.MethodGet, attrPath(args[0]), nil, &attrs); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), attrs)
			}
			rows := make([][]string, 0, len(attrs))
			for _, k := range sortedKeys(attrs) {
				rows = append(rows, []string{k, attrs[k]})
			}
			return printTable(cmd.OutOrStdout(), []string{"name", "value"}, rows)
		},
	}

	set := &cobra.Command{
		Use:   "set <user> <name> <value>",
		Short: "Set a user attribute",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"value": args[2]}
			return client.Do(cmd.Context(), http.MethodPut, attrPath(args[0], args[1]), body, nil)
		},
	}

	unset := &cobra.Command{
		Use:   "unset <user> <name>",
		Short: "Remove a user attribute",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.Do(cmd.Context(), http.MethodDelete, attrPath(args[0], args[1]), nil, nil)
		},
	}

	cmd.AddCommand(list, set, unset)
	return cmd
}
