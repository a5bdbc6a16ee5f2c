package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration profiles",
	}

	var host, user, output, warehouseType, dsn string
	setProfile := &cobra.Command{
		Use:   "set-profile <name>",
		Short: "Create or update a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			cfg := loadOrEmptyConfig()
			p := cfg.Profiles[args[0]]
			if cmd.Flags().Changed("host") {
				p.Host = host
			}
			if cmd.Flags().Changed("user") {
				p.User = user
			}
			if cmd.Flags().Changed("output") {
				p.Output = output
			}
			if cmd.Flags().Changed("warehouse") {
				p.Warehouse = warehouseType
			}
			if cmd.Flags().Changed("dsn") {
				p.DSN = dsn
			}
			cfg.Profiles[args[0]] = p
			if cfg.CurrentProfile == "" {
				cfg.CurrentProfile = args[0]
			}
			if err := SaveUserConfig(cfg); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Profile %q saved\n", args[0])
			return err
		},
	}
	// Local flags shadow the root persistent flags of the same name.
	setProfile.Flags().StringVar(&host, "host", "", "Server URL")
	setProfile.Flags().StringVar(&user, "user", "", "User id")
	setProfile.Flags().StringVar(&output, "output", "", "Output format (table, json)")
	setProfile.Flags().StringVar(&warehouseType, "warehouse", "", "Warehouse type for local commands")
	setProfile.Flags().StringVar(&dsn, "dsn", "", "Warehouse connection string for local commands")

	useProfile := &cobra.Command{
		Use:   "use-profile <name>",
		Short: "Switch the current profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadOrEmptyConfig()
			if _, ok := cfg.Profiles[args[0]]; !ok {
				return fmt.Errorf("profile %q not found", args[0])
			}
			cfg.CurrentProfile = args[0]
			if err := SaveUserConfig(cfg); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Switched to profile %q\n", args[0])
			return err
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadOrEmptyConfig()
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), cfg)
			}
			rows := make([][]string, 0, len(cfg.Profiles))
			for _, name := range sortedKeys(cfg.Profiles) {
				p := cfg.Profiles[name]
				current := ""
				if name == cfg.CurrentProfile {
					current = "*"
				}
				rows = append(rows, []string{current, name, p.Host, p.User, p.Output, p.Warehouse})
			}
			return printTable(cmd.OutOrStdout(), []string{"current", "name", "host", "user", "output", "warehouse"}, rows)
		},
	}

	cmd.AddCommand(setProfile, useProfile, show)
	return cmd
}
