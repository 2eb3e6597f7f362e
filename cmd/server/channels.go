package main

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/relaychat-server/internal/store/sqlite"
)

func newChannelsCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List persisted channels with their owners and member counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*f)
			if err != nil {
				return err
			}
			st, err := sqlite.New(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			ctx := cmd.Context()
			channels, err := st.ListChannels(ctx)
			if err != nil {
				return fmt.Errorf("list channels: %w", err)
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"ID", "Name", "Owner", "Members", "Created"})
			table.SetAutoFormatHeaders(false)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetBorder(false)
			table.SetCenterSeparator("")
			table.SetColumnSeparator("")
			table.SetRowSeparator("")
			table.SetHeaderLine(false)
			table.SetTablePadding("\t")

			for _, ch := range channels {
				members, err := st.ListMembers(ctx, ch.ID)
				if err != nil {
					return fmt.Errorf("list members of %s: %w", ch.ID, err)
				}
				table.Append([]string{
					ch.ID,
					ch.Name,
					ch.OwnerID,
					strconv.Itoa(len(members)),
					ch.CreatedAt.Format("2006-01-02 15:04:05"),
				})
			}
			table.Render()
			return nil
		},
	}
}
