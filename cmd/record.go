package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/agentdb/api/schemas"
)

func newRecordCommand() *cobra.Command {
	var (
		action   string
		selector string
		url      string
		value    string
		success  bool
		meta     []string
	)

	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Record one automation action outcome into the store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			metadata, err := parseMetadata(meta)
			if err != nil {
				return err
			}

			db, dir, err := openDatabase()
			if err != nil {
				return err
			}

			id, err := db.Store(schemas.StoreInput{
				Action:   action,
				Selector: selector,
				URL:      url,
				Value:    value,
				Success:  success,
				Metadata: metadata,
			})
			if err != nil {
				return err
			}
			if err := db.Save(dir); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	recordCmd.Flags().StringVar(&action, "action", "", "action type (e.g. click, fill)")
	recordCmd.Flags().StringVar(&selector, "selector", "", "CSS selector that was targeted")
	recordCmd.Flags().StringVar(&url, "url", "", "page URL the action ran on")
	recordCmd.Flags().StringVar(&value, "value", "", "value entered (omit for sensitive fields)")
	recordCmd.Flags().BoolVar(&success, "success", false, "whether the action worked")
	recordCmd.Flags().StringArrayVar(&meta, "meta", nil, "metadata entry as key=value (repeatable)")
	_ = recordCmd.MarkFlagRequired("action")

	return recordCmd
}

// parseMetadata turns repeated key=value flags into a metadata map.
func parseMetadata(entries []string) (schemas.Metadata, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	metadata := make(schemas.Metadata, len(entries))
	for _, entry := range entries {
		key, value, found := strings.Cut(entry, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --meta entry %q, want key=value", entry)
		}
		metadata[key] = value
	}
	return metadata, nil
}
