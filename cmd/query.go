package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/agentdb/api/schemas"
)

func newQueryCommand() *cobra.Command {
	var (
		action        string
		selector      string
		url           string
		k             int
		successOnly   bool
		minSimilarity float64
		meta          []string
	)

	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Retrieve the k most similar past actions for a context.",
		RunE: func(cmd *cobra.Command, args []string) error {
			metadata, err := parseMetadata(meta)
			if err != nil {
				return err
			}

			db, _, err := openDatabase()
			if err != nil {
				return err
			}

			var filter *schemas.QueryFilter
			if successOnly || minSimilarity > 0 || len(metadata) > 0 {
				filter = &schemas.QueryFilter{
					SuccessOnly:    successOnly,
					MinSimilarity:  minSimilarity,
					MetadataEquals: metadata,
				}
			}

			results := db.FindSimilar(schemas.QueryContext{
				Action:   action,
				Selector: selector,
				URL:      url,
			}, k, filter)

			return printJSON(cmd, results)
		},
	}

	queryCmd.Flags().StringVar(&action, "action", "", "action type to match")
	queryCmd.Flags().StringVar(&selector, "selector", "", "selector to match")
	queryCmd.Flags().StringVar(&url, "url", "", "URL to match")
	queryCmd.Flags().IntVarP(&k, "top", "k", 5, "number of results")
	queryCmd.Flags().BoolVar(&successOnly, "success-only", false, "only return patterns that worked")
	queryCmd.Flags().Float64Var(&minSimilarity, "min-similarity", 0, "similarity floor in [0,1]")
	queryCmd.Flags().StringArrayVar(&meta, "meta", nil, "require metadata equality as key=value (repeatable)")
	_ = queryCmd.MarkFlagRequired("action")

	return queryCmd
}
