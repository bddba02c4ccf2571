package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jwynia/corticai/pkg/corticai"
	"github.com/jwynia/corticai/pkg/index"
	"github.com/jwynia/corticai/pkg/value"
)

func newIndexCmd() *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Attribute index operations",
	}

	indexCmd.AddCommand(&cobra.Command{
		Use:   "add ENTITY ATTRIBUTE VALUE",
		Short: "Record an attribute value for an entity",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(ctx context.Context, db *corticai.DB) error {
				return db.Index().AddAttribute(args[0], args[1], value.ParseLiteral(args[2]))
			})
		},
	})

	indexCmd.AddCommand(&cobra.Command{
		Use:   "remove ENTITY [ATTRIBUTE VALUE]",
		Short: "Remove one attribute value, or a whole entity",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 && len(args) != 3 {
				return fmt.Errorf("accepts 1 or 3 arg(s), received %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(ctx context.Context, db *corticai.DB) error {
				var removed bool
				if len(args) == 1 {
					removed = db.Index().RemoveEntity(args[0])
				} else {
					removed = db.Index().RemoveAttribute(args[0], args[1], value.ParseLiteral(args[2]))
				}
				if !removed {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing removed")
				}
				return nil
			})
		},
	})

	indexCmd.AddCommand(&cobra.Command{
		Use:   "find ATTRIBUTE [VALUE]",
		Short: "List entities holding an attribute, or one value of it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(ctx context.Context, db *corticai.DB) error {
				var v *value.Value
				if len(args) == 2 {
					v = index.Ptr(value.ParseLiteral(args[1]))
				}
				for _, id := range db.Index().FindByAttribute(args[0], v) {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	})

	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Evaluate a composite attribute query",
		Long: `Evaluate --where conditions of the form attribute:operator[:value] and
combine them with --mode. Operators: equals, not_equals, contains, exists,
greater_than, less_than. With --depth the matches seed a reachability search
and every connected node is printed instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wheres, _ := cmd.Flags().GetStringArray("where")
			rawMode, _ := cmd.Flags().GetString("mode")
			depth, _ := cmd.Flags().GetInt("depth")

			conditions, err := parseConditions(wheres)
			if err != nil {
				return err
			}
			mode, err := index.ParseMode(rawMode)
			if err != nil {
				return err
			}

			return withDB(cmd, func(ctx context.Context, db *corticai.DB) error {
				var ids []string
				if depth >= 0 {
					nodes, err := db.FindConnectedFrom(ctx, conditions, mode, depth)
					if err != nil {
						return err
					}
					for _, n := range nodes {
						ids = append(ids, string(n))
					}
				} else {
					ids, err = db.Index().FindByAttributes(conditions, mode)
					if err != nil {
						return err
					}
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
	queryCmd.Flags().StringArray("where", nil, "Condition attribute:operator[:value] (repeatable)")
	queryCmd.Flags().String("mode", "and", "and or or")
	queryCmd.Flags().Int("depth", -1, "Expand matches through the graph up to this many hops")
	indexCmd.AddCommand(queryCmd)

	indexCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show attribute index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(ctx context.Context, db *corticai.DB) error {
				return printJSON(cmd.OutOrStdout(), db.Index().Statistics())
			})
		},
	})

	return indexCmd
}

// parseConditions reads attribute:operator[:value]. The value may itself
// contain colons.
func parseConditions(wheres []string) ([]index.Condition, error) {
	conditions := make([]index.Condition, 0, len(wheres))
	for _, where := range wheres {
		parts := strings.SplitN(where, ":", 3)
		if len(parts) < 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid condition %q, want attribute:operator[:value]", where)
		}
		op, err := index.ParseOperator(parts[1])
		if err != nil {
			return nil, err
		}
		cond := index.Condition{Attribute: parts[0], Operator: op}
		if len(parts) == 3 {
			cond.Value = value.ParseLiteral(parts[2])
		} else if op != index.OpExists {
			return nil, fmt.Errorf("condition %q needs a value", where)
		}
		conditions = append(conditions, cond)
	}
	return conditions, nil
}
