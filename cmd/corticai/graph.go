package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jwynia/corticai/pkg/config"
	"github.com/jwynia/corticai/pkg/corticai"
	"github.com/jwynia/corticai/pkg/storage"
	"github.com/jwynia/corticai/pkg/traversal"
)

func newNodeCmd() *cobra.Command {
	nodeCmd := &cobra.Command{
		Use:   "node",
		Short: "Node operations",
	}

	addCmd := &cobra.Command{
		Use:   "add ID TYPE",
		Short: "Add or replace a node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, _ := cmd.Flags().GetStringArray("prop")
			props, err := parseProps(pairs)
			if err != nil {
				return err
			}
			return withDB(cmd, func(ctx context.Context, db *corticai.DB) error {
				node := &storage.Node{ID: storage.NodeID(args[0]), Type: args[1], Properties: props}
				if err := db.Store().AddNode(node); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "node %s (%s)\n", node.ID, node.Type)
				return nil
			})
		},
	}
	addCmd.Flags().StringArray("prop", nil, "Property as key=value (repeatable)")

	getCmd := &cobra.Command{
		Use:   "get ID",
		Short: "Print a node as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(ctx context.Context, db *corticai.DB) error {
				node, err := db.Store().GetNode(storage.NodeID(args[0]))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), node)
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a node and its edges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(ctx context.Context, db *corticai.DB) error {
				return db.Store().DeleteNode(storage.NodeID(args[0]))
			})
		},
	}

	nodeCmd.AddCommand(addCmd, getCmd, deleteCmd)
	return nodeCmd
}

func newEdgeCmd() *cobra.Command {
	edgeCmd := &cobra.Command{
		Use:   "edge",
		Short: "Edge operations",
	}

	addCmd := &cobra.Command{
		Use:   "add FROM TO TYPE",
		Short: "Add a directed edge",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, _ := cmd.Flags().GetStringArray("prop")
			props, err := parseProps(pairs)
			if err != nil {
				return err
			}
			return withDB(cmd, func(ctx context.Context, db *corticai.DB) error {
				edge := &storage.Edge{
					From:       storage.NodeID(args[0]),
					To:         storage.NodeID(args[1]),
					Type:       args[2],
					Properties: props,
				}
				if err := db.Store().AddEdge(edge); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "edge %s: %s -[%s]-> %s\n", edge.ID, edge.From, edge.Type, edge.To)
				return nil
			})
		},
	}
	addCmd.Flags().StringArray("prop", nil, "Property as key=value (repeatable)")

	deleteCmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an edge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(ctx context.Context, db *corticai.DB) error {
				return db.Store().DeleteEdge(storage.EdgeID(args[0]))
			})
		},
	}

	edgeCmd.AddCommand(addCmd, deleteCmd)
	return edgeCmd
}

func newEdgesCmd() *cobra.Command {
	edgesCmd := &cobra.Command{
		Use:   "edges ID",
		Short: "List the edges of a node in insertion order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			direction, err := directionFlag(cmd)
			if err != nil {
				return err
			}
			return withDB(cmd, func(ctx context.Context, db *corticai.DB) error {
				edges, err := db.Store().GetEdges(storage.NodeID(args[0]), direction)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, e := range edges {
					fmt.Fprintf(out, "%s\t%s -[%s]-> %s\n", e.ID, e.From, e.Type, e.To)
				}
				return nil
			})
		},
	}
	edgesCmd.Flags().String("direction", "outgoing", "outgoing, incoming or both")
	return edgesCmd
}

func newPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path FROM TO",
		Short: "Print a shortest path by hop count",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(ctx context.Context, db *corticai.DB) error {
				path, err := db.Traversal().ShortestPath(ctx, storage.NodeID(args[0]), storage.NodeID(args[1]))
				if err != nil {
					return err
				}
				if path == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "no path")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), joinIDs(path.Nodes, " -> "))
				return nil
			})
		},
	}
}

func newConnectedCmd() *cobra.Command {
	connectedCmd := &cobra.Command{
		Use:   "connected ID",
		Short: "List nodes reachable within --depth hops",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			depth, _ := cmd.Flags().GetInt("depth")
			return withDB(cmd, func(ctx context.Context, db *corticai.DB) error {
				nodes, err := db.Traversal().FindConnected(ctx, storage.NodeID(args[0]), depth)
				if err != nil {
					return err
				}
				for _, id := range nodes {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
	connectedCmd.Flags().Int("depth", 1, "Maximum hops")
	return connectedCmd
}

func newTraverseCmd() *cobra.Command {
	traverseCmd := &cobra.Command{
		Use:   "traverse ID",
		Short: "Enumerate simple paths from a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			depth, _ := cmd.Flags().GetInt("depth")
			types, _ := cmd.Flags().GetStringSlice("type")
			direction, err := directionFlag(cmd)
			if err != nil {
				return err
			}
			return withDB(cmd, func(ctx context.Context, db *corticai.DB) error {
				paths, err := db.Traversal().Traverse(ctx, traversal.Pattern{
					StartNode: storage.NodeID(args[0]),
					Direction: direction,
					MaxDepth:  depth,
					EdgeTypes: types,
				})
				if err != nil {
					return err
				}
				for _, p := range paths {
					fmt.Fprintln(cmd.OutOrStdout(), joinIDs(p.Nodes, " -> "))
				}
				return nil
			})
		},
	}
	traverseCmd.Flags().Int("depth", 2, "Maximum path length in edges")
	traverseCmd.Flags().String("direction", "outgoing", "outgoing, incoming or both")
	traverseCmd.Flags().StringSlice("type", nil, "Edge types to follow (default all)")
	return traverseCmd
}

func newCyclesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cycles",
		Short: "Report directed cycles in the whole graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(ctx context.Context, db *corticai.DB) error {
				cycles, err := db.Traversal().DetectStoreCycles(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(cycles) == 0 {
					fmt.Fprintln(out, "no cycles")
					return nil
				}
				for _, c := range cycles {
					fmt.Fprintln(out, joinIDs(c, " -> "))
				}
				return nil
			})
		},
	}
}

func newGCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Reclaim space in the BadgerDB value log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(ctx context.Context, db *corticai.DB) error {
				if err := db.RunGC(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "✅ Garbage collection complete")
				return nil
			})
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store and index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(ctx context.Context, db *corticai.DB) error {
				stats, err := db.Stats()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "📊 Statistics:")
				fmt.Fprintf(out, "  Nodes:            %d\n", stats.Nodes)
				fmt.Fprintf(out, "  Edges:            %d\n", stats.Edges)
				fmt.Fprintf(out, "  Indexed entities: %d\n", stats.Index.TotalEntities)
				fmt.Fprintf(out, "  Indexed values:   %d\n", stats.Index.TotalValues)
				if !db.Config().InMemory {
					fmt.Fprintf(out, "  LSM size:         %s\n", config.FormatMemorySize(stats.LSMSize))
					fmt.Fprintf(out, "  Value log size:   %s\n", config.FormatMemorySize(stats.VLogSize))
				}
				return nil
			})
		},
	}
}

func directionFlag(cmd *cobra.Command) (storage.Direction, error) {
	raw, _ := cmd.Flags().GetString("direction")
	return storage.ParseDirection(raw)
}

func joinIDs(ids []storage.NodeID, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, sep)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
