package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-object-cache/cache"
	"github.com/goliatone/go-object-cache/catalog"
	"github.com/goliatone/go-object-cache/repositorycache"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the catalog and notification tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.container.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrated")
			return nil
		},
	}
}

func newGetCommand(a *app) *cobra.Command {
	var (
		fresh  bool
		visit  bool
		viewer int64
	)
	cmd := &cobra.Command{
		Use:   "get <kind> <id>...",
		Short: "Read an entity through the cache",
		Long: "Read an entity through the cache. Nested entities take their ancestor ids first,\n" +
			"e.g. `get video <course> <lesson> <video>`. Missing entities print their Null Record.\n" +
			"With --visit the read counts as a detail view and reports the viewer's favorite status.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if visit {
				v, err := a.container.Catalog().Visit(ctx, args[0], viewer, ids...)
				if err != nil {
					return err
				}
				out := v.Record.Clone()
				out["favorited"] = strconv.FormatBool(v.Favorited)
				return printRecord(cmd.OutOrStdout(), out)
			}
			if fresh {
				ctx = repositorycache.WithoutCache(ctx)
			}
			rec, err := a.container.Catalog().Get(ctx, args[0], ids...)
			if err != nil {
				return err
			}
			return printRecord(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().BoolVar(&fresh, "fresh", false, "read the backing store without touching the cache")
	cmd.Flags().BoolVar(&visit, "visit", false, "count a detail view and report favorite status")
	cmd.Flags().Int64Var(&viewer, "user", 0, "viewing user id for --visit (0 is anonymous)")
	cmd.MarkFlagsMutuallyExclusive("fresh", "visit")
	return cmd
}

func newInvalidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <kind> <id>...",
		Short: "Drop a cached entity and every key below it",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}
			c := a.container.Catalog()
			key, err := c.Key(args[0], ids...)
			if err != nil {
				return err
			}
			if err := c.Invalidate(cmd.Context(), args[0], ids...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s\n", key)
			return nil
		},
	}
}

func newFavoriteCommand(a *app) *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "favorite <course|org|teacher> <id>",
		Short: "Toggle a user's favorite",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := catalog.ParseFavoriteKind(args[0])
			if err != nil {
				return err
			}
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}
			res, err := a.container.Favorites().Toggle(cmd.Context(), catalog.FavoriteRequest{
				UserID: userID,
				FavID:  ids[0],
				Kind:   kind,
			})
			if err != nil {
				return err
			}
			state := "removed"
			if res.Added {
				state = "added"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %d: fav_nums=%d notified=%t\n", state, kind, ids[0], res.FavNums, res.Notified)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "acting user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// printRecord writes rec as YAML with keys in name order.
func printRecord(w io.Writer, rec cache.Record) error {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range keys {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Value: rec[k], Style: yaml.DoubleQuotedStyle},
		)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return errors.Wrap(err, "encode record")
	}
	return enc.Close()
}
