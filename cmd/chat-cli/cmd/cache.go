package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nfrund/roomchat/internal/cache"
)

var cacheRoom string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the local message cache",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show what is cached for a room",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := application.Cache()
		if err != nil {
			return err
		}
		stat, ok := c.Stat(cmd.Context(), cacheRoom)
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "Nothing cached for room %s.\n", cacheRoom)
			return nil
		}
		size := ""
		if kv, err := application.KV(); err == nil {
			if raw, err := kv.Get(cmd.Context(), cache.Key(cacheRoom)); err == nil {
				size = ", " + humanize.Bytes(uint64(len(raw)))
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Room %s: %s %s%s, saved %s.\n",
			cacheRoom,
			humanize.Comma(int64(stat.Count)),
			plural(stat.Count, "message", "messages"),
			size,
			humanize.Time(stat.WrittenAt))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the cached messages of a room",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := application.Cache()
		if err != nil {
			return err
		}
		c.Clear(cmd.Context(), cacheRoom)
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared room %s.\n", cacheRoom)
		return nil
	},
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func init() {
	for _, c := range []*cobra.Command{cacheShowCmd, cacheClearCmd} {
		c.Flags().StringVarP(&cacheRoom, "room", "r", "", "room id")
		_ = c.MarkFlagRequired("room")
	}
	cacheCmd.AddCommand(cacheShowCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
