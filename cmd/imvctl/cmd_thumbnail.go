package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matheus3301/imv/internal/rpc"
	"github.com/matheus3301/imv/internal/thumbcache"
)

var thumbnailCmd = &cobra.Command{
	Use:   "thumbnail",
	Short: "Inspect and fill the daemon thumbnail cache",
}

var thumbnailKeyCmd = &cobra.Command{
	Use:   "key <source-path> <size>",
	Short: "Print the cache key for a source file and size",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		size, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid size %q", args[1])
		}
		fmt.Println(thumbcache.Key(args[0], size))
		return nil
	},
}

var thumbnailGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Fetch a cached thumbnail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		return withClient(cmd, func(ctx context.Context, c *rpc.Client) error {
			resp, err := c.GetThumbnail(ctx, &rpc.GetThumbnailRequest{Key: args[0]})
			if err != nil {
				return err
			}
			if jsonFlag {
				return outputJSON(resp)
			}
			if !resp.Hit {
				return fmt.Errorf("thumbnail %s not cached", resp.Key)
			}
			if out == "" {
				fmt.Printf("%s  %s\n", resp.Key, humanize.Bytes(uint64(len(resp.Data))))
				return nil
			}
			if err := os.WriteFile(out, resp.Data, 0600); err != nil {
				return err
			}
			fmt.Printf("Wrote %s to %s\n", humanize.Bytes(uint64(len(resp.Data))), out)
			return nil
		})
	},
}

var thumbnailPutCmd = &cobra.Command{
	Use:   "put <source-path> <size> <file|->",
	Short: "Store a rendered thumbnail for a source file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		size, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid size %q", args[1])
		}
		var data []byte
		if args[2] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[2])
		}
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *rpc.Client) error {
			resp, err := c.PutThumbnail(ctx, &rpc.PutThumbnailRequest{SourcePath: args[0], Size: size, Data: data})
			if err != nil {
				return err
			}
			if jsonFlag {
				return outputJSON(resp)
			}
			fmt.Println(resp.Key)
			return nil
		})
	},
}

func init() {
	thumbnailGetCmd.Flags().StringP("output", "o", "", "write the image to this file")
	thumbnailCmd.AddCommand(thumbnailKeyCmd, thumbnailGetCmd, thumbnailPutCmd)
	rootCmd.AddCommand(thumbnailCmd)
}
