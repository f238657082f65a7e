package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matheus3301/imv/internal/lock"
	"github.com/matheus3301/imv/internal/profile"
	"github.com/matheus3301/imv/internal/rpc"
	"github.com/matheus3301/imv/internal/timeline"
	"github.com/matheus3301/imv/internal/types"
)

func init() {
	rootCmd.AddCommand(
		statusCmd,
		conversationsCmd,
		conversationCmd,
		messagesCmd,
		aroundCmd,
		handlesCmd,
		filterCmd,
		dateIndexCmd,
		timelineCmd,
		mediaCmd,
		watchCmd,
	)

	conversationsCmd.Flags().Int("limit", 0, "page size (default 50)")
	conversationsCmd.Flags().Int("offset", 0, "rows to skip")
	messagesCmd.Flags().Int("limit", 0, "page size (default 50)")
	messagesCmd.Flags().String("before", "", "only messages before this date (RFC3339, YYYY-MM-DD or unix ms)")
	aroundCmd.Flags().Int("context", 0, "messages on each side (default 50)")
	handlesCmd.Flags().Int("limit", 0, "maximum results (default 200)")
	filterCmd.Flags().Int("limit", 0, "maximum results (default 200)")
	dateIndexCmd.Flags().String("source", string(types.SourceMessages), "messages or media")
	timelineCmd.Flags().String("source", string(types.SourceMessages), "messages or media")
	mediaCmd.Flags().Int("limit", 0, "page size (default 60)")
	mediaCmd.Flags().String("before", "", "only media before this date")
	watchCmd.Flags().String("prefix", "", "only event kinds with this prefix")
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid conversation id %q", s)
	}
	return id, nil
}

// parseDate accepts unix milliseconds, RFC3339 or a local YYYY-MM-DD date.
func parseDate(s string) (int64, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t.UnixMilli(), nil
	}
	return 0, fmt.Errorf("invalid date %q", s)
}

func beforeFlag(cmd *cobra.Command) (*int64, error) {
	s, _ := cmd.Flags().GetString("before")
	if s == "" {
		return nil, nil
	}
	ms, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &ms, nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info, held, err := lock.Holder(profile.Dir(profileName))
		if err != nil {
			return err
		}
		if !held {
			if jsonFlag {
				return outputJSON(map[string]any{"profile": profileName, "state": "STOPPED"})
			}
			fmt.Printf("Profile: %s\nState:   STOPPED\n", profileName)
			return nil
		}
		return withClient(cmd, func(ctx context.Context, c *rpc.Client) error {
			resp, err := c.GetStatus(ctx)
			if err != nil {
				return err
			}
			if jsonFlag {
				return outputJSON(resp)
			}
			fmt.Printf("Profile:       %s\n", resp.Profile)
			fmt.Printf("State:         %s (%s)\n", resp.State, humanize.Time(time.UnixMilli(resp.StateSinceMs)))
			if resp.Reason != "" {
				fmt.Printf("Reason:        %s\n", resp.Reason)
			}
			fmt.Printf("PID:           %d (since %s)\n", info.PID, humanize.Time(info.Since))
			fmt.Printf("chat.db:       %s\n", resp.ChatDB)
			fmt.Printf("Uptime:        %s\n", time.Duration(resp.UptimeMs)*time.Millisecond)
			fmt.Printf("Conversations: %s\n", humanize.Comma(resp.Conversations))
			fmt.Printf("Messages:      %s\n", humanize.Comma(resp.Messages))
			fmt.Printf("Handles:       %s\n", humanize.Comma(resp.Handles))
			fmt.Printf("Attachments:   %s\n", humanize.Comma(resp.Attachments))
			fmt.Printf("Thumbnails:    %d in memory\n", resp.ThumbnailEntries)
			return nil
		})
	},
}

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"ls"},
	Short:   "List conversations, most recently active first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		return withClient(cmd, func(ctx context.Context, c *rpc.Client) error {
			resp, err := c.ListConversations(ctx, &rpc.ListConversationsRequest{Limit: limit, Offset: offset})
			if err != nil {
				return err
			}
			if jsonFlag {
				return outputJSON(resp)
			}
			w := newTable()
			fmt.Fprintln(w, "ID\tTITLE\tMEMBERS\tLAST\tPREVIEW")
			for _, conv := range resp.Conversations {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
					conv.ID, truncate(conv.Title(), 32), len(conv.Participants),
					relDate(conv.LastMessageDate), truncate(types.Deref(conv.LastMessageText), 48))
			}
			fmt.Fprintf(w, "\n%d of %d conversations\n", len(resp.Conversations), resp.Total)
			return w.Flush()
		})
	},
}

var conversationCmd = &cobra.Command{
	Use:   "conversation <id>",
	Short: "Show one conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *rpc.Client) error {
			resp, err := c.GetConversation(ctx, &rpc.GetConversationRequest{ID: id})
			if err != nil {
				return err
			}
			if jsonFlag {
				return outputJSON(resp)
			}
			conv := resp.Conversation
			if conv == nil {
				return fmt.Errorf("conversation %d not found", id)
			}
			fmt.Printf("Title:   %s\n", conv.Title())
			fmt.Printf("GUID:    %s\n", conv.GUID)
			fmt.Printf("Service: %s\n", conv.Service)
			fmt.Printf("Group:   %v\n", conv.IsGroup)
			fmt.Printf("Last:    %s (%s)\n", formatDate(conv.LastMessageDate), relDate(conv.LastMessageDate))
			var members []string
			for _, h := range conv.Participants {
				members = append(members, h.Identifier)
			}
			fmt.Printf("Members: %s\n", strings.Join(members, ", "))
			return nil
		})
	},
}

var messagesCmd = &cobra.Command{
	Use:   "messages <conversation-id>",
	Short: "Show the newest messages of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		before, err := beforeFlag(cmd)
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *rpc.Client) error {
			resp, err := c.ListMessages(ctx, &rpc.ListMessagesRequest{ChatID: id, Limit: limit, BeforeDate: before})
			if err != nil {
				return err
			}
			if jsonFlag {
				return outputJSON(resp)
			}
			w := newTable()
			if resp.HasMore && len(resp.Messages) > 0 {
				fmt.Fprintf(w, "  … older messages: --before %d\n", resp.Messages[0].Date)
			}
			for _, m := range resp.Messages {
				writeMessage(w, m, "  ")
			}
			return w.Flush()
		})
	},
}

var aroundCmd = &cobra.Command{
	Use:   "around <conversation-id> <date>",
	Short: "Show messages around a date",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		target, err := parseDate(args[1])
		if err != nil {
			return err
		}
		n, _ := cmd.Flags().GetInt("context")
		return withClient(cmd, func(ctx context.Context, c *rpc.Client) error {
			resp, err := c.ListMessagesAroundDate(ctx, &rpc.ListMessagesAroundDateRequest{ChatID: id, TargetDate: target, ContextCount: n})
			if err != nil {
				return err
			}
			if jsonFlag {
				return outputJSON(resp)
			}
			if len(resp.Messages) == 0 {
				fmt.Println("No messages.")
				return nil
			}
			w := newTable()
			for i, m := range resp.Messages {
				marker := "  "
				if i == resp.TargetIndex {
					marker = "> "
				}
				writeMessage(w, m, marker)
			}
			return w.Flush()
		})
	},
}

var handlesCmd = &cobra.Command{
	Use:   "handles [query]",
	Short: "List handles matching a query",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, "")
		limit, _ := cmd.Flags().GetInt("limit")
		return withClient(cmd, func(ctx context.Context, c *rpc.Client) error {
			resp, err := c.ListHandles(ctx, &rpc.ListHandlesRequest{Query: query, Limit: limit})
			if err != nil {
				return err
			}
			if jsonFlag {
				return outputJSON(resp)
			}
			w := newTable()
			fmt.Fprintln(w, "ID\tIDENTIFIER\tSERVICE")
			for _, h := range resp.Handles {
				fmt.Fprintf(w, "%d\t%s\t%s\n", h.ID, h.Identifier, h.Service)
			}
			return w.Flush()
		})
	},
}

var filterCmd = &cobra.Command{
	Use:   "filter [query]",
	Short: "List conversations whose name or identifier matches a query",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, "")
		limit, _ := cmd.Flags().GetInt("limit")
		return withClient(cmd, func(ctx context.Context, c *rpc.Client) error {
			resp, err := c.ListFilterConversations(ctx, &rpc.ListFilterConversationsRequest{Query: query, Limit: limit})
			if err != nil {
				return err
			}
			if jsonFlag {
				return outputJSON(resp)
			}
			w := newTable()
			fmt.Fprintln(w, "ID\tNAME\tIDENTIFIER\tGROUP")
			for _, s := range resp.Conversations {
				fmt.Fprintf(w, "%d\t%s\t%s\t%v\n", s.ID, types.Deref(s.DisplayName), s.ChatIdentifier, s.IsGroup)
			}
			return w.Flush()
		})
	},
}

func fetchDateIndex(cmd *cobra.Command, args []string, render func([]types.DateIndexEntry) error) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	src, _ := cmd.Flags().GetString("source")
	return withClient(cmd, func(ctx context.Context, c *rpc.Client) error {
		resp, err := c.GetDateIndex(ctx, &rpc.GetDateIndexRequest{ChatID: id, Source: types.DateIndexSource(src)})
		if err != nil {
			return err
		}
		if jsonFlag {
			return outputJSON(resp)
		}
		return render(resp.Entries)
	})
}

var dateIndexCmd = &cobra.Command{
	Use:   "dateindex <conversation-id>",
	Short: "Show per-month message or media counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchDateIndex(cmd, args, func(entries []types.DateIndexEntry) error {
			w := newTable()
			fmt.Fprintln(w, "MONTH\tCOUNT\tFIRST")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.MonthKey, humanize.Comma(int64(e.Count)), formatDate(e.FirstDate))
			}
			return w.Flush()
		})
	},
}

var timelineCmd = &cobra.Command{
	Use:   "timeline <conversation-id>",
	Short: "Draw the conversation timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchDateIndex(cmd, args, func(entries []types.DateIndexEntry) error {
			ticks := timeline.Build(entries)
			peak := 1
			for _, t := range ticks {
				peak = max(peak, t.Count)
			}
			w := newTable()
			for _, t := range ticks {
				bar := strings.Repeat("█", max(1, t.Count*40/peak))
				fmt.Fprintf(w, "%s\t%s\t%s %d\n", t.YearLabel, t.Label, bar, t.Count)
			}
			return w.Flush()
		})
	},
}

var mediaCmd = &cobra.Command{
	Use:   "media <conversation-id>",
	Short: "List images and videos in a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		before, err := beforeFlag(cmd)
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *rpc.Client) error {
			resp, err := c.ListMedia(ctx, &rpc.ListMediaRequest{ChatID: id, Limit: limit, BeforeDate: before})
			if err != nil {
				return err
			}
			if jsonFlag {
				return outputJSON(resp)
			}
			w := newTable()
			fmt.Fprintln(w, "DATE\tTYPE\tNAME\tSIZE\tPATH")
			for _, item := range resp.Items {
				a := item.Attachment
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					formatDate(item.Date), a.Type, a.Name(), humanize.Bytes(uint64(max(a.TotalBytes, 0))), types.Deref(a.LocalPath))
			}
			if resp.HasMore && len(resp.Items) > 0 {
				fmt.Fprintf(w, "… older media: --before %d\n", resp.Items[0].Date)
			}
			return w.Flush()
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream change events until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix, _ := cmd.Flags().GetString("prefix")
		c, err := rpc.Dial(profile.SocketPath(profileName))
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		stream, err := c.WatchChanges(cmd.Context(), &rpc.WatchChangesRequest{Prefix: prefix})
		if err != nil {
			return err
		}
		for {
			evt, err := stream.Recv()
			if err != nil {
				return err
			}
			if jsonFlag {
				if err := outputJSON(evt); err != nil {
					return err
				}
				continue
			}
			fmt.Printf("%s  %-18s %s\n", time.UnixMilli(evt.OccurredAtUnixMs).Format(time.TimeOnly), evt.Kind, evt.Detail)
		}
	},
}
