package ctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Execute runs debatectl.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("DEBATECTL")
	v.AutomaticEnv()
	v.SetDefault("server", "http://localhost:8080")

	root := &cobra.Command{
		Use:   "debatectl",
		Short: "Drive debate practice sessions from the terminal",
		Long: `debatectl talks to a running debate coach server. Create a session,
lock a motion, take a seat, prepare, speak and collect the report.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("server", "", "server base URL (default $DEBATECTL_SERVER or http://localhost:8080)")
	_ = v.BindPFlag("server", root.PersistentFlags().Lookup("server"))

	client := func() *Client { return NewClient(v.GetString("server")) }

	root.AddCommand(
		newCmd(client),
		showCmd(client),
		skillCmd(client),
		motionCmd(client),
		roleCmd(client),
		prepCmd(client),
		speechCmd(client),
		sayCmd(client),
		poiCmd(client),
		aiCmd(client),
		reportCmd(client),
		resetCmd(client),
		eventsCmd(client),
		tokenCmd(client),
		motionsCmd(client),
		healthCmd(client),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// post runs a POST against a session and prints the reply.
func post(cmd *cobra.Command, c *Client, id, action string, body any) error {
	var out any
	if err := c.Do(cmd.Context(), http.MethodPost, "/sessions/"+id+"/"+action, body, &out); err != nil {
		return err
	}
	if out == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func newCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Create a session and print its ID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				SessionID string `json:"session_id"`
			}
			if err := client().Do(cmd.Context(), http.MethodPost, "/sessions", nil, &out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.SessionID)
			return nil
		},
	}
}

func showCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out any
			if err := client().Do(cmd.Context(), http.MethodGet, "/sessions/"+args[0], nil, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func skillCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "skill <session-id> <beginner|intermediate|advanced>",
		Short: "Choose the round's skill level",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return post(cmd, client(), args[0], "skill", map[string]string{"level": args[1]})
		},
	}
}

func motionCmd(client func() *Client) *cobra.Command {
	var category string
	c := &cobra.Command{
		Use:   "motion <session-id> [motion text]",
		Short: "Lock a motion, or draw one from the bank",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"motion": strings.Join(args[1:], " "), "category": category}
			return post(cmd, client(), args[0], "motion", body)
		},
	}
	c.Flags().StringVar(&category, "category", "", "draw from a category when no text is given")
	return c
}

func roleCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "role <session-id> [PM|LO|DPM|DLO|MG|MO|GW|OW]",
		Short: "Take a seat; omit the seat for a random draw",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{}
			if len(args) == 2 {
				body["role"] = args[1]
			}
			return post(cmd, client(), args[0], "role", body)
		},
	}
}

func prepCmd(client func() *Client) *cobra.Command {
	var notes string
	c := &cobra.Command{
		Use:   "prep <session-id> <start|pause|resume|reset|notes|finish>",
		Short: "Control preparation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, c := args[0], client()
			switch args[1] {
			case "start":
				return post(cmd, c, id, "prep/start", nil)
			case "pause":
				return post(cmd, c, id, "prep/clock", map[string]string{"action": "pause"})
			case "resume":
				return post(cmd, c, id, "prep/clock", map[string]string{"action": "start"})
			case "reset":
				return post(cmd, c, id, "prep/clock", map[string]string{"action": "reset"})
			case "notes":
				return post(cmd, c, id, "prep/notes", map[string]string{"notes": notes})
			case "finish":
				return post(cmd, c, id, "prep/finish", map[string]string{"notes": notes})
			}
			return fmt.Errorf("unknown prep action %q", args[1])
		},
	}
	c.Flags().StringVar(&notes, "notes", "", "preparation notes")
	return c
}

func speechCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "speech <session-id> <start|pause|resume|stop|complete>",
		Short: "Control the speech",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[1] {
			case "start", "pause", "resume", "stop", "complete":
				return post(cmd, client(), args[0], "speech/"+args[1], nil)
			}
			return fmt.Errorf("unknown speech action %q", args[1])
		},
	}
}

func sayCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "say <session-id> <text...>",
		Short: "Add a final transcript fragment to the speech",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"text": strings.Join(args[1:], " "), "is_final": true}
			return post(cmd, client(), args[0], "speech/fragments", body)
		},
	}
}

func poiCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "poi <session-id> <accept|reject>",
		Short: "Answer the live point of information",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[1] != "accept" && args[1] != "reject" {
				return fmt.Errorf("answer must be accept or reject, got %q", args[1])
			}
			return post(cmd, client(), args[0], "poi/"+args[1], nil)
		},
	}
}

func aiCmd(client func() *Client) *cobra.Command {
	var text string
	c := &cobra.Command{
		Use:   "ai <session-id> <seat>",
		Short: "Record a speech for another seat, written by the model unless --content is given",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return post(cmd, client(), args[0], "speeches/ai", map[string]string{"role": args[1], "content": text})
		},
	}
	c.Flags().StringVar(&text, "content", "", "speech text")
	return c
}

func reportCmd(client func() *Client) *cobra.Command {
	var wait time.Duration
	c := &cobra.Command{
		Use:   "report <session-id>",
		Short: "Request grading and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, id := client(), args[0]
			var out map[string]any
			if err := c.Do(cmd.Context(), http.MethodPost, "/sessions/"+id+"/report", nil, &out); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()
			for out["status"] == "pending" {
				select {
				case <-ctx.Done():
					return errors.New("report still pending")
				case <-time.After(500 * time.Millisecond):
				}
				if err := c.Do(ctx, http.MethodGet, "/sessions/"+id+"/report", nil, &out); err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	c.Flags().DurationVar(&wait, "wait", 60*time.Second, "how long to wait for grading")
	return c
}

func resetCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <session-id>",
		Short: "Abandon the round and return to setup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return post(cmd, client(), args[0], "reset", nil)
		},
	}
}

func eventsCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "events <session-id>",
		Short: "List the session's recent events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Events []struct {
					Type    string         `json:"type"`
					Ts      time.Time      `json:"ts"`
					Payload map[string]any `json:"payload"`
				} `json:"events"`
			}
			if err := client().Do(cmd.Context(), http.MethodGet, "/sessions/"+args[0]+"/events", nil, &out); err != nil {
				return err
			}
			for _, ev := range out.Events {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-20s %v\n", ev.Ts.Format("15:04:05"), ev.Type, ev.Payload)
			}
			return nil
		},
	}
}

func tokenCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "token <session-id>",
		Short: "Mint a capture socket token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return post(cmd, client(), args[0], "capture-token", nil)
		},
	}
}

func motionsCmd(client func() *Client) *cobra.Command {
	var category string
	c := &cobra.Command{
		Use:   "motions",
		Short: "List the motion bank",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/motions"
			if category != "" {
				path += "?category=" + category
			}
			var out struct {
				Motions []string `json:"motions"`
			}
			if err := client().Do(cmd.Context(), http.MethodGet, path, nil, &out); err != nil {
				return err
			}
			for _, m := range out.Motions {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
	c.Flags().StringVar(&category, "category", "", "technology, economics, environment, social or politics")
	return c
}

func healthCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show the server's upstream checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out any
			err := client().Do(cmd.Context(), http.MethodGet, "/readyz", nil, &out)
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable {
				fmt.Fprintln(cmd.OutOrStdout(), apiErr.Message)
				return errors.New("server not ready")
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}
