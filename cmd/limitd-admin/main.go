// Package main provides the limitd-admin command line tool, a thin client
// over the admin HTTP surface.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	authToken string
)

var rootCmd = &cobra.Command{
	Use:   "limitd-admin",
	Short: "Admin CLI for the limitd rate limiting service",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "limitd server base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("LIMITD_ADMIN_TOKEN"), "admin bearer token")

	configsCmd := &cobra.Command{
		Use:   "configs",
		Short: "Manage rate limit configurations",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, _ := cmd.Flags().GetString("type")
			path := "/api/v1/configs"
			if filter != "" {
				path += "?type=" + url.QueryEscape(filter)
			}

			var payload struct {
				Configs []struct {
					Name        string `json:"name"`
					DisplayName string `json:"display_name"`
					Type        string `json:"type"`
					Max         int    `json:"max"`
					WindowMs    int64  `json:"window_ms"`
					KeyStrategy string `json:"key_strategy"`
					Enabled     bool   `json:"enabled"`
				} `json:"configs"`
			}
			if err := call(http.MethodGet, path, nil, &payload); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tMAX\tWINDOW\tSTRATEGY\tENABLED")
			for _, c := range payload.Configs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%t\n",
					c.Name, c.Type, c.Max,
					(time.Duration(c.WindowMs) * time.Millisecond).String(),
					c.KeyStrategy, c.Enabled)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().String("type", "", "filter by config type")

	toggleCmd := &cobra.Command{
		Use:   "toggle <name> <on|off>",
		Short: "Enable or disable a configuration",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled := args[1] == "on"
			if !enabled && args[1] != "off" {
				return fmt.Errorf("second argument must be on or off, got %q", args[1])
			}
			reason, _ := cmd.Flags().GetString("reason")

			body := map[string]interface{}{"enabled": enabled, "change_reason": reason}
			if err := call(http.MethodPost, "/api/v1/configs/"+url.PathEscape(args[0])+"/toggle", body, nil); err != nil {
				return err
			}
			fmt.Printf("config %s %s\n", args[0], args[1])
			return nil
		},
	}
	toggleCmd.Flags().String("reason", "", "audit reason for the change")

	configsCmd.AddCommand(listCmd, toggleCmd)

	resetCmd := &cobra.Command{
		Use:   "reset <config> [key]",
		Short: "Reset one counter key, or a config's whole namespace",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/reset/" + url.PathEscape(args[0])
			if len(args) == 2 {
				path += "/" + url.PathEscape(args[1])
			}

			var result struct {
				Cleared int `json:"cleared"`
			}
			if err := call(http.MethodPost, path, struct{}{}, &result); err != nil {
				return err
			}
			fmt.Printf("cleared %d counter(s)\n", result.Cleared)
			return nil
		},
	}

	activeCmd := &cobra.Command{
		Use:   "active",
		Short: "List currently tracked counter buckets",
		RunE: func(cmd *cobra.Command, args []string) error {
			configName, _ := cmd.Flags().GetString("config")
			path := "/api/v1/active"
			if configName != "" {
				path += "?config=" + url.QueryEscape(configName)
			}

			var payload struct {
				Limits []struct {
					Key          string    `json:"key"`
					ConfigName   string    `json:"config_name"`
					CurrentCount int64     `json:"current_count"`
					MaxAllowed   int       `json:"max_allowed"`
					ResetTime    time.Time `json:"reset_time"`
					Blocked      bool      `json:"blocked"`
				} `json:"limits"`
			}
			if err := call(http.MethodGet, path, nil, &payload); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tCONFIG\tCOUNT\tMAX\tRESETS\tBLOCKED")
			for _, l := range payload.Limits {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%t\n",
					l.Key, l.ConfigName, l.CurrentCount, l.MaxAllowed,
					l.ResetTime.Format(time.RFC3339), l.Blocked)
			}
			return w.Flush()
		},
	}
	activeCmd.Flags().String("config", "", "scope to one configuration")

	rootCmd.AddCommand(configsCmd, resetCmd, activeCmd)
}

// call performs one API request and decodes the data field of the envelope.
func call(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, serverURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("server returned %s with unreadable body", resp.Status)
	}
	if !envelope.Success {
		if envelope.Error != nil {
			return fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		return fmt.Errorf("request failed with status %s", resp.Status)
	}
	if out != nil && envelope.Data != nil {
		return json.Unmarshal(envelope.Data, out)
	}
	return nil
}
