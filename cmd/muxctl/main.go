// Command muxctl is the operator CLI for a running muxproxyd: health checks,
// session listing, and broadcast.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	var serverFlag string
	var adminKeyFlag string

	root := &cobra.Command{
		Use:   "muxctl",
		Short: "operator CLI for muxproxyd",
	}
	root.PersistentFlags().StringVar(&serverFlag, "server", envOr("MUXCTL_SERVER", "http://localhost:8080"), "muxproxyd base URL")
	root.PersistentFlags().StringVar(&adminKeyFlag, "admin-key", envOr("MUXCTL_ADMIN_KEY", ""), "admin key for gated endpoints")

	root.AddCommand(
		healthCmd(&serverFlag),
		sessionsCmd(&serverFlag, &adminKeyFlag),
		broadcastCmd(&serverFlag, &adminKeyFlag),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

func healthCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "check daemon health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := getJSON(*server+"/health", "", &out); err != nil {
				return err
			}
			fmt.Printf("version=%v sessions=%v\n", out["version"], out["sessions"])
			return nil
		},
	}
}

type sessionRow struct {
	Token         string `json:"token"`
	UserID        string `json:"userId"`
	CharacterName string `json:"characterName"`
	IsWizard      bool   `json:"isWizard"`
	HasBrowser    bool   `json:"hasBrowser"`
	MudConnected  bool   `json:"mudConnected"`
}

func sessionsCmd(server, adminKey *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "list active sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Sessions []sessionRow `json:"sessions"`
			}
			if err := getJSON(*server+"/sessions", *adminKey, &out); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "TOKEN\tUSER\tCHARACTER\tWIZARD\tBROWSER\tMUD")
			for _, s := range out.Sessions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%v\t%v\n", s.Token, s.UserID, s.CharacterName, s.IsWizard, s.HasBrowser, s.MudConnected)
			}
			return tw.Flush()
		},
	}
}

func broadcastCmd(server, adminKey *string) *cobra.Command {
	return &cobra.Command{
		Use:   "broadcast [message]",
		Short: "send a message to every attached browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string]string{"message": args[0]})
			var out map[string]any
			if err := postJSON(*server+"/broadcast", *adminKey, body, &out); err != nil {
				return err
			}
			fmt.Printf("sent to %v sessions\n", out["sent"])
			return nil
		},
	}
}

func getJSON(url, adminKey string, out any) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if adminKey != "" {
		req.Header.Set("X-Admin-Key", adminKey)
	}
	return doJSON(req, out)
}

func postJSON(url, adminKey string, body []byte, out any) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if adminKey != "" {
		req.Header.Set("X-Admin-Key", adminKey)
	}
	return doJSON(req, out)
}

func doJSON(req *http.Request, out any) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %s", resp.Status, string(data))
	}
	return json.Unmarshal(data, out)
}
