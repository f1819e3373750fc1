// Command chat-cli is a terminal client for the chat server's websocket endpoints.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"biblo-chat-be/internal/dto"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	serverAddr   string
	pingInterval time.Duration

	userColor   = color.New(color.FgCyan, color.Bold)
	botColor    = color.New(color.FgGreen)
	infoColor   = color.New(color.FgYellow)
	errorColor  = color.New(color.FgRed, color.Bold)
	statusColor = color.New(color.FgMagenta)
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chat-cli",
		Short: "Talk to the Biblo chat server from a terminal",
	}
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "ws://localhost:8000", "server address")

	rootCmd.AddCommand(newChatCmd(), newStatusCmd(), newEndCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newChatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat; an empty line or /quit exits",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialStream(serverAddr, sessionID)
			if err != nil {
				return err
			}
			defer client.Close()

			var stopWatch func()
			defer func() {
				if stopWatch != nil {
					stopWatch()
				}
			}()

			scanner := bufio.NewScanner(os.Stdin)
			for {
				userColor.Print("you> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				prompt := strings.TrimSpace(scanner.Text())
				if prompt == "" || prompt == "/quit" {
					return nil
				}

				botColor.Print("biblo> ")
				out, err := client.Ask(prompt, func(token string) { botColor.Print(token) })
				fmt.Println()
				if err != nil {
					errorColor.Printf("turn failed: %v\n", err)
					continue
				}
				infoColor.Printf("[session %s, message %s]\n", client.SessionID, out.MessageID)

				if stopWatch == nil && client.SessionID != "" {
					statuses, stop, err := watchSession(serverAddr, client.SessionID, pingInterval)
					if err != nil {
						errorColor.Printf("liveness socket: %v\n", err)
						continue
					}
					stopWatch = stop
					go func() {
						for s := range statuses {
							if s == dto.SessionStatusEnded {
								statusColor.Println("\n[session ended by server]")
							}
						}
					}()
				}
			}
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "resume an existing session")
	cmd.Flags().DurationVar(&pingInterval, "ping", 30*time.Second, "liveness ping interval")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <session_id>",
		Short: "Print the status of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, stop, err := watchSession(serverAddr, args[0], time.Hour)
			if err != nil {
				return err
			}
			defer stop()

			select {
			case s, ok := <-statuses:
				if !ok {
					return fmt.Errorf("connection closed before status")
				}
				statusColor.Printf("%s: %s\n", args[0], s)
			case <-time.After(5 * time.Second):
				return fmt.Errorf("timed out waiting for status")
			}
			return nil
		},
	}
}

func newEndCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "end <session_id>",
		Short: "End a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(dto.EndSessionRequest{SessionID: args[0]})
			resp, err := http.Post(httpURL(serverAddr)+"/end_session", "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			var env struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			if !env.Success {
				errorColor.Printf("%d: %s\n", resp.StatusCode, env.Message)
				return fmt.Errorf("end session failed")
			}
			infoColor.Println(env.Message)
			return nil
		},
	}
}
