package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

type probeFlags struct {
	url     string
	timeout time.Duration
}

func newProbeCmd() *cobra.Command {
	flags := &probeFlags{}
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Talk to a running gateway over websocket",
	}
	cmd.PersistentFlags().StringVar(&flags.url, "url", "ws://127.0.0.1:8765", "gateway base url")
	cmd.PersistentFlags().DurationVar(&flags.timeout, "timeout", 30*time.Second, "how long to wait for replies")

	cmd.AddCommand(newProbeSendCmd(flags), newProbeObserveCmd(flags))
	return cmd
}

func newProbeSendCmd(flags *probeFlags) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one world snapshot as a producer and print the reply",
		Long: `Reads a producer message (an envelope or a native snapshot) from --file, or
stdin when --file is "-", sends it to /ws and prints the gateway's reply.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := readPayload(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), flags.url+"/ws", nil)
			if err != nil {
				return fmt.Errorf("dial producer endpoint: %w", err)
			}
			defer conn.Close()

			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return fmt.Errorf("send: %w", err)
			}
			_ = conn.SetReadDeadline(time.Now().Add(flags.timeout))
			_, reply, err := conn.ReadMessage()
			if err != nil {
				return fmt.Errorf("await reply: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), reply)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "message file, - for stdin")
	return cmd
}

func newProbeObserveCmd(flags *probeFlags) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "observe",
		Short: "Connect as an observer and print broadcast decisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), flags.url+"/ws/web", nil)
			if err != nil {
				return fmt.Errorf("dial observer endpoint: %w", err)
			}
			defer conn.Close()

			for seen := 0; count <= 0 || seen < count; seen++ {
				_ = conn.SetReadDeadline(time.Now().Add(flags.timeout))
				_, msg, err := conn.ReadMessage()
				if err != nil {
					if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
						return nil
					}
					return fmt.Errorf("read broadcast: %w", err)
				}
				if err := printJSON(cmd.OutOrStdout(), msg); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "stop after n messages, 0 for no limit")
	return cmd
}

func readPayload(stdin io.Reader, file string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return nil, fmt.Errorf("message is not valid JSON")
	}
	return data, nil
}

func printJSON(w io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, werr := fmt.Fprintln(w, string(raw))
		return werr
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
