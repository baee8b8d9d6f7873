package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"biomesxp.io/internal/protocol"
)

var (
	watchURL  string
	watchPoll time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <contract> <function> [args...]",
	Short: "Stream a view function's value from xpd",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, watchURL, nil)
		if err != nil {
			return fmt.Errorf("dial %s: %w", watchURL, err)
		}
		defer conn.Close()
		go func() {
			<-ctx.Done()
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		}()

		if err := conn.WriteJSON(protocol.HelloMsg{
			Type:            protocol.TypeHello,
			ProtocolVersion: protocol.Version,
			ClientName:      "xpctl",
		}); err != nil {
			return err
		}
		var welcome protocol.WelcomeMsg
		if err := conn.ReadJSON(&welcome); err != nil {
			return fmt.Errorf("handshake: %w", err)
		}
		logger.Printf("session %s on chain %d", welcome.SessionID, welcome.ChainID)

		if err := conn.WriteJSON(protocol.SubscribeMsg{
			Type:            protocol.TypeSubscribe,
			ProtocolVersion: protocol.Version,
			SubID:           "watch",
			Contract:        args[0],
			Function:        args[1],
			Args:            args[2:],
			PollMS:          int(watchPoll / time.Millisecond),
		}); err != nil {
			return err
		}
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeUpdate:
				var u protocol.UpdateMsg
				if err := json.Unmarshal(msg, &u); err != nil {
					continue
				}
				if asJSON {
					fmt.Println(string(msg))
					continue
				}
				fmt.Printf("%s %s\n", u.At, u.Text)
			case protocol.TypeError:
				var e protocol.ErrorMsg
				if err := json.Unmarshal(msg, &e); err != nil {
					continue
				}
				fmt.Printf("error %s: %s\n", e.Code, e.Message)
			}
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchURL, "url", "ws://127.0.0.1:8080/v1/stream", "xpd stream url")
	watchCmd.Flags().DurationVar(&watchPoll, "poll", 4*time.Second, "poll interval")
	rootCmd.AddCommand(watchCmd)
}
