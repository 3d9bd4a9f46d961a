package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/openmotics-go/openmotics/internal/logging"
	"github.com/openmotics-go/openmotics/internal/relay"
	"github.com/openmotics-go/openmotics/internal/ui"
	"github.com/openmotics-go/openmotics/pkg/events"
)

// Stream command flags
var (
	eventTypes   []string
	watchLimit   int
	plainOutput  bool
	brokerURL    string
	mqttUsername string
	mqttClientID string
	topicPrefix  string
	mqttQoS      int
	mqttRetain   bool
)

const envMQTTPassword = "OPENMOTICS_MQTT_PASSWORD"

func init() {
	watchCmd.Flags().StringSliceVarP(&eventTypes, "type", "t", nil, "Event types to follow (default: all), e.g. OUTPUT_CHANGE")
	watchCmd.Flags().IntVar(&watchLimit, "limit", ui.DefaultWatchLimit, "Number of events kept on screen")
	watchCmd.Flags().BoolVar(&plainOutput, "plain", false, "Print one line per event instead of the live view")

	relayCmd.Flags().StringSliceVarP(&eventTypes, "type", "t", nil, "Event types to relay (default: all)")
	relayCmd.Flags().StringVar(&brokerURL, "broker", "", "MQTT broker URL, e.g. tcp://localhost:1883")
	relayCmd.Flags().StringVar(&mqttUsername, "mqtt-username", "", "MQTT username (password from "+envMQTTPassword+")")
	relayCmd.Flags().StringVar(&mqttClientID, "client-id", "", "MQTT client id (default: random)")
	relayCmd.Flags().StringVar(&topicPrefix, "topic-prefix", relay.DefaultTopicPrefix, "Topic prefix")
	relayCmd.Flags().IntVar(&mqttQoS, "qos", 0, "MQTT quality of service (0, 1 or 2)")
	relayCmd.Flags().BoolVar(&mqttRetain, "retain", false, "Publish retained messages")
	_ = relayCmd.MarkFlagRequired("broker")

	rootCmd.AddCommand(watchCmd, relayCmd)
}

// normalizeTypes upper-cases event type names given on the command line.
func normalizeTypes(types []string) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the live event stream",
	Long: `Follow the event stream of the gateway or cloud installation.

On a terminal the latest events are shown in a live view; press q to quit.
Otherwise, or with --plain, one line is printed per event until interrupted.`,
	Example: `  omctl watch
  omctl watch --type OUTPUT_CHANGE --type SHUTTER_CHANGE
  omctl watch --cloud --installation 21 --plain`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		types := normalizeTypes(eventTypes)
		return withBackend(cmd, func(ctx context.Context, b *backend) error {
			stream, err := b.Subscribe(ctx, types...)
			if err != nil {
				return fmt.Errorf("failed to subscribe: %w", err)
			}

			if plainOutput || !term.IsTerminal(int(os.Stdout.Fd())) {
				return printEvents(ctx, cmd.OutOrStdout(), stream.Events())
			}

			filter := "all"
			if len(types) > 0 {
				filter = strings.Join(types, ", ")
			}
			model := ui.NewWatchModel("Event stream", cmd.CommandPath(), map[string]string{
				"Target": b.Target,
				"Types":  filter,
			}, stream, watchLimit)
			return ui.RunWatch(ctx, model)
		})
	},
}

// printEvents writes one line per event until the channel closes or ctx ends.
func printEvents(ctx context.Context, w io.Writer, in <-chan events.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-in:
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "%s  %s  %s\n", ev.ReceivedAt.Format("15:04:05"), ev, string(ev.Data))
		}
	}
}

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Publish the event stream on an MQTT broker",
	Long: `Subscribe to the event stream and publish every event on an MQTT broker.

Events are published as JSON on <prefix>/<installation>/<type>/<id>, where
installation is "local" for a local gateway. The relay announces itself on
<prefix>/relay/status and runs until interrupted.`,
	Example: `  omctl relay --broker tcp://localhost:1883
  omctl relay --broker ssl://broker:8883 --mqtt-username omctl --qos 1 --retain`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if mqttQoS < 0 || mqttQoS > 2 {
			return fmt.Errorf("invalid qos %d (want 0, 1 or 2)", mqttQoS)
		}
		cfg := relay.Config{
			Broker:      brokerURL,
			ClientID:    mqttClientID,
			Username:    mqttUsername,
			Password:    os.Getenv(envMQTTPassword),
			TopicPrefix: topicPrefix,
			QoS:         byte(mqttQoS),
			Retain:      mqttRetain,
		}
		types := normalizeTypes(eventTypes)

		return withBackend(cmd, func(ctx context.Context, b *backend) error {
			r, err := relay.Connect(cfg, logging.GetLogger())
			if err != nil {
				return err
			}
			defer r.Close()

			stream, err := b.Subscribe(ctx, types...)
			if err != nil {
				return fmt.Errorf("failed to subscribe: %w", err)
			}

			p := ui.NewPrinter(cmd.ErrOrStderr())
			p.PrintHeader("Event relay", cmd.CommandPath(), map[string]string{
				"Target": b.Target,
				"Broker": cfg.Broker,
				"Topics": cfg.TopicPrefix + "/#",
			})

			n, err := r.Forward(ctx, stream.Events())
			p.Println(fmt.Sprintf("Relayed %d events", n))
			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		})
	},
}
