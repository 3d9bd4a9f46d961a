package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openmotics-go/openmotics/internal/ui"
	"github.com/openmotics-go/openmotics/pkg/models"
)

// Command flags
var (
	levelFlag int
	allFlag   bool
	yesFlag   bool
)

func init() {
	rootCmd.AddCommand(
		switchCommand("outputs", "output", func(b *backend) switcher[models.Output] { return b.Outputs },
			[]string{"ID", "NAME", "TYPE", "STATE", "LEVEL", "ROOM"}, outputRow),
		switchCommand("lights", "light", func(b *backend) switcher[models.Light] { return b.Lights },
			[]string{"ID", "NAME", "STATE", "LEVEL", "DIMMABLE", "ROOM"}, lightRow),
		shuttersCmd,
		listCommand("sensors", "List sensors with their readings", func(b *backend) lister[models.Sensor] { return b.Sensors },
			[]string{"ID", "NAME", "QUANTITY", "TEMPERATURE", "HUMIDITY", "BRIGHTNESS"}, sensorRow),
		listCommand("inputs", "List inputs", func(b *backend) lister[models.Input] { return b.Inputs },
			[]string{"ID", "NAME", "STATE", "ROOM"}, inputRow),
		listCommand("energy", "List energy sensors with their power readings", func(b *backend) lister[models.EnergySensor] { return b.EnergySensors },
			[]string{"ID", "NAME", "VOLTAGE", "CURRENT", "POWER", "FREQUENCY"}, energyRow),
		listCommand("ventilations", "List ventilation units (cloud)", func(b *backend) lister[models.VentilationUnit] { return b.Ventilations },
			[]string{"ID", "NAME", "STATE", "MODE", "LEVEL"}, ventilationRow),
		groupActionsCmd,
		thermostatsCmd,
		installationsCmd,
	)
}

// parseID parses a positive record id argument.
func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

// listCommand builds a command that prints every record of one kind.
func listCommand[T any](use, short string, api func(*backend) lister[T], headers []string, row func(T) []string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, api, headers, row)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, api, headers, row)
		},
	})
	return cmd
}

func runList[T any](cmd *cobra.Command, api func(*backend) lister[T], headers []string, row func(T) []string) error {
	return withBackend(cmd, func(ctx context.Context, b *backend) error {
		return printList(ctx, cmd.OutOrStdout(), b, kindOf(cmd), api, headers, row)
	})
}

// kindOf names what a list command lists: "outputs" for "outputs list".
func kindOf(cmd *cobra.Command) string {
	if cmd.Name() == "list" && cmd.HasParent() {
		return cmd.Parent().Name()
	}
	return cmd.Name()
}

// printList fetches the records of one kind and prints them as a table.
func printList[T any](ctx context.Context, w io.Writer, b *backend, kind string, api func(*backend) lister[T], headers []string, row func(T) []string) error {
	l := api(b)
	if l == nil {
		return fmt.Errorf("%s are not available on the %s", kind, b.Target)
	}
	records, err := l.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", kind, err)
	}
	ui.NewPrinter(w).PrintTable(buildTable(records, headers, row))
	return nil
}

func buildTable[T any](records []T, headers []string, row func(T) []string) *ui.Table {
	t := ui.NewTable(headers...)
	for _, r := range records {
		t.AddRow(row(r)...)
	}
	return t
}

// switchCommand builds list/on/off/toggle for outputs and lights.
func switchCommand[T any](use, noun string, api func(*backend) switcher[T], headers []string, row func(T) []string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("List and switch %ss", noun),
	}
	listAPI := func(b *backend) lister[T] { return api(b) }

	list := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %ss with their state", noun),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, listAPI, headers, row)
		},
	}

	on := &cobra.Command{
		Use:   "on <id>",
		Short: fmt.Sprintf("Turn %s on", withArticle(noun)),
		Example: fmt.Sprintf(`  omctl %[1]s on 3
  omctl %[1]s on 3 --level 40`, use),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var level *int
			if cmd.Flags().Changed("level") {
				level = &levelFlag
			}
			return runCommand(cmd, fmt.Sprintf("%s %d on", capitalize(noun), id), func(ctx context.Context, b *backend) error {
				return api(b).TurnOn(ctx, id, level)
			})
		},
	}
	on.Flags().IntVar(&levelFlag, "level", 100, "Dimmer level 0-100")

	off := &cobra.Command{
		Use:   "off <id> | --all",
		Short: fmt.Sprintf("Turn %s off, or all of them", withArticle(noun)),
		Args: func(cmd *cobra.Command, args []string) error {
			if allFlag {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if allFlag {
				if !yesFlag && !ui.Confirm(os.Stdin, cmd.ErrOrStderr(), fmt.Sprintf("Turn off all %ss", noun),
					[]string{fmt.Sprintf("Every %s of the installation that is on will be switched off", noun)}, "yes") {
					return nil
				}
				return runCommand(cmd, fmt.Sprintf("All %ss off", noun), func(ctx context.Context, b *backend) error {
					return api(b).TurnOffAll(ctx)
				})
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runCommand(cmd, fmt.Sprintf("%s %d off", capitalize(noun), id), func(ctx context.Context, b *backend) error {
				return api(b).TurnOff(ctx, id)
			})
		},
	}
	off.Flags().BoolVar(&allFlag, "all", false, fmt.Sprintf("Turn off every %s", noun))
	off.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Skip the confirmation")

	toggle := &cobra.Command{
		Use:   "toggle <id>",
		Short: fmt.Sprintf("Toggle %s", withArticle(noun)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runCommand(cmd, fmt.Sprintf("%s %d toggled", capitalize(noun), id), func(ctx context.Context, b *backend) error {
				return api(b).Toggle(ctx, id)
			})
		},
	}

	cmd.AddCommand(list, on, off, toggle)
	return cmd
}

// runCommand executes one command on the backend and prints a result box.
func runCommand(cmd *cobra.Command, done string, fn func(ctx context.Context, b *backend) error) error {
	return withBackend(cmd, func(ctx context.Context, b *backend) error {
		if err := fn(ctx, b); err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess(done, map[string]string{"Target": b.Target})
		return nil
	})
}

func withArticle(noun string) string {
	if strings.ContainsRune("aeiou", rune(noun[0])) {
		return "an " + noun
	}
	return "a " + noun
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Shutters

var shuttersCmd = &cobra.Command{
	Use:   "shutters",
	Short: "List and move shutters",
}

func init() {
	shuttersCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List shutters with their position",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runList(cmd, func(b *backend) lister[models.Shutter] { return b.Shutters },
					[]string{"ID", "NAME", "TYPE", "STATE", "POSITION", "LOCKED"}, shutterRow)
			},
		},
		shutterMove("up", "Move a shutter up", shutterAPI.Up),
		shutterMove("down", "Move a shutter down", shutterAPI.Down),
		shutterMove("stop", "Stop a moving shutter", shutterAPI.Stop),
		&cobra.Command{
			Use:     "position <id> <position>",
			Short:   "Move a shutter to a position",
			Example: "  omctl shutters position 2 50",
			Args:    cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				position, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid position %q", args[1])
				}
				return runCommand(cmd, fmt.Sprintf("Shutter %d moving to %d", id, position), func(ctx context.Context, b *backend) error {
					return b.Shutters.ChangePosition(ctx, id, position)
				})
			},
		},
	)
}

func shutterMove(use, short string, move func(shutterAPI, context.Context, int) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runCommand(cmd, fmt.Sprintf("Shutter %d %s", id, use), func(ctx context.Context, b *backend) error {
				return move(b.Shutters, ctx, id)
			})
		},
	}
}

// Group actions

var groupActionsCmd = &cobra.Command{
	Use:     "groupactions",
	Aliases: []string{"scenes"},
	Short:   "List and trigger group actions",
}

func init() {
	groupActionsCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List group actions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runList(cmd, func(b *backend) lister[models.GroupAction] { return b.GroupActions },
					[]string{"ID", "NAME", "ACTIONS"}, groupActionRow)
			},
		},
		&cobra.Command{
			Use:   "trigger <id>",
			Short: "Run a group action",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return runCommand(cmd, fmt.Sprintf("Group action %d triggered", id), func(ctx context.Context, b *backend) error {
					return b.GroupActions.Trigger(ctx, id)
				})
			},
		},
	)
}

// Thermostats

var thermostatsCmd = &cobra.Command{
	Use:   "thermostats",
	Short: "Show and adjust thermostats",
}

func init() {
	thermostatsCmd.AddCommand(
		&cobra.Command{
			Use:   "groups",
			Short: "List thermostat groups",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runList(cmd, func(b *backend) lister[models.ThermostatGroup] { return b.ThermostatGroups },
					[]string{"ID", "NAME", "MODE", "STATE"}, thermostatGroupRow)
			},
		},
		&cobra.Command{
			Use:   "units",
			Short: "List thermostat units with temperatures",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runList(cmd, func(b *backend) lister[models.ThermostatUnit] { return b.ThermostatUnits },
					[]string{"ID", "NAME", "ACTUAL", "SETPOINT", "PRESET", "GROUP"}, thermostatUnitRow)
			},
		},
		&cobra.Command{
			Use:     "setpoint <unit-id> <temperature>",
			Short:   "Set the target temperature of a unit",
			Example: "  omctl thermostats setpoint 1 21.5",
			Args:    cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				temperature, err := strconv.ParseFloat(args[1], 64)
				if err != nil {
					return fmt.Errorf("invalid temperature %q", args[1])
				}
				return runCommand(cmd, fmt.Sprintf("Unit %d set to %.1f°C", id, temperature), func(ctx context.Context, b *backend) error {
					return b.ThermostatUnits.SetSetpoint(ctx, id, temperature)
				})
			},
		},
		&cobra.Command{
			Use:     "preset <unit-id> <preset>",
			Short:   "Select the preset of a unit (AUTO, AWAY, PARTY, VACATION, MANUAL)",
			Example: "  omctl thermostats preset 1 away",
			Args:    cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				preset := strings.ToUpper(args[1])
				return runCommand(cmd, fmt.Sprintf("Unit %d preset %s", id, preset), func(ctx context.Context, b *backend) error {
					return b.ThermostatUnits.SetPreset(ctx, id, preset)
				})
			},
		},
		&cobra.Command{
			Use:     "mode <group-id> <heating|cooling|on|off>",
			Short:   "Switch a thermostat group between heating and cooling, or on and off",
			Example: "  omctl thermostats mode 0 cooling\n  omctl thermostats mode 0 off",
			Args:    cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				arg := strings.ToUpper(args[1])
				return runCommand(cmd, fmt.Sprintf("Group %d %s", id, strings.ToLower(arg)), func(ctx context.Context, b *backend) error {
					switch arg {
					case "ON", "OFF":
						return b.ThermostatGroups.SetState(ctx, id, arg == "ON")
					default:
						return b.ThermostatGroups.SetMode(ctx, id, arg)
					}
				})
			},
		},
	)
}

// Installations

var installationsCmd = &cobra.Command{
	Use:   "installations",
	Short: "List the installations of the cloud account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(ctx context.Context, b *backend) error {
			if b.Installations == nil {
				return fmt.Errorf("installations are only available in the cloud (use --cloud)")
			}
			installations, err := b.Installations.GetAll(ctx, "")
			if err != nil {
				return fmt.Errorf("failed to list installations: %w", err)
			}
			ui.NewPrinter(cmd.OutOrStdout()).PrintTable(buildTable(installations,
				[]string{"ID", "NAME", "MODEL", "VERSION", "ONLINE"}, installationRow))
			return nil
		})
	},
}

func init() {
	installationsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: installationsCmd.Short,
		Args:  cobra.NoArgs,
		RunE:  installationsCmd.RunE,
	})
}
