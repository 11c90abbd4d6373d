package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tcriess/lightspeed-poker/config"
	"github.com/tcriess/lightspeed-poker/globals"
	"github.com/tcriess/lightspeed-poker/persistence"
)

// A very simple CLI tool for inspecting persisted lightspeed-poker rooms and rounds.

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
)

func main() {
	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}

	if globalConfig.LogLevel != "" {
		globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))
	}

	persister, err := persistence.NewPersister(globalConfig)
	if err != nil {
		panic(err)
	}
	if persister == nil {
		panic("no persistence configured")
	}
	defer persister.Close()

	rootCmd := &cobra.Command{
		Use:   "lightspeed-poker-admin",
		Short: "inspect persisted planning poker rooms",
	}

	roomsCmd := &cobra.Command{
		Use:   "rooms",
		Short: "list all persisted rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := persister.GetRooms()
			if err != nil {
				return err
			}
			return printJSON(records)
		},
	}

	roundsCmd := &cobra.Command{
		Use:   "rounds [room id]",
		Short: "list the persisted rounds of a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rounds, err := persister.GetRounds(args[0], 0)
			if err != nil {
				return err
			}
			return printJSON(rounds)
		},
	}

	rootCmd.AddCommand(roomsCmd, roundsCmd)
	rootCmd.SetArgs(pflag.Args())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
