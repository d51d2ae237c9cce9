package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wavechat/wavechat/chat"
	"github.com/wavechat/wavechat/config"
	"github.com/wavechat/wavechat/globals"
	"github.com/wavechat/wavechat/persistence"
	"github.com/wavechat/wavechat/types"
)

// A very simple CLI tool for the administration of wavechat rooms and
// message retention.

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
)

func main() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		<-c
		globals.AppLogger.Error("interrupted!")
		os.Exit(1)
	}()

	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)

	pflag.Parse()

	cfg, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}
	if cfg.LogLevel != "" {
		globals.AppLogger.SetLevel(hclog.LevelFromString(cfg.LogLevel))
	}

	persister, err := persistence.NewPersister(cfg)
	if err != nil {
		panic(err)
	}
	if persister == nil {
		panic("no persistence configured")
	}
	defer persister.Close()

	rooms := chat.NewRoomDirectory(persister)
	sweeper := chat.NewRetentionSweeper(cfg, persister)

	var cmdShow = &cobra.Command{
		Use:   "show",
		Short: "Show rooms, members or messages",
		Args:  cobra.MinimumNArgs(0),
	}
	var cmdShowRooms = &cobra.Command{
		Use:   "rooms",
		Short: "Show rooms",
		Long:  `show rooms lists all public rooms.`,
		Args:  cobra.MinimumNArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			allRooms, err := rooms.PublicRooms()
			if err != nil {
				globals.AppLogger.Error("could not get rooms", "error", err)
				return
			}
			r, err := json.Marshal(allRooms)
			if err != nil {
				globals.AppLogger.Error("could not marshal rooms", "error", err)
				return
			}
			fmt.Println(string(r))
		},
	}
	var cmdShowRoom = &cobra.Command{
		Use:   "room [room id]",
		Short: "Show room",
		Long:  `show room prints detail information about the room with the given id.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			room, err := rooms.GetRoom(args[0])
			if err != nil {
				globals.AppLogger.Error("could not get room", "error", err)
				return
			}
			r, err := json.Marshal(room)
			if err != nil {
				globals.AppLogger.Error("could not marshal room", "error", err)
				return
			}
			fmt.Println(string(r))
		},
	}
	var cmdShowMembers = &cobra.Command{
		Use:   "members [room id]",
		Short: "Show room members",
		Long:  `show members lists the member user ids of the room with the given id.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			members, err := rooms.RoomMembers(args[0])
			if err != nil {
				globals.AppLogger.Error("could not get members", "error", err)
				return
			}
			m, err := json.Marshal(members)
			if err != nil {
				globals.AppLogger.Error("could not marshal members", "error", err)
				return
			}
			fmt.Println(string(m))
		},
	}
	var cmdShowMessages = &cobra.Command{
		Use:   "messages [room id]",
		Short: "Show messages",
		Long:  `show messages prints the newest page of messages of the room with the given id.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			messages, err := persister.RoomMessages(args[0], 0, cfg.HistoryConfig.PageSize)
			if err != nil {
				globals.AppLogger.Error("could not get messages", "error", err)
				return
			}
			m, err := json.Marshal(messages)
			if err != nil {
				globals.AppLogger.Error("could not marshal messages", "error", err)
				return
			}
			fmt.Println(string(m))
		},
	}
	var cmdSet = &cobra.Command{
		Use:   "set",
		Short: "create/update a room",
		Args:  cobra.MinimumNArgs(0),
	}
	var cmdSetRoom = &cobra.Command{
		Use:   "room [room definition]",
		Short: "Set room",
		Long:  `set room creates or updates a room. If the room definition is "-", the definition is read from STDIN.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var r io.Reader
			if args[0] == "-" {
				r = os.Stdin
			} else {
				r = bytes.NewReader([]byte(args[0]))
			}
			room := types.Room{}
			if err := json.NewDecoder(r).Decode(&room); err != nil {
				globals.AppLogger.Error("could not decode room", "error", err)
				return
			}
			if room.Id == "" {
				globals.AppLogger.Error("no room id")
				return
			}
			if room.Type == "" {
				room.Type = types.RoomTypePublic
			}
			if err := persister.StoreRoom(&room); err != nil {
				globals.AppLogger.Error("could not store room", "error", err)
				return
			}
			if room.CreatedBy != 0 {
				member, err := persister.IsMember(room.Id, room.CreatedBy)
				if err == nil && !member {
					err = persister.AddMember(&types.RoomMember{RoomId: room.Id, UserId: room.CreatedBy, Role: types.RoleOwner})
				}
				if err != nil {
					globals.AppLogger.Error("could not store owner membership", "error", err)
					return
				}
			}
		},
	}
	var cmdSweep = &cobra.Command{
		Use:   "sweep",
		Short: "Run the retention sweep",
		Long:  `sweep deletes public messages older than the configured retention window.`,
		Args:  cobra.MinimumNArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			deleted, err := sweeper.SweepNow()
			if err != nil {
				globals.AppLogger.Error("could not sweep", "error", err)
				return
			}
			fmt.Println(deleted)
		},
	}

	var rootCmd = &cobra.Command{Use: "wavechat-admin"}
	rootCmd.AddCommand(cmdShow, cmdSet, cmdSweep)
	cmdShow.AddCommand(cmdShowRooms, cmdShowRoom, cmdShowMembers, cmdShowMessages)
	cmdSet.AddCommand(cmdSetRoom)
	if err := rootCmd.Execute(); err != nil {
		globals.AppLogger.Error("could not execute command", "error", err)
	}
}
