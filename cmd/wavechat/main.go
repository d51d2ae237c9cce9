package main

import (
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"

	"github.com/wavechat/wavechat/chat"
	"github.com/wavechat/wavechat/config"
	"github.com/wavechat/wavechat/globals"
	"github.com/wavechat/wavechat/handlers"
	"github.com/wavechat/wavechat/metrics"
	"github.com/wavechat/wavechat/persistence"
	"github.com/wavechat/wavechat/presence"
	"github.com/wavechat/wavechat/userdir"
	"github.com/wavechat/wavechat/ws"
)

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
	addr       = pflag.String("addr", "localhost:8000", "service address (including port)")
	sslCert    = pflag.String("ssl-cert", "", "SSL cert (optional)")
	sslKey     = pflag.String("ssl-key", "", "SSL key (optional)")
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

	tracker := presence.NewTracker()
	directory := userdir.NewClient(cfg)

	hub := ws.NewHub(cfg, tracker, directory)
	rooms := chat.NewRoomDirectory(persister)
	messages := chat.NewMessageStore(cfg, persister, rooms, directory, hub)
	reactions := chat.NewReactionLedger(persister, hub)
	hub.Rooms = rooms
	hub.Messages = messages
	hub.Reactions = reactions
	go hub.Run()

	sweeper := chat.NewRetentionSweeper(cfg, persister)
	sweeper.OnSweep(func(deleted int64) {
		metrics.SweepDeleted.Add(float64(deleted))
	})
	cronRunner := cron.New(cron.WithLocation(time.UTC))
	if _, err := sweeper.Schedule(cronRunner, cfg.RetentionConfig.CronSpec); err != nil {
		panic(err)
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	handler := &handlers.Handler{
		Cfg:       cfg,
		Hub:       hub,
		Messages:  messages,
		Reactions: reactions,
		Rooms:     rooms,
		Presence:  tracker,
		Sweeper:   sweeper,
	}

	globals.AppLogger.Info("listening", "addr", *addr)
	if *sslCert != "" && *sslKey != "" {
		err = http.ListenAndServeTLS(*addr, *sslCert, *sslKey, handler.NewRouter())
	} else {
		err = http.ListenAndServe(*addr, handler.NewRouter())
	}
	globals.AppLogger.Error("stopped listening", "error", err)
}
