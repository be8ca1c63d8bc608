package main

import (
	"context"
	"log/slog"
	"os"

	"spotdetector/lib/configutil"
	"spotdetector/lib/scrapers/sechat"
	"spotdetector/lib/scrapers/stackexchange"
	"spotdetector/lib/serviceutil"
	"spotdetector/lib/sqliteutil"
	"spotdetector/lib/telemetry"
	"spotdetector/services/detector"
	"spotdetector/services/detector/db"
)

type Config struct {
	Host     string `json:"host"`
	DbPath   string `json:"db_path"`
	Email    string `json:"email"`
	Password string `json:"password"`

	Chat struct {
		Enabled  bool   `json:"enabled"`
		Host     string `json:"host"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Room     int64  `json:"room"`
	} `json:"chat"`

	Detector detector.Config `json:"detector"`
}

func main() {
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to load configuration", err)
	}
	if config.Host == "" {
		config.Host = "https://stackoverflow.com"
	}
	if config.DbPath == "" {
		config.DbPath = "posts.db"
	}
	if config.Detector.ReportsEndpoint == "" {
		config.Detector.ReportsEndpoint = "https://reports.sobotics.org/api/v2/report/create"
	}
	if config.Detector.ReportDays == 0 {
		config.Detector.ReportDays = 30
	}
	if config.Detector.ReportReviews == 0 {
		config.Detector.ReportReviews = 5
	}

	tel, err := telemetry.SetupFromEnv(ctx, "spotdetector")
	if err != nil && !os.IsNotExist(err) {
		serviceutil.Fatal("failed to initialize telemetry", err)
	}
	if tel.TracerProvider != nil {
		defer tel.Shutdown(context.Background())
	}

	database, err := sqliteutil.OpenDB(db.Schema, config.DbPath)
	if err != nil {
		serviceutil.Fatal("failed to open db", err)
	}

	browser, err := stackexchange.NewBrowser(stackexchange.BrowserOptions{
		Host: config.Host,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize browser", err)
	}
	err = browser.Login(ctx, config.Email, config.Password)
	if err != nil {
		serviceutil.Fatal("failed to login", err)
	}
	userId, err := browser.LoggedInUserId(ctx)
	if err != nil {
		serviceutil.Fatal("failed to resolve logged in user", err)
	}
	slog.Info("logged in", "user_id", userId)

	var api *stackexchange.Api
	if config.Detector.ApiKey != "" {
		api = stackexchange.NewApi(config.Detector.ApiKey, config.Detector.ApiSite)
	}

	var chat *sechat.Client
	if config.Chat.Enabled {
		chat, err = sechat.NewClient(sechat.ClientOptions{
			Host:   config.Chat.Host,
			RoomId: config.Chat.Room,
		})
		if err != nil {
			serviceutil.Fatal("failed to initialize chat client", err)
		}
		err = chat.Login(ctx, config.Host, config.Chat.Email, config.Chat.Password)
		if err != nil {
			serviceutil.Fatal("failed to login to chat", err)
		}
	}

	service := detector.NewService(database, browser, api, chat, config.Detector)
	service.StartDaemons(ctx)

	slog.Info("spotdetector running")
	<-ctx.Done()
}
