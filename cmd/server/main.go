package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/lectigo/lectigo/internal/config"
	"github.com/lectigo/lectigo/internal/db"
	"github.com/lectigo/lectigo/internal/dialogue"
	"github.com/lectigo/lectigo/internal/httpapi"
	"github.com/lectigo/lectigo/internal/store/rabbitmq"
	"github.com/lectigo/lectigo/internal/store/redisstore"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	gdb := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err := db.Migrate(gdb); err != nil {
		logrus.WithError(err).Fatal("db migrate failed")
	}

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rds.Ping(ctx); err != nil {
		logrus.WithError(err).Warn("redis unavailable, per-session locking disabled")
		rds = nil
	}
	cancel()

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		logrus.WithError(err).Warn("rabbitmq unavailable, session summaries will be generated inline")
		pub = nil
	} else {
		defer pub.Close()
	}

	// keep a typed-nil *Publisher from sneaking into the interface
	var jobPub dialogue.JobPublisher
	if pub != nil {
		jobPub = pub
	}

	r := httpapi.NewRouter(gdb, cfg, rds, jobPub)

	logrus.WithField("addr", cfg.HTTPAddr).Info("server started")
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}
