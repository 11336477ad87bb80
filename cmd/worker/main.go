package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/lectigo/lectigo/internal/ai"
	"github.com/lectigo/lectigo/internal/config"
	"github.com/lectigo/lectigo/internal/db"
	"github.com/lectigo/lectigo/internal/dialogue"
)

type jobMsg struct {
	JobID string `json:"job_id"`
}

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	gdb := db.Connect(cfg.DBDriver, cfg.DBDSN)

	name := strings.ToLower(cfg.AIProvider)
	if name == "" {
		name = "gemini"
	}
	model := cfg.GeminiModel
	if name == "ollama" {
		model = cfg.OllamaModel
	}
	reg := ai.DefaultRegistry(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.OllamaBaseURL)
	provider, err := reg.Get(context.Background(), name, model)
	if err != nil {
		logrus.Fatalf("unsupported AI_PROVIDER=%q", cfg.AIProvider)
	}

	repo := dialogue.NewRepo(gdb)
	svc := dialogue.NewService(repo, ai.NewSafe(provider), nil, cfg.ContextWindowSize)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logrus.WithError(err).Fatal("rabbit dial")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logrus.WithError(err).Fatal("rabbit channel")
	}
	defer ch.Close()

	// queue args must match the publisher's declaration
	if _, err := ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.RabbitQueue + ".dlq",
	}); err != nil {
		logrus.WithError(err).Fatal("queue declare")
	}

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		logrus.WithError(err).Fatal("qos")
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		logrus.WithError(err).Fatal("consume")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logrus.WithFields(logrus.Fields{
		"queue":       cfg.RabbitQueue,
		"concurrency": concurrency,
	}).Info("summary worker started")

	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var m jobMsg
				if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
					logrus.WithField("worker", workerID).WithError(err).Warn("bad message")
					_ = d.Nack(false, false)
					continue
				}

				jctx, cancel := context.WithTimeout(ctx, 60*time.Second)
				err := svc.ProcessSummaryJob(jctx, m.JobID)
				cancel()

				if err != nil {
					logrus.WithFields(logrus.Fields{
						"worker": workerID,
						"job":    m.JobID,
					}).WithError(err).Warn("summary job failed")
					_ = d.Nack(false, false) // dead-letters to the dlq
					continue
				}
				_ = d.Ack(false)
			}
		}(i)
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case d, ok := <-msgs:
			if !ok {
				break loop
			}
			jobs <- d
		}
	}

	close(jobs)
	wg.Wait()
	logrus.Info("summary worker stopped")
}
