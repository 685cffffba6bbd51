package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gatherly/gatherly/internal/logger"
	"github.com/gatherly/gatherly/internal/rabbit"
	"github.com/gatherly/gatherly/internal/storage"
	"github.com/gatherly/gatherly/internal/storagebuilder"
	log "github.com/sirupsen/logrus"
)

var configFile string

const (
	checkTimeout = time.Minute
	remindBefore = 24 * time.Hour
)

func newMessage(event storage.Event, startsAt time.Time) rabbit.Message {
	return rabbit.Message{
		EventID:  event.ID,
		Title:    event.Title,
		StartsAt: startsAt,
		OwnerID:  event.CreatedBy,
	}
}

func init() {
	flag.StringVar(&configFile, "config", "./configs/scheduler_config.yaml", "Path to configuration file")
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}

func main() {
	flag.Parse()

	config, err := NewConfig(configFile)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	err = logger.PrepareLogger(config.Logger)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}

	r := rabbit.New(config.Rabbit)
	if err := r.Connect(); err != nil {
		log.Errorf("failed to connect to rabbit: %v", err)
		return
	}
	defer r.Close()

	stor, err := storagebuilder.New(config.Storage)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()
		stor.Close(ctx)
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	startTime := time.Now().Add(-time.Minute)
	endTime := time.Now()
	checkTicker := time.NewTicker(checkTimeout)
	for {
		log.Debugf("check reminders: %s - %s", startTime, endTime)
		publishReminders(ctx, stor, r, startTime, endTime)

		select {
		case <-ctx.Done():
			return
		case <-checkTicker.C:
			startTime = endTime
			endTime = time.Now()
		}
	}
}

// publishReminders queues a reminder for every event whose remind instant
// (occurrence minus remindBefore) fell into the window [startTime, endTime).
func publishReminders(ctx context.Context, stor storage.Storage, r *rabbit.Provider, startTime, endTime time.Time) {
	events, err := stor.ListEvents(ctx)
	if err != nil {
		log.Errorf("failed to get events: %s", err)
		return
	}
	for _, event := range events {
		occursAt, err := event.OccursAt()
		if err != nil {
			log.Debugf("skipping event %q: %v", event.ID, err)
			continue
		}
		remindAt := occursAt.Add(-remindBefore)
		if remindAt.Before(startTime) || !remindAt.Before(endTime) {
			continue
		}
		log.Debugf("send reminder for event: %v", event.ID)
		m := newMessage(event, occursAt)
		data, err := json.Marshal(m)
		if err != nil {
			log.Errorf("failed to marshal reminder: %v", err)
			continue
		}
		if err := r.Publish(data); err != nil {
			log.Errorf("failed to publish reminder: %v", err)
		}
	}
}
