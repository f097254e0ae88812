// Command demo runs a scripted session against a running simulator: log
// in, browse the live list, join a room, follow the host, send a gift and
// leave again. It is the quickest way to watch the whole pipeline work.
package main

import (
	"context"
	"log"
	"time"

	"brilho/internal/api"
	"brilho/internal/config"
	"brilho/internal/events"
	"brilho/internal/live"
	"brilho/internal/observability"
	"brilho/internal/store"
)

type logToaster struct{}

func (logToaster) Toast(level live.ToastLevel, message string) {
	log.Printf("[toast %s] %s", level, message)
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "brilho-demo",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExport,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   1.0,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client := api.NewClient(cfg.APIBaseURL, cfg.AuthToken, cfg.HTTPTimeout)
	if cfg.AuthToken == "" {
		login, err := client.Login(ctx, "demo", "password")
		if err != nil {
			log.Fatalf("Login failed: %v", err)
		}
		client.SetToken(login.Token)
	}

	me, err := client.GetUser(ctx, 1)
	if err != nil {
		log.Fatalf("Failed to load profile: %v", err)
	}
	st := store.New()
	st.SetMe(me)

	channel := events.NewChannel(events.Options{
		URL:      cfg.ChannelURL,
		MinDelay: cfg.ReconnectMinDelay,
		MaxDelay: cfg.ReconnectMaxDelay,
		Ticket:   client.IssueChannelTicket,
	})

	coord := live.New(st, client, channel, logToaster{})
	if err := coord.Start(ctx); err != nil {
		log.Fatalf("Failed to start live coordinator: %v", err)
	}
	defer coord.Stop()

	if err := coord.RefreshLists(ctx); err != nil {
		log.Printf("List refresh failed: %v", err)
	}
	snap := st.Snapshot()
	log.Printf("Signed in as %s: %d live streams, %d conversations, %d ledger entries",
		me.Username, len(snap.Streamers), len(snap.Conversations), len(snap.Purchases))
	if len(snap.Streamers) == 0 {
		log.Println("No live streams to join; done.")
		return
	}

	target := snap.Streamers[0]
	log.Printf("Joining room %d hosted by %s...", target.ID, target.HostName)
	if err := coord.JoinRoom(ctx, target); err != nil {
		log.Fatalf("Join failed: %v", err)
	}

	if err := coord.FollowUser(ctx, target.HostID); err != nil {
		log.Printf("Follow failed: %v", err)
	}
	if gifts := coord.GiftCatalog(); len(gifts) > 0 {
		if err := coord.SendGift(ctx, gifts[0].ID, 1); err != nil {
			log.Printf("Gift failed: %v", err)
		}
	}

	// Let pushed viewer counts and balance updates land.
	time.Sleep(3 * time.Second)
	if sess, ok := coord.Session(); ok {
		log.Printf("In room %d: %d viewers (peak %d), %d coins earned this session",
			sess.RoomID, sess.Viewers, sess.PeakViewers, sess.Coins)
	}

	if err := coord.LeaveRoom(ctx); err != nil {
		log.Printf("Leave failed: %v", err)
	}
	log.Println("Done.")
}
