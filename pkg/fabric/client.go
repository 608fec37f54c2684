package fabric

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

// Run connects to the configured broker and blocks until ctx is
// cancelled. The initial dial is retried with exponential backoff
// capped at 60s (matching cfg.ReconnectMax); once connected, autopaho's
// ConnectionManager owns reconnection for the life of the process.
func (s *Store) Run(ctx context.Context) error {
	brokerURL, err := url.Parse(s.cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("parsing broker url: %w", err)
	}

	willPayload, _ := json.Marshal(map[string]any{"online": false})

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       uint16(s.cfg.KeepAlive.Seconds()),
		ConnectUsername: s.cfg.Username,
		ConnectPassword: []byte(s.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   serverStatusTopic,
			Payload: willPayload,
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			s.logger.Info("fabric connected to broker", "broker", s.cfg.BrokerURL)
			pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			s.publishOnline(pubCtx, cm)
			s.subscribeAll(pubCtx, cm)
		},
		OnConnectError: func(err error) {
			s.logger.Warn("fabric connection error, autopaho will retry in background", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: s.cfg.ClientID,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	bo := backoff.NewExponentialBackOff()
	if s.cfg.ReconnectMax > 0 {
		bo.MaxInterval = s.cfg.ReconnectMax
	}

	cm, err := backoff.Retry(ctx, func() (*autopaho.ConnectionManager, error) {
		return autopaho.NewConnection(ctx, pahoCfg)
	}, backoff.WithBackOff(bo))
	if err != nil {
		return fmt.Errorf("establishing broker connection: %w", err)
	}

	cm.AddOnPublishReceived(func(pr autopaho.PublishReceived) (bool, error) {
		s.handleMessage(pr.Packet.Topic, pr.Packet.Payload)
		return true, nil
	})

	s.mu.Lock()
	s.cm = cm
	s.mu.Unlock()

	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		s.logger.Warn("fabric initial connection timed out, will retry in background", "error", err)
	}

	<-ctx.Done()
	return s.shutdown()
}

// shutdown publishes the retained offline status and disconnects. It is
// the mirror of the connect-time "publish online, subscribe" sequence.
func (s *Store) shutdown() error {
	s.mu.Lock()
	cm := s.cm
	s.mu.Unlock()
	if cm == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.publishOffline(shutdownCtx, cm)
	return cm.Disconnect(shutdownCtx)
}

func (s *Store) publishOnline(ctx context.Context, cm *autopaho.ConnectionManager) {
	s.publishStatus(ctx, cm, true)
}

func (s *Store) publishOffline(ctx context.Context, cm *autopaho.ConnectionManager) {
	s.publishStatus(ctx, cm, false)
}

func (s *Store) publishStatus(ctx context.Context, cm *autopaho.ConnectionManager, online bool) {
	payload, _ := json.Marshal(map[string]any{"online": online})
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   serverStatusTopic,
		Payload: payload,
		QoS:     1,
		Retain:  true,
	}); err != nil {
		s.logger.Warn("fabric publishing server status failed", "online", online, "error", err)
	}
}

func (s *Store) subscribeAll(ctx context.Context, cm *autopaho.ConnectionManager) {
	opts := make([]paho.SubscribeOptions, 0, len(subscriptions))
	for _, sub := range subscriptions {
		opts = append(opts, paho.SubscribeOptions{Topic: sub.filter, QoS: sub.qos})
	}
	if _, err := cm.Subscribe(ctx, &paho.Subscribe{Subscriptions: opts}); err != nil {
		s.logger.Error("fabric subscribe failed", "error", err)
	}
}
