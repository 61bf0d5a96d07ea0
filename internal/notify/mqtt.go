// internal/notify/mqtt.go
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/sseevri/substation-monitor/internal/poller"
)

const connectTimeout = 10 * time.Second

// Publisher pushes meter records and anomaly alerts to an MQTT broker.
type Publisher struct {
	client     mqtt.Client
	topic      string
	thresholds Thresholds
	log        logrus.FieldLogger
}

// NewPublisher connects to the broker and returns a ready publisher.
func NewPublisher(broker, clientID, topic string, thresholds Thresholds, log logrus.FieldLogger) (*Publisher, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetWill(topic+"/status", "offline", 0, true)
	opts.OnConnect = func(client mqtt.Client) {
		log.WithField("broker", broker).Info("notify: mqtt connected")
		client.Publish(topic+"/status", 0, true, "online")
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.WithError(err).Warn("notify: mqtt connection lost")
	}

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("notify: mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("notify: mqtt connect to %s: %w", broker, err)
	}

	return &Publisher{client: c, topic: topic, thresholds: thresholds, log: log}, nil
}

// Publish sends one meter record as retained JSON and raises alerts for
// any anomalies found in it. Anomalies are only evaluated when the meter
// actually answered; a dead link is reported by the record itself.
func (p *Publisher) Publish(rec poller.OutputRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("notify: marshal record for meter %d: %w", rec.MeterID, err)
	}

	topic := fmt.Sprintf("%s/meters/%d", p.topic, rec.MeterID)
	p.client.Publish(topic, 0, true, payload)

	if rec.Comm != poller.CommOK {
		return nil
	}

	for _, msg := range Detect(rec.MeterName, rec.Readings, p.thresholds) {
		p.log.WithFields(logrus.Fields{
			"meter":   rec.MeterName,
			"anomaly": msg,
		}).Warn("notify: anomaly detected")
		p.client.Publish(p.topic+"/alerts", 0, false, msg)
	}
	return nil
}

// Close announces the offline state and disconnects.
func (p *Publisher) Close() error {
	p.client.Publish(p.topic+"/status", 0, true, "offline").WaitTimeout(time.Second)
	p.client.Disconnect(250)
	return nil
}
