package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"sort"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/daemonp/ajax2mqtt/internal/account"
	"github.com/daemonp/ajax2mqtt/internal/config"
	"github.com/daemonp/ajax2mqtt/internal/log"
	"github.com/daemonp/ajax2mqtt/internal/types"
)

const (
	offlinePayload = "offline"
	onlinePayload  = "online"

	commandTimeout = 30 * time.Second
)

// Commander sends arming commands to the cloud API.
type Commander interface {
	ArmSpace(ctx context.Context, hubID string, force bool) error
	ArmNightMode(ctx context.Context, hubID string, force bool) error
	DisarmSpace(ctx context.Context, hubID string) error
}

type MQTT struct {
	config    *config.MQTTConfig
	account   *account.Account
	commander Commander
	log       *log.Logger
	client    mqtt.Client
	topics    *Topics
	pumpDone  chan struct{}
}

func NewMQTT(cfg *config.MQTTConfig, acc *account.Account, commander Commander, logger *log.Logger) *MQTT {
	return &MQTT{
		config:    cfg,
		account:   acc,
		commander: commander,
		log:       logger,
		topics:    NewTopics(cfg.Prefix),
	}
}

func (m *MQTT) Connect() error {
	opts := mqtt.NewClientOptions()

	scheme := "tcp"
	if m.config.CA != "" || m.config.Cert != "" {
		tlsConfig, err := m.tlsConfig()
		if err != nil {
			return fmt.Errorf("failed to configure TLS: %v", err)
		}
		opts.SetTLSConfig(tlsConfig)
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, m.config.Host, m.config.Port))

	opts.SetClientID(m.config.ClientID)
	opts.SetUsername(m.config.Username)
	opts.SetPassword(m.config.Password)
	opts.SetCleanSession(m.config.Clean)
	opts.SetKeepAlive(time.Duration(m.config.Keepalive) * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(m.onConnect)
	opts.SetConnectionLostHandler(m.onDisconnect)

	opts.SetWill(m.topics.Status(), offlinePayload, byte(m.config.QOS), m.config.Retain)

	m.client = mqtt.NewClient(opts)

	if token := m.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %v", token.Error())
	}

	m.log.Info("Connected to MQTT broker: %s:%d", m.config.Host, m.config.Port)

	m.pumpDone = make(chan struct{})
	go m.pump()

	return nil
}

func (m *MQTT) tlsConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: !m.config.RejectUnauthorized,
	}

	if m.config.CA != "" {
		pem, err := ioutil.ReadFile(m.config.CA)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %v", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", m.config.CA)
		}
		tlsConfig.RootCAs = pool
	}

	if m.config.Cert != "" && m.config.Key != "" {
		cert, err := tls.LoadX509KeyPair(m.config.Cert, m.config.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %v", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func (m *MQTT) onConnect(client mqtt.Client) {
	m.log.Info("MQTT connection established")
	m.publishOnlineStatus()
	m.subscribeTopics()
	m.publishAccountState()
}

func (m *MQTT) onDisconnect(client mqtt.Client, err error) {
	m.log.Error("MQTT connection lost: %v", err)
}

func (m *MQTT) subscribeTopics() {
	topic := m.topics.SpaceCommandWildcard()
	token := m.client.Subscribe(topic, byte(m.config.QOS), m.handleMessage)
	if token.Wait() && token.Error() != nil {
		m.log.Error("Failed to subscribe to topic %s: %v", topic, token.Error())
	} else {
		m.log.Debug("Subscribed to topic: %s", topic)
	}
}

// pump forwards account notifications to the broker. It exits when the
// account closes its notification channel.
func (m *MQTT) pump() {
	defer close(m.pumpDone)

	for n := range m.account.Notifications() {
		switch v := n.(type) {
		case types.ModelChanged:
			m.publishModelChange(v)
		case types.AuditEvent:
			m.publishAuditEvent(v)
		case types.ScenarioEvent:
			m.publishScenarioEvent(v)
		default:
			m.log.Debug("Ignoring notification of type %T", v)
		}
	}
}

func (m *MQTT) handleMessage(client mqtt.Client, msg mqtt.Message) {
	topic := msg.Topic()
	payload := string(msg.Payload())

	m.log.Debug("Received message on topic %s: %s", topic, payload)

	space := m.spaceForCommandTopic(topic)
	if space == nil {
		m.log.Warning("Received command for unknown space: %s", topic)
		return
	}

	m.handleSpaceCommand(space, payload)
}

func (m *MQTT) spaceForCommandTopic(topic string) *types.Space {
	for _, space := range m.account.Spaces() {
		if topic == m.topics.SpaceCommand(space) {
			return space
		}
	}
	return nil
}

var spaceCommands = map[string]func(*MQTT, context.Context, string) error{
	"arm":             (*MQTT).sendArm,
	"force_arm":       (*MQTT).sendForceArm,
	"arm_night":       (*MQTT).sendArmNight,
	"force_arm_night": (*MQTT).sendForceArmNight,
	"disarm":          (*MQTT).sendDisarm,
}

func (m *MQTT) handleSpaceCommand(space *types.Space, command string) {
	send, ok := spaceCommands[command]
	if !ok {
		m.log.Warning("Unknown space command: %s", command)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	// The push event confirming the change can arrive before the command
	// response, so the pending mark goes down before the send.
	m.account.MarkPendingCommand(space.HubID)

	if err := send(m, ctx, space.HubID); err != nil {
		m.log.Error("Failed to send %s command for %s: %v", command, space.Name, err)
	}
}

func (m *MQTT) sendArm(ctx context.Context, hubID string) error {
	return m.commander.ArmSpace(ctx, hubID, false)
}

func (m *MQTT) sendForceArm(ctx context.Context, hubID string) error {
	return m.commander.ArmSpace(ctx, hubID, true)
}

func (m *MQTT) sendArmNight(ctx context.Context, hubID string) error {
	return m.commander.ArmNightMode(ctx, hubID, false)
}

func (m *MQTT) sendForceArmNight(ctx context.Context, hubID string) error {
	return m.commander.ArmNightMode(ctx, hubID, true)
}

func (m *MQTT) sendDisarm(ctx context.Context, hubID string) error {
	return m.commander.DisarmSpace(ctx, hubID)
}

func (m *MQTT) publishOnlineStatus() {
	m.publish(m.topics.Status(), onlinePayload, true)
}

func (m *MQTT) publishAccountState() {
	for _, space := range m.account.Spaces() {
		m.PublishSpaceStatus(space)
		for _, device := range sortedDevices(space) {
			m.PublishDeviceStatus(space, device)
		}
	}
}

func (m *MQTT) publishModelChange(change types.ModelChanged) {
	space, ok := m.account.Space(change.HubID)
	if !ok {
		return
	}

	if change.DeviceID != "" {
		if device, ok := space.Devices[change.DeviceID]; ok {
			m.PublishDeviceStatus(space, device)
		}
		return
	}

	m.PublishSpaceStatus(space)
	for _, device := range sortedDevices(space) {
		m.PublishDeviceStatus(space, device)
	}
}

func (m *MQTT) PublishSpaceStatus(space *types.Space) {
	status := map[string]interface{}{
		"hub_id":  space.HubID,
		"name":    space.Name,
		"state":   string(space.SecurityState),
		"devices": len(space.Devices),
	}
	m.publish(m.topics.Space(space), status, true)
}

func (m *MQTT) PublishDeviceStatus(space *types.Space, device *types.Device) {
	status := map[string]interface{}{
		"id":     device.ID,
		"name":   device.Name,
		"type":   device.Type,
		"online": device.Online,
	}
	if device.BatteryLevel != nil {
		status["battery_level"] = *device.BatteryLevel
	}
	if device.SignalStrength != nil {
		status["signal_strength"] = *device.SignalStrength
	}
	if device.FirmwareVersion != "" {
		status["firmware_version"] = device.FirmwareVersion
	}
	if device.BatteryState != "" {
		status["battery_state"] = device.BatteryState
	}
	for key, value := range device.Attributes {
		status[key] = value
	}
	m.publish(m.topics.Device(space, device), status, true)
}

func (m *MQTT) publishAuditEvent(ev types.AuditEvent) {
	payload := map[string]interface{}{
		"id":     ev.ID,
		"hub_id": ev.HubID,
		"space":  ev.SpaceName,
		"action": ev.Action,
		"source": ev.SourceName,
		"tag":    ev.Tag,
		"time":   ev.Time.UTC().Format(time.RFC3339),
	}
	m.publish(m.topics.Event(), payload, m.config.RetainLog)
}

func (m *MQTT) publishScenarioEvent(ev types.ScenarioEvent) {
	payload := map[string]interface{}{
		"id":        ev.ID,
		"hub_id":    ev.HubID,
		"space":     ev.SpaceName,
		"scenario":  ev.ScenarioName,
		"initiator": ev.InitiatorType,
		"target":    ev.TargetName,
		"tag":       ev.Tag,
		"time":      ev.Time.UTC().Format(time.RFC3339),
	}
	m.publish(m.topics.Scenario(), payload, m.config.RetainLog)
}

func (m *MQTT) GetPrefix() string {
	return m.config.Prefix
}

func (m *MQTT) Topics() *Topics {
	return m.topics
}

func (m *MQTT) Publish(topic string, payload interface{}, retain bool) {
	m.publish(topic, payload, retain)
}

func (m *MQTT) publish(topic string, message interface{}, retain bool) {
	payload, err := encodePayload(message)
	if err != nil {
		m.log.Error("Failed to marshal message for topic %s: %v", topic, err)
		return
	}

	token := m.client.Publish(topic, byte(m.config.QOS), retain, payload)
	if token.Wait() && token.Error() != nil {
		m.log.Error("Failed to publish message to topic %s: %v", topic, token.Error())
	} else {
		m.log.Debug("Published message to topic: %s", topic)
	}
}

// encodePayload passes strings and raw bytes through untouched so that
// plain payloads like the status topic are not published JSON-quoted.
func encodePayload(message interface{}) ([]byte, error) {
	switch v := message.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

func sortedDevices(space *types.Space) []*types.Device {
	devices := make([]*types.Device, 0, len(space.Devices))
	for _, device := range space.Devices {
		devices = append(devices, device)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices
}

// Close waits for the notification pump to drain, then disconnects.
// The account must be closed first so the pump can exit.
func (m *MQTT) Close() {
	if m.pumpDone != nil {
		<-m.pumpDone
	}
	if m.client != nil && m.client.IsConnected() {
		m.publish(m.topics.Status(), offlinePayload, true)
		m.client.Disconnect(250)
	}
}
