package ajax

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/daemonp/ajax2mqtt/internal/config"
	"github.com/daemonp/ajax2mqtt/internal/log"
	"github.com/daemonp/ajax2mqtt/internal/types"
	"github.com/daemonp/ajax2mqtt/internal/util"
)

const requestTimeout = 30 * time.Second

// Client talks to the Ajax cloud REST API: session login, full-state
// snapshots and arming commands.
type Client struct {
	config *config.AjaxConfig
	log    *log.Logger
	http   *http.Client

	mu           sync.Mutex
	sessionToken string
	userID       string
}

func NewClient(cfg *config.AjaxConfig, logger *log.Logger) *Client {
	return &Client{
		config: cfg,
		log:    logger,
		http:   &http.Client{Timeout: requestTimeout},
	}
}

type loginResponse struct {
	SessionToken string `json:"sessionToken"`
	UserID       string `json:"userId"`
}

// Login opens a session. It also runs transparently when the API answers
// 401 mid-flight.
func (c *Client) Login(ctx context.Context) error {
	c.log.Info("Logging in to Ajax cloud...")

	body := map[string]string{
		"login":    c.config.Email,
		"password": c.config.Password,
		"userRole": "USER",
	}

	var resp loginResponse
	if err := c.post(ctx, "/login", body, &resp); err != nil {
		return fmt.Errorf("failed to log in: %v", err)
	}
	if resp.SessionToken == "" || resp.UserID == "" {
		return fmt.Errorf("failed to log in: empty session in response")
	}

	c.mu.Lock()
	c.sessionToken = resp.SessionToken
	c.userID = resp.UserID
	c.mu.Unlock()

	c.log.Info("Logged in to Ajax cloud")
	return nil
}

type hubRecord struct {
	ID    string `json:"hubId"`
	Name  string `json:"name"`
	State string `json:"state"`
}

type deviceRecord struct {
	ID           string   `json:"id"`
	Name         string   `json:"deviceName"`
	Type         string   `json:"deviceType"`
	Online       bool     `json:"online"`
	BatteryLevel *int     `json:"batteryChargeLevelPercentage"`
	SignalLevel  *int     `json:"signalLevel"`
	Firmware     string   `json:"firmwareVersion"`
	Hardware     string   `json:"hardwareVersion"`
	BatteryState string   `json:"batteryState"`
	Temperature  *float64 `json:"temperature"`
	Tampered     *bool    `json:"tampered"`
}

// FetchSnapshot reads the authoritative account state: every hub and its
// devices.
func (c *Client) FetchSnapshot(ctx context.Context) ([]types.SpaceSnapshot, error) {
	_, userID := c.session()
	if userID == "" {
		return nil, fmt.Errorf("not logged in")
	}

	var hubs []hubRecord
	if err := c.get(ctx, fmt.Sprintf("/user/%s/hubs", userID), &hubs); err != nil {
		return nil, fmt.Errorf("failed to fetch hubs: %v", err)
	}

	snapshot := make([]types.SpaceSnapshot, 0, len(hubs))
	for _, hub := range hubs {
		if hub.ID == "" {
			continue
		}
		var devices []deviceRecord
		if err := c.get(ctx, fmt.Sprintf("/user/%s/hubs/%s/devices", userID, hub.ID), &devices); err != nil {
			return nil, fmt.Errorf("failed to fetch devices for hub %s: %v", hub.ID, err)
		}
		snapshot = append(snapshot, buildSpaceSnapshot(hub, devices))
	}

	c.log.Debug("Fetched snapshot: %d hubs", len(snapshot))
	return snapshot, nil
}

func buildSpaceSnapshot(hub hubRecord, devices []deviceRecord) types.SpaceSnapshot {
	snap := types.SpaceSnapshot{
		HubID:         hub.ID,
		Name:          util.Normalize(hub.Name),
		SecurityState: types.ParseSecurityState(hub.State),
	}
	for _, d := range devices {
		if d.ID == "" {
			continue
		}
		ds := types.DeviceSnapshot{
			ID:              d.ID,
			Name:            util.Normalize(d.Name),
			Type:            d.Type,
			Online:          d.Online,
			BatteryLevel:    d.BatteryLevel,
			SignalStrength:  d.SignalLevel,
			FirmwareVersion: d.Firmware,
			HardwareVersion: d.Hardware,
			BatteryState:    d.BatteryState,
		}
		if d.Temperature != nil {
			ds.Attributes = map[string]interface{}{"temperature": *d.Temperature}
		}
		if d.Tampered != nil {
			if ds.Attributes == nil {
				ds.Attributes = make(map[string]interface{})
			}
			ds.Attributes["tampered"] = *d.Tampered
		}
		snap.Devices = append(snap.Devices, ds)
	}
	return snap
}

type armingCommand struct {
	Command        string `json:"command"`
	IgnoreProblems bool   `json:"ignoreProblems"`
}

// ArmSpace arms a hub. force skips the cloud's readiness checks (open
// doors, offline devices).
func (c *Client) ArmSpace(ctx context.Context, hubID string, force bool) error {
	return c.sendArming(ctx, hubID, "ARM", force)
}

// ArmNightMode arms a hub's night group.
func (c *Client) ArmNightMode(ctx context.Context, hubID string, force bool) error {
	return c.sendArming(ctx, hubID, "NIGHT_MODE_ON", force)
}

// DisarmSpace disarms a hub. Disarm has no readiness checks to skip.
func (c *Client) DisarmSpace(ctx context.Context, hubID string) error {
	return c.sendArming(ctx, hubID, "DISARM", false)
}

func (c *Client) sendArming(ctx context.Context, hubID, command string, force bool) error {
	_, userID := c.session()
	if userID == "" {
		return fmt.Errorf("not logged in")
	}
	c.log.Info("Sending %s to hub %s (force=%t)", command, hubID, force)
	path := fmt.Sprintf("/user/%s/hubs/%s/commands/arming", userID, hubID)
	if err := c.put(ctx, path, armingCommand{Command: command, IgnoreProblems: force}, nil); err != nil {
		return fmt.Errorf("failed to send %s to hub %s: %v", command, hubID, err)
	}
	return nil
}

func (c *Client) session() (token, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionToken, c.userID
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) put(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	return c.doOnce(ctx, method, path, body, out, true)
}

// doOnce sends one JSON request. On a 401 it logs in again and retries a
// single time; a second 401 is surfaced.
func (c *Client) doOnce(ctx context.Context, method, path string, body, out interface{}, retry bool) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("X-Api-Key", c.config.APIKey)
	}
	if token, _ := c.session(); token != "" {
		req.Header.Set("X-Session-Token", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && retry && path != "/login" {
		c.log.Debug("Session rejected, logging in again")
		if err := c.Login(ctx); err != nil {
			return err
		}
		return c.doOnce(ctx, method, path, body, out, false)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %s for %s %s", resp.Status, method, path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}
	return nil
}
