package fitbit

import (
	"context"
	"encoding/json"
	"net/http"
)

// Device battery levels and types as reported by the source API
const (
	BatteryLow   = "Low"
	BatteryEmpty = "Empty"

	DeviceTypeTracker = "TRACKER"
)

// Device represents one device paired with the user's account
type Device struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	DeviceVersion string `json:"deviceVersion"`
	Battery       string `json:"battery"`
	LastSyncTime  string `json:"lastSyncTime"`
}

// LowBattery reports whether the device battery needs charging
func (d Device) LowBattery() bool {
	return d.Battery == BatteryLow || d.Battery == BatteryEmpty
}

// GetDevices fetches the user's device list. Returns an empty list on a
// non-success response.
func (c *Client) GetDevices(ctx context.Context, userID string) []Device {
	body, status, err := c.doRequest(ctx, http.MethodGet, "/1/user/-/devices.json", "get_devices", userID)
	if err != nil {
		c.logger.Warn("Device fetch failed", "user_id", userID, "error", err)
		return nil
	}
	if status != http.StatusOK {
		c.logger.Warn("Device fetch returned non-success", "user_id", userID, "status", status)
		return nil
	}

	var devices []Device
	if err := json.Unmarshal(body, &devices); err != nil {
		c.logger.Error("Failed to decode devices response", "user_id", userID, "error", err)
		return nil
	}
	return devices
}
