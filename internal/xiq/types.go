package xiq

import (
	"encoding/json"
	"strconv"
)

// FunctionAP is the device_function value of an access point.
const FunctionAP = "AP"

// Device is one entry of the device inventory.
type Device struct {
	ID             int64   `json:"id"`
	Hostname       *string `json:"hostname"`
	DeviceFunction string  `json:"device_function"`
	SerialNumber   *string `json:"serial_number"`
	ProductType    *string `json:"product_type"`
	Connected      bool    `json:"connected"`
	LocationID     *int64  `json:"location_id"`
}

func (d Device) IsAccessPoint() bool {
	return d.DeviceFunction == FunctionAP
}

// Name returns the hostname, or the ID when no hostname is set.
func (d Device) Name() string {
	if d.Hostname != nil && *d.Hostname != "" {
		return *d.Hostname
	}
	return strconv.FormatInt(d.ID, 10)
}

// Wlan is a configured SSID as reported by one radio.
type Wlan struct {
	SSID              string  `json:"ssid"`
	Status            *string `json:"ssid_status"`
	SecurityType      *string `json:"ssid_security_type"`
	BSSID             *string `json:"bssid"`
	NetworkPolicyName *string `json:"network_policy_name"`
}

// DevicePage is one page of GET /devices.
type DevicePage struct {
	Data       []Device `json:"data"`
	TotalCount *int     `json:"total_count"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
}

type radioInfoResponse struct {
	Data []radioDeviceInfo `json:"data"`
}

type radioDeviceInfo struct {
	DeviceID int64   `json:"device_id"`
	Radios   []radio `json:"radios"`
}

type radio struct {
	Wlans []Wlan `json:"wlans"`
}

// Location is a node of the location tree.
type Location struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	UniqueName string     `json:"unique_name"`
	Type       string     `json:"type,omitempty"`
	Children   []Location `json:"children,omitempty"`
}

// UnmarshalJSON accepts both unique_name and uniqueName.
func (l *Location) UnmarshalJSON(data []byte) error {
	type plain Location
	var aux struct {
		plain
		UniqueNameCamel string `json:"uniqueName"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*l = Location(aux.plain)
	if l.UniqueName == "" {
		l.UniqueName = aux.UniqueNameCamel
	}
	return nil
}
