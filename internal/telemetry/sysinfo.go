package telemetry

import (
	"encoding/json"
	"fmt"

	"fleetwatch/internal/model"
)

type registrationPayload struct {
	DeviceName string          `json:"deviceName"`
	SystemInfo json.RawMessage `json:"systemInfo"`
}

type systemInfoPayload struct {
	System model.SystemHardware `json:"system"`
	OS     model.SystemOS       `json:"os"`
	CPU    model.SystemCPU      `json:"cpu"`
	Memory model.SystemMemory   `json:"memory"`
	Disk   json.RawMessage      `json:"disk"`
}

// DecodeSystemInfo reads a device_register payload. The system description may sit
// under "systemInfo" or at the top level, and its disk list may arrive as a JSON
// string. A missing or unreadable disk list becomes empty.
func DecodeSystemInfo(raw []byte) (*model.SystemInfo, string, error) {
	raw = unwrapString(raw)

	var reg registrationPayload
	if err := json.Unmarshal(raw, &reg); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	body := []byte(reg.SystemInfo)
	if len(body) == 0 || string(body) == "null" {
		body = raw
	}
	body = unwrapString(body)

	var payload systemInfoPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, "", fmt.Errorf("%w: system info: %v", ErrMalformedPayload, err)
	}

	info := &model.SystemInfo{
		System: payload.System,
		OS:     payload.OS,
		CPU:    payload.CPU,
		Memory: payload.Memory,
		Disk:   decodeDiskDevices(payload.Disk),
	}
	return info, reg.DeviceName, nil
}

func decodeDiskDevices(raw json.RawMessage) []model.DiskDevice {
	disks := make([]model.DiskDevice, 0)
	if len(raw) == 0 {
		return disks
	}
	raw = unwrapString(raw)
	if err := json.Unmarshal(raw, &disks); err != nil || disks == nil {
		return make([]model.DiskDevice, 0)
	}
	return disks
}

// unwrapString returns the contents of a JSON string literal, or raw unchanged.
func unwrapString(raw []byte) []byte {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []byte(s)
	}
	return raw
}
