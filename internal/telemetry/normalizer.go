// Package telemetry turns loosely structured agent payloads into typed snapshots
// and evaluates alert thresholds against them.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"fleetwatch/internal/model"
)

// ErrMalformedPayload the payload is not a JSON object, even after unwrapping a string encoding
var ErrMalformedPayload = errors.New("malformed telemetry payload")

// maxEpochMillis keeps float to int64 conversion in range
const maxEpochMillis = 1 << 62

// Normalize decodes one telemetry tick. The payload may be a JSON object or a JSON
// string holding one. Array sections sent as JSON strings are decoded, anything
// unparseable becomes an empty list. Absent scalars stay nil.
func Normalize(raw []byte, now time.Time) (*model.Snapshot, error) {
	var payload interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if s, ok := payload.(string); ok {
		if err := json.Unmarshal([]byte(s), &payload); err != nil {
			return nil, fmt.Errorf("%w: string payload: %v", ErrMalformedPayload, err)
		}
	}
	obj, ok := payload.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: expected object, got %T", ErrMalformedPayload, payload)
	}
	return fromObject(obj, now), nil
}

func fromObject(obj map[string]interface{}, now time.Time) *model.Snapshot {
	snap := &model.Snapshot{
		Disk:      decodeDisks(obj["disk"]),
		Network:   decodeNetwork(obj["network"]),
		Uptime:    number(obj["uptime"]),
		Timestamp: timestamp(obj["timestamp"], now),
	}

	if cpu := object(obj["cpu"]); cpu != nil {
		snap.CPU = &model.CPUStats{
			Usage:   number(cpu["usage"]),
			LoadAvg: numbers(cpu["loadAvg"]),
			Cores:   decodeCoreLoads(cpu["cores"]),
		}
	}

	if temp := object(obj["temperature"]); temp != nil {
		snap.Temperature = &model.TemperatureStats{
			Main:  number(temp["main"]),
			Max:   number(temp["max"]),
			Cores: numbers(temp["cores"]),
		}
	}

	if mem := object(obj["memory"]); mem != nil {
		snap.Memory = &model.MemoryStats{
			Total:        number(mem["total"]),
			Used:         number(mem["used"]),
			Free:         number(mem["free"]),
			Available:    number(mem["available"]),
			UsagePercent: number(mem["usagePercent"]),
			SwapTotal:    number(mem["swapTotal"]),
			SwapUsed:     number(mem["swapUsed"]),
			SwapFree:     number(mem["swapFree"]),
		}
	}

	if procs := object(obj["processes"]); procs != nil {
		snap.Processes = &model.ProcessStats{
			All:      number(procs["all"]),
			Running:  number(procs["running"]),
			Blocked:  number(procs["blocked"]),
			Sleeping: number(procs["sleeping"]),
			List:     decodeProcesses(procs["list"]),
		}
	}

	return snap
}

func decodeDisks(v interface{}) []model.DiskUsage {
	disks := make([]model.DiskUsage, 0)
	for _, item := range array(v) {
		d, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		disks = append(disks, model.DiskUsage{
			FS:           text(d["fs"]),
			Type:         text(d["type"]),
			Size:         number(d["size"]),
			Used:         number(d["used"]),
			Available:    number(d["available"]),
			UsagePercent: number(d["usagePercent"]),
			Mount:        text(d["mount"]),
		})
	}
	return disks
}

func decodeNetwork(v interface{}) []model.NetworkIface {
	ifaces := make([]model.NetworkIface, 0)
	for _, item := range array(v) {
		n, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		ifaces = append(ifaces, model.NetworkIface{
			Iface:     text(n["iface"]),
			RxBytes:   number(n["rx_bytes"]),
			TxBytes:   number(n["tx_bytes"]),
			RxSec:     number(n["rx_sec"]),
			TxSec:     number(n["tx_sec"]),
			RxDropped: number(n["rx_dropped"]),
			TxDropped: number(n["tx_dropped"]),
			RxErrors:  number(n["rx_errors"]),
			TxErrors:  number(n["tx_errors"]),
		})
	}
	return ifaces
}

func decodeCoreLoads(v interface{}) []model.CoreLoad {
	cores := make([]model.CoreLoad, 0)
	for _, item := range array(v) {
		switch c := item.(type) {
		case map[string]interface{}:
			cores = append(cores, model.CoreLoad{Load: number(c["load"])})
		default:
			if n := number(c); n != nil {
				cores = append(cores, model.CoreLoad{Load: n})
			}
		}
	}
	return cores
}

func decodeProcesses(v interface{}) []model.ProcessInfo {
	list := make([]model.ProcessInfo, 0)
	for _, item := range array(v) {
		p, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		info := model.ProcessInfo{
			Name:    text(p["name"]),
			CPU:     number(p["cpu"]),
			Mem:     number(p["mem"]),
			Command: text(p["command"]),
		}
		if pid := number(p["pid"]); pid != nil {
			info.PID = int(*pid)
		}
		list = append(list, info)
	}
	return list
}

// array accepts a JSON array or a string containing one.
func array(v interface{}) []interface{} {
	switch a := v.(type) {
	case []interface{}:
		return a
	case string:
		var decoded []interface{}
		if err := json.Unmarshal([]byte(a), &decoded); err == nil {
			return decoded
		}
	}
	return nil
}

// object accepts a JSON object or a string containing one.
func object(v interface{}) map[string]interface{} {
	switch o := v.(type) {
	case map[string]interface{}:
		return o
	case string:
		var decoded map[string]interface{}
		if err := json.Unmarshal([]byte(o), &decoded); err == nil {
			return decoded
		}
	}
	return nil
}

func numbers(v interface{}) []float64 {
	out := make([]float64, 0)
	for _, item := range array(v) {
		if n := number(item); n != nil {
			out = append(out, *n)
		}
	}
	return out
}

func number(v interface{}) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func text(v interface{}) string {
	s, _ := v.(string)
	return s
}

// timestamp accepts RFC 3339 strings and epoch milliseconds, falling back to now.
// The result is UTC with millisecond precision. Years outside [0,9999] cannot be
// encoded as JSON and count as unparseable.
func timestamp(v interface{}, now time.Time) time.Time {
	ts := now
	switch t := v.(type) {
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			ts = parsed
		} else if ms, err := strconv.ParseInt(t, 10, 64); err == nil {
			ts = time.UnixMilli(ms)
		}
	case float64:
		if !math.IsNaN(t) && !math.IsInf(t, 0) && math.Abs(t) < maxEpochMillis {
			ts = time.UnixMilli(int64(t))
		}
	}
	if y := ts.UTC().Year(); y < 0 || y > 9999 {
		ts = now
	}
	return ts.UTC().Truncate(time.Millisecond)
}
