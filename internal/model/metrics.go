package model

import "time"

// Snapshot one normalized telemetry tick. Nil pointers mean the agent did not report the value.
type Snapshot struct {
	CPU         *CPUStats         `json:"cpu,omitempty"`
	Temperature *TemperatureStats `json:"temperature,omitempty"`
	Memory      *MemoryStats      `json:"memory,omitempty"`
	Disk        []DiskUsage       `json:"disk"`
	Network     []NetworkIface    `json:"network"`
	Processes   *ProcessStats     `json:"processes,omitempty"`
	Uptime      *float64          `json:"uptime,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

type CPUStats struct {
	Usage   *float64   `json:"usage,omitempty"`
	LoadAvg []float64  `json:"loadAvg"`
	Cores   []CoreLoad `json:"cores"`
}

type CoreLoad struct {
	Load *float64 `json:"load,omitempty"`
}

type TemperatureStats struct {
	Main  *float64  `json:"main,omitempty"`
	Max   *float64  `json:"max,omitempty"`
	Cores []float64 `json:"cores"`
}

type MemoryStats struct {
	Total        *float64 `json:"total,omitempty"`
	Used         *float64 `json:"used,omitempty"`
	Free         *float64 `json:"free,omitempty"`
	Available    *float64 `json:"available,omitempty"`
	UsagePercent *float64 `json:"usagePercent,omitempty"`
	SwapTotal    *float64 `json:"swapTotal,omitempty"`
	SwapUsed     *float64 `json:"swapUsed,omitempty"`
	SwapFree     *float64 `json:"swapFree,omitempty"`
}

// DiskUsage one mounted filesystem
type DiskUsage struct {
	FS           string   `json:"fs,omitempty"`
	Type         string   `json:"type,omitempty"`
	Size         *float64 `json:"size,omitempty"`
	Used         *float64 `json:"used,omitempty"`
	Available    *float64 `json:"available,omitempty"`
	UsagePercent *float64 `json:"usagePercent,omitempty"`
	Mount        string   `json:"mount,omitempty"`
}

// NetworkIface counters of one interface; RxSec/TxSec are bytes per second
type NetworkIface struct {
	Iface     string   `json:"iface,omitempty"`
	RxBytes   *float64 `json:"rx_bytes,omitempty"`
	TxBytes   *float64 `json:"tx_bytes,omitempty"`
	RxSec     *float64 `json:"rx_sec,omitempty"`
	TxSec     *float64 `json:"tx_sec,omitempty"`
	RxDropped *float64 `json:"rx_dropped,omitempty"`
	TxDropped *float64 `json:"tx_dropped,omitempty"`
	RxErrors  *float64 `json:"rx_errors,omitempty"`
	TxErrors  *float64 `json:"tx_errors,omitempty"`
}

type ProcessStats struct {
	All      *float64      `json:"all,omitempty"`
	Running  *float64      `json:"running,omitempty"`
	Blocked  *float64      `json:"blocked,omitempty"`
	Sleeping *float64      `json:"sleeping,omitempty"`
	List     []ProcessInfo `json:"list"`
}

type ProcessInfo struct {
	PID     int      `json:"pid"`
	Name    string   `json:"name,omitempty"`
	CPU     *float64 `json:"cpu,omitempty"`
	Mem     *float64 `json:"mem,omitempty"`
	Command string   `json:"command,omitempty"`
}

// MetricPoint flattened history entry derived from a snapshot
type MetricPoint struct {
	DeviceID         string    `json:"deviceId"`
	MachineID        string    `json:"machineId"`
	Timestamp        time.Time `json:"timestamp"`
	CPUUsage         *float64  `json:"cpuUsage,omitempty"`
	LoadAvg          []float64 `json:"loadAvg,omitempty"`
	TemperatureMain  *float64  `json:"temperatureMain,omitempty"`
	TemperatureMax   *float64  `json:"temperatureMax,omitempty"`
	MemoryTotal      *float64  `json:"memoryTotal,omitempty"`
	MemoryUsed       *float64  `json:"memoryUsed,omitempty"`
	MemoryPercent    *float64  `json:"memoryPercent,omitempty"`
	DiskSize         *float64  `json:"diskSize,omitempty"`
	DiskUsed         *float64  `json:"diskUsed,omitempty"`
	DiskPercent      *float64  `json:"diskPercent,omitempty"`
	DiskMount        string    `json:"diskMount,omitempty"`
	NetworkRxSec     float64   `json:"networkRxSec"`
	NetworkTxSec     float64   `json:"networkTxSec"`
	ProcessesAll     *float64  `json:"processesAll,omitempty"`
	ProcessesRunning *float64  `json:"processesRunning,omitempty"`
	Uptime           *float64  `json:"uptime,omitempty"`
}

// Granularity bucket width of an aggregated history query
type Granularity string

const (
	GranularityMinute Granularity = "minute"
	GranularityHour   Granularity = "hour"
	GranularityDay    Granularity = "day"
)

// Truncate returns the start of the bucket containing t (UTC).
func (g Granularity) Truncate(t time.Time) time.Time {
	t = t.UTC()
	switch g {
	case GranularityDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case GranularityHour:
		return t.Truncate(time.Hour)
	default:
		return t.Truncate(time.Minute)
	}
}

// MetricBucket averaged history over one bucket
type MetricBucket struct {
	Time           time.Time `json:"time"`
	AvgCPU         float64   `json:"avgCpu"`
	MaxCPU         float64   `json:"maxCpu"`
	AvgTemperature float64   `json:"avgTemperature"`
	MaxTemperature float64   `json:"maxTemperature"`
	AvgMemory      float64   `json:"avgMemory"`
	AvgDisk        float64   `json:"avgDisk"`
	AvgNetworkRx   float64   `json:"avgNetworkRx"`
	AvgNetworkTx   float64   `json:"avgNetworkTx"`
	Count          int64     `json:"count"`
}

// MetricStats min/max/avg summary over a window
type MetricStats struct {
	AvgCPU         float64 `json:"avgCpu"`
	MaxCPU         float64 `json:"maxCpu"`
	MinCPU         float64 `json:"minCpu"`
	AvgTemperature float64 `json:"avgTemperature"`
	MaxTemperature float64 `json:"maxTemperature"`
	MinTemperature float64 `json:"minTemperature"`
	AvgMemory      float64 `json:"avgMemory"`
	MaxMemory      float64 `json:"maxMemory"`
	MinMemory      float64 `json:"minMemory"`
	Count          int64   `json:"count"`
}
