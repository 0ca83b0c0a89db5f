package model

import "time"

// MetricPoint MySQL model for device_metrics table (flattened history entries)
type MetricPoint struct {
	ID               int64                 `gorm:"primaryKey;autoIncrement" json:"id"`
	DeviceID         string                `gorm:"column:device_id;type:varchar(64);not null;index:idx_device_time,priority:1" json:"device_id"`
	MachineID        string                `gorm:"column:machine_id;type:varchar(255)" json:"machine_id"`
	Timestamp        time.Time             `gorm:"column:timestamp;type:datetime(3);not null;index:idx_device_time,priority:2;index:idx_timestamp" json:"timestamp"`
	CPUUsage         *float64              `gorm:"column:cpu_usage;type:double" json:"cpu_usage"`
	LoadAvg          JSONColumn[[]float64] `gorm:"column:load_avg;type:json" json:"load_avg"`
	TemperatureMain  *float64              `gorm:"column:temperature_main;type:double" json:"temperature_main"`
	TemperatureMax   *float64              `gorm:"column:temperature_max;type:double" json:"temperature_max"`
	MemoryTotal      *float64              `gorm:"column:memory_total;type:double" json:"memory_total"`
	MemoryUsed       *float64              `gorm:"column:memory_used;type:double" json:"memory_used"`
	MemoryPercent    *float64              `gorm:"column:memory_percent;type:double" json:"memory_percent"`
	DiskSize         *float64              `gorm:"column:disk_size;type:double" json:"disk_size"`
	DiskUsed         *float64              `gorm:"column:disk_used;type:double" json:"disk_used"`
	DiskPercent      *float64              `gorm:"column:disk_percent;type:double" json:"disk_percent"`
	DiskMount        string                `gorm:"column:disk_mount;type:varchar(255)" json:"disk_mount"`
	NetworkRxSec     float64               `gorm:"column:network_rx_sec;type:double;not null;default:0" json:"network_rx_sec"`
	NetworkTxSec     float64               `gorm:"column:network_tx_sec;type:double;not null;default:0" json:"network_tx_sec"`
	ProcessesAll     *float64              `gorm:"column:processes_all;type:double" json:"processes_all"`
	ProcessesRunning *float64              `gorm:"column:processes_running;type:double" json:"processes_running"`
	Uptime           *float64              `gorm:"column:uptime;type:double" json:"uptime"`
}

// TableName specifies the table name for MetricPoint
func (MetricPoint) TableName() string {
	return "device_metrics"
}

// MetricBucketRow one row of a GROUP BY bucket query
type MetricBucketRow struct {
	Bucket         string   `gorm:"column:bucket"`
	AvgCPU         *float64 `gorm:"column:avg_cpu"`
	MaxCPU         *float64 `gorm:"column:max_cpu"`
	AvgTemperature *float64 `gorm:"column:avg_temperature"`
	MaxTemperature *float64 `gorm:"column:max_temperature"`
	AvgMemory      *float64 `gorm:"column:avg_memory"`
	AvgDisk        *float64 `gorm:"column:avg_disk"`
	AvgNetworkRx   *float64 `gorm:"column:avg_network_rx"`
	AvgNetworkTx   *float64 `gorm:"column:avg_network_tx"`
	Count          int64    `gorm:"column:count"`
}

// MetricStatsRow aggregate row of a stats query
type MetricStatsRow struct {
	AvgCPU         *float64 `gorm:"column:avg_cpu"`
	MaxCPU         *float64 `gorm:"column:max_cpu"`
	MinCPU         *float64 `gorm:"column:min_cpu"`
	AvgTemperature *float64 `gorm:"column:avg_temperature"`
	MaxTemperature *float64 `gorm:"column:max_temperature"`
	MinTemperature *float64 `gorm:"column:min_temperature"`
	AvgMemory      *float64 `gorm:"column:avg_memory"`
	MaxMemory      *float64 `gorm:"column:max_memory"`
	MinMemory      *float64 `gorm:"column:min_memory"`
	Count          int64    `gorm:"column:count"`
}
