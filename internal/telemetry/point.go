package telemetry

import "fleetwatch/internal/model"

// ToMetricPoint flattens a snapshot into a history entry. Only the first disk is
// kept; network rates are summed over all interfaces.
func ToMetricPoint(deviceID, machineID string, snap *model.Snapshot) *model.MetricPoint {
	point := &model.MetricPoint{
		DeviceID:  deviceID,
		MachineID: machineID,
		Timestamp: snap.Timestamp,
		Uptime:    snap.Uptime,
	}

	if snap.CPU != nil {
		point.CPUUsage = snap.CPU.Usage
		point.LoadAvg = snap.CPU.LoadAvg
	}
	if snap.Temperature != nil {
		point.TemperatureMain = snap.Temperature.Main
		point.TemperatureMax = snap.Temperature.Max
	}
	if snap.Memory != nil {
		point.MemoryTotal = snap.Memory.Total
		point.MemoryUsed = snap.Memory.Used
		point.MemoryPercent = snap.Memory.UsagePercent
	}
	if len(snap.Disk) > 0 {
		d := snap.Disk[0]
		point.DiskSize = d.Size
		point.DiskUsed = d.Used
		point.DiskPercent = d.UsagePercent
		point.DiskMount = d.Mount
	}
	for _, iface := range snap.Network {
		if iface.RxSec != nil {
			point.NetworkRxSec += *iface.RxSec
		}
		if iface.TxSec != nil {
			point.NetworkTxSec += *iface.TxSec
		}
	}
	if snap.Processes != nil {
		point.ProcessesAll = snap.Processes.All
		point.ProcessesRunning = snap.Processes.Running
	}

	return point
}
