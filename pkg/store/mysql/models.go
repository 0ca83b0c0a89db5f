package mysql

import "fleetwatch/pkg/store/mysql/model"

type (
	// Database models
	Device      = model.Device
	MetricPoint = model.MetricPoint
	Alert       = model.Alert
	Workflow    = model.Workflow
	QuickAction = model.QuickAction
	Run         = model.Run

	// Query result rows
	MetricBucketRow = model.MetricBucketRow
	MetricStatsRow  = model.MetricStatsRow
	SeverityCount   = model.SeverityCount

	// Custom JSON types
	JSONMap         = model.JSONMap
	JSONStringArray = model.JSONStringArray
)

// AllModels lists every table managed by AutoMigrate
func AllModels() []interface{} {
	return []interface{}{
		&Device{},
		&MetricPoint{},
		&Alert{},
		&Workflow{},
		&QuickAction{},
		&Run{},
	}
}
