package config

const (
	defaultConfigPath                 = "~/.config/shopflow/config.toml"
	defaultDataDir                    = "~/.local/share/shopflow"
	defaultLogDir                     = "~/.local/share/shopflow/logs"
	defaultAPIBind                    = "127.0.0.1:7490"
	defaultLogFormat                  = "console"
	defaultLogLevel                   = "info"
	defaultLogRetentionDays           = 30
	defaultReferenceWeekHours         = 40.0
	defaultWorkdayHours               = 8.0
	defaultAvailabilityThresholdHours = 35.0
	defaultBottleneckRatio            = 0.8
	defaultSnapshotTTLSeconds         = 15
	defaultNotifyRequestTimeout       = 10
	defaultBusyTimeoutMS              = 5000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Planner: Planner{
			ReferenceWeekHours:         defaultReferenceWeekHours,
			WorkdayHours:               defaultWorkdayHours,
			AvailabilityThresholdHours: defaultAvailabilityThresholdHours,
		},
		Workload: Workload{
			BottleneckRatio:    defaultBottleneckRatio,
			SnapshotTTLSeconds: defaultSnapshotTTLSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Transitions:    true,
			Bottlenecks:    true,
			Overrides:      true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Store: Store{
			BusyTimeoutMS: defaultBusyTimeoutMS,
		},
	}
}
