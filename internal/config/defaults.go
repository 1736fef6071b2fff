package config

const (
	defaultSessionDir              = "~/.local/share/neuroflow/sessions"
	defaultLogDir                  = "~/.local/share/neuroflow/logs"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultFilterLowHz             = 1.0
	defaultFilterHighHz            = 40.0
	defaultNotchHz                 = 50.0
	defaultDecompositionComponents = 15
	defaultDecompositionHighpassHz = 1.0
	defaultConnectivityLowHz       = 8.0
	defaultConnectivityHighHz      = 12.0
	defaultEventBufferSize         = 512
	defaultMinFreeSpaceMiB         = 256
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SessionDir: defaultSessionDir,
			LogDir:     defaultLogDir,
		},
		Pipeline: Pipeline{
			FilterLowHz:             defaultFilterLowHz,
			FilterHighHz:            defaultFilterHighHz,
			NotchHz:                 defaultNotchHz,
			DecompositionComponents: defaultDecompositionComponents,
			DecompositionHighpassHz: defaultDecompositionHighpassHz,
			EpochBaselineToZero:     true,
			ConnectivityLowHz:       defaultConnectivityLowHz,
			ConnectivityHighHz:      defaultConnectivityHighHz,
		},
		Batch: Batch{
			MinFreeSpaceMiB: defaultMinFreeSpaceMiB,
		},
		Worker: Worker{
			EventBufferSize: defaultEventBufferSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
