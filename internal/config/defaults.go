package config

const (
	defaultConfigPath          = "~/.config/vidisnap/config.toml"
	defaultStagingDir          = "~/.local/share/vidisnap/staging"
	defaultLogDir              = "~/.local/share/vidisnap/logs"
	defaultAPIBind             = "0.0.0.0:8000"
	defaultModelServerURL      = "http://127.0.0.1:8001"
	defaultModelName           = "vit-base-patch16-224"
	defaultLabelsPath          = "~/.config/vidisnap/models/vit-base-patch16-224/config.json"
	defaultImageSize           = 224
	defaultModelRequestTimeout = 30
	defaultModelLoadTimeout    = 120
	defaultFFmpegBinary        = "ffmpeg"
	defaultExtractionWorkers   = 4
	defaultInferenceWorkers    = 2
	defaultUploadMaxBytes      = 50 << 20
	defaultStaleAfterMinutes   = 60
	defaultMinFreeMiB          = 512
	defaultHistoryRetain       = 1000
	defaultLogFormat           = "auto"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Model: Model{
			ServerURL:             defaultModelServerURL,
			Name:                  defaultModelName,
			LabelsPath:            defaultLabelsPath,
			ImageSize:             defaultImageSize,
			Mean:                  []float64{0.5, 0.5, 0.5},
			Std:                   []float64{0.5, 0.5, 0.5},
			RequestTimeoutSeconds: defaultModelRequestTimeout,
			LoadTimeoutSeconds:    defaultModelLoadTimeout,
		},
		FFmpeg: FFmpeg{
			Binary: defaultFFmpegBinary,
		},
		Workers: Workers{
			Extraction: defaultExtractionWorkers,
			Inference:  defaultInferenceWorkers,
		},
		Upload: Upload{
			MaxBytes: defaultUploadMaxBytes,
		},
		Staging: Staging{
			StaleAfterMinutes: defaultStaleAfterMinutes,
			MinFreeMiB:        defaultMinFreeMiB,
		},
		History: History{
			Enabled: true,
			Retain:  defaultHistoryRetain,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
