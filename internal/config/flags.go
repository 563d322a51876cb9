package config

import "flag"

var (
	flagConfig           = flag.String("config", "", "Path to config file")
	flagDebug            = flag.Bool("debug", false, "Enable debug logging")
	flagInput            = flag.String("input", "", "Source glTF scene")
	flagTempFolder       = flag.String("temp_folder", "", "Scratch directory for cached textures and shaders")
	flagOutput           = flag.String("output", "", "Output resource bundle")
	flagCompressionLevel = flag.Int("compression_level", -1, "LZ4 compression level (0-9)")
	flagTexconv          = flag.String("texconv", "", "Path to texconv")
	flagGlslc            = flag.String("glslc", "", "Path to glslc")
	flagLogFile          = flag.String("log_file", "", "Also write logs to this file")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagInput != "" {
		cfg.Import.Input = *flagInput
	}
	if *flagTempFolder != "" {
		cfg.Import.TempFolder = *flagTempFolder
	}
	if *flagOutput != "" {
		cfg.Import.Output = *flagOutput
	}
	if *flagCompressionLevel >= 0 {
		cfg.Import.CompressionLevel = uint32(*flagCompressionLevel)
	}
	if *flagTexconv != "" {
		cfg.Tools.Texconv = *flagTexconv
	}
	if *flagGlslc != "" {
		cfg.Tools.Glslc = *flagGlslc
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
}
