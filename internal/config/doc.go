// Package config provides configuration parsing for the eyes runtime and
// CLI.
//
// The configuration is stored in eyes.json at the project root. This
// package handles loading, saving, and validating configuration.
//
// # Configuration File Structure
//
//	{
//	  "scheduler": {
//	    "maxRunsPerDrain": 100000
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "namespace": "eyes"
//	  },
//	  "inspector": {
//	    "addr": "localhost:7070",
//	    "buffer": 256
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	logger := cfg.Log.Logger(os.Stderr)
package config
