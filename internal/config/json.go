package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/brainbox/internal/flagx"
	"github.com/dmitrijs2005/brainbox/internal/timex"
)

// JsonConfig is the on-disk form of Config. Pointer fields distinguish
// "absent" from "empty" so a partial file only overrides what it names.
type JsonConfig struct {
	DataDir         *string         `json:"data_dir"`
	StoreBackend    *string         `json:"store_backend"`
	ImageKey        *string         `json:"image_key"`
	SessionKey      *string         `json:"session_key"`
	SecretKey       *string         `json:"secret_key"`
	SessionValidity *timex.Duration `json:"session_validity"`
	S3Bucket        *string         `json:"s3_bucket"`
	S3Region        *string         `json:"s3_region"`
	S3BaseEndpoint  *string         `json:"s3_base_endpoint"`
	S3AccessKey     *string         `json:"s3_access_key"`
	S3SecretKey     *string         `json:"s3_secret_key"`
	LogLevel        *string         `json:"log_level"`
	LogFormat       *string         `json:"log_format"`
}

// parseJson overlays cfg with the JSON file named by flagx.ConfigPath.
// It panics on read or decode errors, like the flag parser does.
func parseJson(cfg *Config) {
	path := flagx.ConfigPath()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}
	jc.apply(cfg)
}

func (jc *JsonConfig) apply(cfg *Config) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&cfg.DataDir, jc.DataDir)
	set(&cfg.StoreBackend, jc.StoreBackend)
	set(&cfg.ImageKey, jc.ImageKey)
	set(&cfg.SessionKey, jc.SessionKey)
	set(&cfg.SecretKey, jc.SecretKey)
	set(&cfg.S3Bucket, jc.S3Bucket)
	set(&cfg.S3Region, jc.S3Region)
	set(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	set(&cfg.S3AccessKey, jc.S3AccessKey)
	set(&cfg.S3SecretKey, jc.S3SecretKey)
	set(&cfg.LogLevel, jc.LogLevel)
	set(&cfg.LogFormat, jc.LogFormat)
	if jc.SessionValidity != nil {
		cfg.SessionValidity = jc.SessionValidity.Duration
	}
}
