package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	SERVICE_NAME string
	TRACE_URL    string
	BASE_URL     string
}

type GPUConfig struct {
	DEVICES []string
}

type CatalogConfig struct {
	CATALOG_PATH string
}

type CalendarConfig struct {
	URL             string
	TIMEOUT_SECONDS int
}

type ReaperConfig struct {
	INTERVAL_SECONDS int
	WINDOW_SECONDS   int
}

func env(key string) string {
	v := os.Getenv(key)
	return v
}

func convertStringToInt(s string, key string) (int, error) {
	sInt, err := strconv.Atoi(s)
	if err != nil {
		return -1, fmt.Errorf("error initializing config with key: %s, err: %v", key, err)
	}
	return sInt, nil
}

func GetConfig() (*Config, error) {
	sn := env("SERVICE_NAME")
	if sn == "" {
		return nil, fmt.Errorf("KEY: SERVICE_NAME is empty")
	}
	turl := env("TRACE_URL")
	burl := env("BASE_URL")
	if burl == "" {
		return nil, fmt.Errorf("KEY: BASE_URL is empty")
	}
	return &Config{
		SERVICE_NAME: sn,
		TRACE_URL:    turl,
		BASE_URL:     strings.TrimRight(burl, "/"),
	}, nil
}

func GetGPUConfig() (*GPUConfig, error) {
	raw := env("GPU_DEVICES")
	if raw == "" {
		return nil, fmt.Errorf("KEY: GPU_DEVICES is empty")
	}
	var devices []string
	for _, d := range strings.Split(raw, ",") {
		d = strings.TrimSpace(d)
		if d == "" {
			return nil, fmt.Errorf("KEY: GPU_DEVICES has an empty device id")
		}
		devices = append(devices, d)
	}
	return &GPUConfig{
		DEVICES: devices,
	}, nil
}

func GetCatalogConfig() (*CatalogConfig, error) {
	// empty path means the built-in catalog
	return &CatalogConfig{
		CATALOG_PATH: env("CATALOG_PATH"),
	}, nil
}

func GetCalendarConfig() (*CalendarConfig, error) {
	url := env("CALENDAR_URL")
	if url == "" {
		return nil, fmt.Errorf("KEY: CALENDAR_URL is empty")
	}
	timeout, err := convertStringToInt(env("CALENDAR_TIMEOUT"), "CALENDAR_TIMEOUT")
	if err != nil {
		return nil, err
	}
	return &CalendarConfig{
		URL:             url,
		TIMEOUT_SECONDS: timeout,
	}, nil
}

func GetReaperConfig() (*ReaperConfig, error) {
	interval, err := convertStringToInt(env("REAPER_INTERVAL"), "REAPER_INTERVAL")
	if err != nil {
		return nil, err
	}
	window, err := convertStringToInt(env("REAPER_WINDOW"), "REAPER_WINDOW")
	if err != nil {
		return nil, err
	}
	return &ReaperConfig{
		INTERVAL_SECONDS: interval,
		WINDOW_SECONDS:   window,
	}, nil
}
