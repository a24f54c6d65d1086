package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "voxscribe"

type Runtime struct {
	OS   string
	Arch string
}

func CurrentRuntime() Runtime {
	return Runtime{
		OS:   runtime.GOOS,
		Arch: NormalizeArch(runtime.GOARCH),
	}
}

func NormalizeArch(arch string) string {
	switch arch {
	case "x86_64":
		return "amd64"
	case "aarch64":
		return "arm64"
	default:
		return arch
	}
}

// Env carries the environment values the directory helpers depend on, so the
// layout for any OS can be computed from tests.
type Env struct {
	Home          string
	XDGDataHome   string
	XDGConfigHome string
	LocalAppData  string
	AppData       string
}

func CurrentEnv() (Env, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Env{}, fmt.Errorf("resolve user home: %w", err)
	}
	return Env{
		Home:          home,
		XDGDataHome:   os.Getenv("XDG_DATA_HOME"),
		XDGConfigHome: os.Getenv("XDG_CONFIG_HOME"),
		LocalAppData:  os.Getenv("LOCALAPPDATA"),
		AppData:       os.Getenv("APPDATA"),
	}, nil
}

func DefaultModelDirFor(goos string, env Env) (string, error) {
	dataDir, err := dataDirFor(goos, env)
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "models"), nil
}

func DefaultConfigPathFor(goos string, env Env) (string, error) {
	if env.Home == "" {
		return "", errors.New("home directory is empty")
	}

	var dir string
	switch goos {
	case "linux":
		dir = filepath.Join(env.Home, ".config")
		if env.XDGConfigHome != "" {
			dir = env.XDGConfigHome
		}
	case "darwin":
		dir = filepath.Join(env.Home, "Library", "Application Support")
	case "windows":
		dir = env.AppData
		if dir == "" {
			dir = filepath.Join(env.Home, "AppData", "Roaming")
		}
	default:
		return "", fmt.Errorf("unsupported OS: %s", goos)
	}

	return filepath.Join(dir, appName, "config.yaml"), nil
}

func ResolveModelDir(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}

	env, err := CurrentEnv()
	if err != nil {
		return "", err
	}
	return DefaultModelDirFor(runtime.GOOS, env)
}

func ResolveConfigPath() (string, error) {
	env, err := CurrentEnv()
	if err != nil {
		return "", err
	}
	return DefaultConfigPathFor(runtime.GOOS, env)
}

// TempDir is where recordings live until they are transcribed.
func TempDir() string {
	return os.TempDir()
}

func dataDirFor(goos string, env Env) (string, error) {
	if env.Home == "" {
		return "", errors.New("home directory is empty")
	}

	switch goos {
	case "linux":
		if env.XDGDataHome != "" {
			return filepath.Join(env.XDGDataHome, appName), nil
		}
		return filepath.Join(env.Home, ".local", "share", appName), nil
	case "darwin":
		return filepath.Join(env.Home, "Library", "Application Support", appName), nil
	case "windows":
		if env.LocalAppData != "" {
			return filepath.Join(env.LocalAppData, appName), nil
		}
		return filepath.Join(env.Home, "AppData", "Local", appName), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", goos)
	}
}
