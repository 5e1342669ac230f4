package config

import "os"

func IsDebug() bool {
	return os.Getenv("AGORA_DEBUG") == "1"
}
