package main

import (
	"github.com/wazo-platform/wazo-stt-gateway/internal/bootstrap"
)

// @title Wazo STT Gateway API
// @version 0.1.0
// @description Real-time speech-to-text session gateway for platform calls

// @host localhost:8080
// @BasePath /api/v1

func main() {
	bootstrap.Run()
}
