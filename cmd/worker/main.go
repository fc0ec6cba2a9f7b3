package main

import (
	"github.com/sirupsen/logrus"

	"github.com/MSalah73/zero2prod/internal/app"
)

func main() {
	if err := app.RunWorker(); err != nil {
		logrus.Fatalf("worker error: %v", err)
	}
}
