package main

import (
	"github.com/sirupsen/logrus"

	"github.com/MSalah73/zero2prod/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		logrus.Fatalf("application error: %v", err)
	}
}
