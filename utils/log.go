package utils

import (
	"fmt"
	"gopkg.in/natefinch/lumberjack.v2"
	"log"
)

// SetupLogger sends the standard logger to a size-rotated file.
func SetupLogger(logFilePath string) error {
	if logFilePath == "" {
		return nil
	}

	log.SetOutput(&lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	})

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	return nil
}

func ConsoleAndLogPrintf(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	fmt.Println(message)
	log.Print(message)
}

func IsInArray(needle string, haystack []string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}

	return false
}
