package tools

import (
	"log"
	"time"
)

var isEnabled = true
var printTimestamp = true

func EnableLogger() {
	isEnabled = true
}

func DisableLogger() {
	isEnabled = false
}

func EnableLoggerTimestamp() {
	printTimestamp = true
}

func DisableLoggerTimestamp() {
	printTimestamp = false
}

func LogOutput(val ...interface{}) {
	if !isEnabled {
		return
	}
	if printTimestamp {
		args := make([]interface{}, 0, len(val)+1)
		args = append(args, "["+time.Now().Format("2006-01-02 15.04:05.000")+"]")
		args = append(args, val...)
		log.Println(args...)
		return
	}
	log.Println(val...)
}
