package tools

import (
	"os"

	"github.com/golang/glog"
)

// MustStat aborts when a required input file is missing, before any
// pipeline work starts.
func MustStat(filePath string) os.FileInfo {
	info, err := os.Stat(filePath)
	if err != nil {
		glog.Fatal(err)
	}
	return info
}

func CreateDirectoryIfDoesNotExist(directory string) error {
	if _, err := os.Stat(directory); os.IsNotExist(err) {
		err := os.MkdirAll(directory, 0777)
		if err != nil {
			return err
		}
	}
	return nil
}
