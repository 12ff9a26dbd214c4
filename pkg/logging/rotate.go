package logging

import "gopkg.in/natefinch/lumberjack.v2"

// RotatingFile returns an io.Writer that appends to path, rotating it once
// it exceeds maxSizeMB and keeping maxBackups compressed copies around.
// Pass the result as Config.Output for the daemon's --log-file option.
func RotatingFile(path string, maxSizeMB, maxBackups int) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}
}
