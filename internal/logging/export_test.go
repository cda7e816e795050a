package logging

var NewLoggerForTest = newLogger
