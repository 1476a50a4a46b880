package log

var StderrWriter = stderrWriter
